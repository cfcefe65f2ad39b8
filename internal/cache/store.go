// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

// Package cache provides the KV cache layer: a durable BadgerDB-backed
// store for dedup markers, realtime counters, and rate-limit windows, plus
// an in-memory TTL cache for analytics query results.
//
// Cache failures are treated as degradation, never as request failures:
// callers log a warning and fall through to direct computation.
package cache

import (
	"context"
	"strconv"
	"time"
)

// Key namespaces in the KV store.
const (
	NamespaceDedup     = "dedup:"
	NamespaceEvents    = "events:"
	NamespaceRateLimit = "rate_limit:"
)

// DedupKey builds the dedup marker key for an event fingerprint.
func DedupKey(orgID, projectID, fingerprint string) string {
	return NamespaceDedup + orgID + ":" + projectID + ":" + fingerprint
}

// EventCountKey builds the per-tenant total event counter key.
func EventCountKey(orgID, projectID string) string {
	return NamespaceEvents + orgID + ":" + projectID + ":count"
}

// EventNameCountKey builds the per-tenant per-event-name counter key.
func EventNameCountKey(orgID, projectID, eventName string) string {
	return NamespaceEvents + orgID + ":" + projectID + ":" + eventName + ":count"
}

// RateLimitKey builds a rate-limit bucket counter key.
func RateLimitKey(class, caller string, bucket int64) string {
	return NamespaceRateLimit + class + ":" + caller + ":" + strconv.FormatInt(bucket, 10)
}

// Store is a key/value store with TTL expiry and atomic counters. The
// Badger implementation is durable across restarts; the memory
// implementation backs tests.
type Store interface {
	// Get returns the value for key. The second return is false when the
	// key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only when key is absent. Returns true when the
	// value was written, false when the key already existed.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// IncrBy atomically adds delta to the integer counter at key, creating
	// it at zero first. ttl > 0 sets the counter's expiry on every call.
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// GetInt64 reads the integer counter at key. Absent keys read as 0.
	GetInt64(ctx context.Context, key string) (int64, error)

	// Close releases store resources.
	Close() error
}
