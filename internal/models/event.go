// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

// Package models defines the domain types shared across the platform:
// events, funnels, API keys, property filters, and analytics results.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Field length bounds enforced at ingest.
const (
	// MaxFieldLength bounds userId and eventName.
	MaxFieldLength = 255

	// MaxPropertiesBytes bounds the serialized properties payload.
	MaxPropertiesBytes = 64 * 1024

	// MaxBatchSize bounds a single ingest request.
	MaxBatchSize = 1000
)

// Properties is a free-form bag of JSON-typed values attached to an event.
// The engine treats it as opaque except for filter evaluation.
type Properties map[string]any

// SerializedSize returns the JSON-encoded byte length of the property bag.
func (p Properties) SerializedSize() (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize properties: %w", err)
	}
	return len(b), nil
}

// Event is an observed user action. After validation all four required
// fields (UserID, EventName, OrgID, ProjectID) are non-empty and Timestamp
// is set. Events are read-only once persisted.
type Event struct {
	ID          string     `json:"id,omitempty"`
	UserID      string     `json:"userId"`
	EventName   string     `json:"eventName"`
	Timestamp   time.Time  `json:"timestamp"`
	OrgID       string     `json:"orgId"`
	ProjectID   string     `json:"projectId"`
	Properties  Properties `json:"properties,omitempty"`
	SessionID   string     `json:"sessionId,omitempty"`
	PageURL     string     `json:"pageUrl,omitempty"`
	UserAgent   string     `json:"userAgent,omitempty"`
	IPAddress   string     `json:"ipAddress,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
}

// ComputeFingerprint returns the content-addressed dedup identifier: SHA-256
// over (userId, eventName, timestampMillis, orgId, projectId). Collisions on
// this tuple are defined to be duplicates.
func (e *Event) ComputeFingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s|%s",
		e.UserID, e.EventName, e.Timestamp.UnixMilli(), e.OrgID, e.ProjectID)
	return hex.EncodeToString(h.Sum(nil))
}

// TenantKey returns the partition key {orgId}:{projectId}.
func (e *Event) TenantKey() string {
	return TenantKey(e.OrgID, e.ProjectID)
}

// TenantKey builds the partition key for an (org, project) pair. It is used
// for buffer registration, realtime rooms, and cache namespacing.
func TenantKey(orgID, projectID string) string {
	return orgID + ":" + projectID
}

// EventInput is a raw inbound event payload before validation. Timestamp is
// a string so a missing or malformed instant can be reported per event
// rather than failing JSON decoding of the whole batch.
type EventInput struct {
	UserID     string     `json:"userId" validate:"required,max=255"`
	EventName  string     `json:"eventName" validate:"required,max=255"`
	Timestamp  string     `json:"timestamp,omitempty"`
	Properties Properties `json:"properties,omitempty"`
	SessionID  string     `json:"sessionId,omitempty"`
	PageURL    string     `json:"pageUrl,omitempty"`
	UserAgent  string     `json:"userAgent,omitempty"`
	IPAddress  string     `json:"ipAddress,omitempty"`
}

// IngestResult is the response of the ingest endpoint.
type IngestResult struct {
	Processed  int          `json:"processed"`
	Duplicates int          `json:"duplicates"`
	Skipped    []SkipReason `json:"skipped,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// SkipReason records why an event in a batch was not accepted.
type SkipReason struct {
	Index   int    `json:"index"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}
