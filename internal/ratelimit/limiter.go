// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

// Package ratelimit implements sliding-window rate limiting over the KV
// store, so limits survive restarts and are shared when the store is. The
// window estimate weights the previous bucket by its remaining overlap,
// smoothing the boundary burst a plain fixed window allows.
package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/config"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
)

// Class is a named limit bucket. Different endpoint groups carry different
// budgets.
type Class struct {
	Name   string
	Window time.Duration
	Max    int64
}

// Fixed endpoint classes. The general class is configuration-driven; see
// GeneralClass.
var (
	// ClassIngest throttles event submission per key.
	ClassIngest = Class{Name: "ingest", Window: time.Minute, Max: 10}

	// ClassAnalytics covers the read/query endpoints.
	ClassAnalytics = Class{Name: "analytics", Window: 5 * time.Minute, Max: 2000}

	// ClassAdmin covers key management.
	ClassAdmin = Class{Name: "admin", Window: 10 * time.Minute, Max: 200}
)

// GeneralClass builds the default class from configuration.
func GeneralClass(cfg *config.RateLimitConfig) Class {
	return Class{Name: "general", Window: cfg.Window, Max: int64(cfg.MaxRequests)}
}

// Decision is the outcome of one limit check.
type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter checks request budgets against bucket counters in the KV store.
// Store failures fail open: limiting is protection, not correctness.
type Limiter struct {
	store    cache.Store
	disabled bool
	now      func() time.Time
}

// NewLimiter creates a limiter. disabled short-circuits every check to
// allowed, for development environments.
func NewLimiter(store cache.Store, disabled bool) *Limiter {
	return &Limiter{store: store, disabled: disabled, now: time.Now}
}

// Allow records one request for caller under class and decides whether it
// fits the budget.
func (l *Limiter) Allow(ctx context.Context, class Class, caller string) Decision {
	if l.disabled {
		return Decision{Allowed: true, Limit: class.Max, Remaining: class.Max}
	}

	now := l.now()
	windowNanos := class.Window.Nanoseconds()
	bucket := now.UnixNano() / windowNanos
	elapsed := float64(now.UnixNano()%windowNanos) / float64(windowNanos)

	// Counters expire after two windows: the previous bucket must survive
	// one full window past its own end.
	ttl := 2 * class.Window

	current, err := l.store.IncrBy(ctx, cache.RateLimitKey(class.Name, caller, bucket), 1, ttl)
	if err != nil {
		logging.Warn().Err(err).Str("class", class.Name).Msg("Rate limit store unavailable, allowing request")
		return Decision{Allowed: true, Limit: class.Max, Remaining: class.Max}
	}

	previous, err := l.store.GetInt64(ctx, cache.RateLimitKey(class.Name, caller, bucket-1))
	if err != nil {
		logging.Warn().Err(err).Str("class", class.Name).Msg("Rate limit store unavailable, allowing request")
		return Decision{Allowed: true, Limit: class.Max, Remaining: class.Max}
	}

	estimate := int64(math.Ceil(float64(previous)*(1-elapsed))) + current

	remaining := class.Max - estimate
	if remaining < 0 {
		remaining = 0
	}

	if estimate > class.Max {
		return Decision{
			Allowed:    false,
			Limit:      class.Max,
			Remaining:  0,
			RetryAfter: retryAfter(now, class.Window),
		}
	}
	return Decision{Allowed: true, Limit: class.Max, Remaining: remaining}
}

// retryAfter is the time until the current bucket rolls over, rounded up
// to a whole second for the Retry-After header.
func retryAfter(now time.Time, window time.Duration) time.Duration {
	windowNanos := window.Nanoseconds()
	left := windowNanos - now.UnixNano()%windowNanos
	d := time.Duration(left)
	if rounded := d.Truncate(time.Second); rounded < d {
		return rounded + time.Second
	}
	return d
}
