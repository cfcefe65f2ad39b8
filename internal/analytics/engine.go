// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

// Package analytics computes funnel, retention, metrics, journey, and
// summary reports over the event store, with a read-through result cache in
// front of every query. Cached results are served as-is until their TTL
// expires; recently ingested events may lag a report by up to that TTL.
package analytics

import (
	"math"
	"time"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/database"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/metrics"
)

// Cache key namespaces. Tenant identity is always part of the key params so
// entries never cross tenants.
const (
	nsFunnel       = "funnel:"
	nsRetention    = "retention:"
	nsMetrics      = "metrics:"
	nsUserJourney  = "user_journey:"
	nsEventSummary = "event_summary:"
	nsUserSummary  = "user_summary:"
)

// defaultMetricsRange is applied when a metrics query has no explicit range.
const defaultMetricsRange = 30 * 24 * time.Hour

// Engine answers analytics queries. Safe for concurrent use.
type Engine struct {
	db      *database.DB
	results *cache.ResultCache

	queryTTL time.Duration
	userTTL  time.Duration
}

// NewEngine creates an engine. queryTTL covers aggregate reports; userTTL
// covers per-user reports, which change faster and cache shorter.
func NewEngine(db *database.DB, results *cache.ResultCache, queryTTL, userTTL time.Duration) *Engine {
	return &Engine{
		db:       db,
		results:  results,
		queryTTL: queryTTL,
		userTTL:  userTTL,
	}
}

// CacheStats exposes result cache counters for the health endpoint.
func (e *Engine) CacheStats() cache.Stats {
	return e.results.GetStats()
}

// cached looks up a typed result. A miss or a type mismatch (stale entry
// from an older build) reads as a miss.
func cached[T any](e *Engine, key string) (*T, bool) {
	v, ok := e.results.Get(key)
	if !ok {
		metrics.QueryCacheMisses.Inc()
		return nil, false
	}
	typed, ok := v.(*T)
	if ok {
		metrics.QueryCacheHits.Inc()
	} else {
		metrics.QueryCacheMisses.Inc()
	}
	return typed, ok
}

// round2 rounds to two decimals, half away from zero.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// percentage returns part/whole as a rounded percentage; zero when the
// whole is zero.
func percentage(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}
