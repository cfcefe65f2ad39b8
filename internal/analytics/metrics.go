// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package analytics

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// ResolveMetricsRange applies the default range for metrics queries: the
// last 30 days ending now.
func ResolveMetricsRange(start, end time.Time, now time.Time) (time.Time, time.Time) {
	if end.IsZero() {
		end = now.UTC()
	}
	if start.IsZero() {
		start = end.Add(-defaultMetricsRange)
	}
	return start.UTC(), end.UTC()
}

// Metrics computes the time-bucketed series for one event name with an
// optional property filter. Totals span the whole range; the unique user
// total is not the sum of per-bucket uniques.
func (e *Engine) Metrics(ctx context.Context, orgID, projectID, eventName string, interval models.MetricInterval, start, end time.Time, filter *models.Filter) (*models.MetricsAnalytics, error) {
	key := cache.GenerateKey(nsMetrics, map[string]string{
		"org":      orgID,
		"proj":     projectID,
		"event":    eventName,
		"interval": string(interval),
		"start":    start.UTC().Format(time.RFC3339),
		"end":      end.UTC().Format(time.RFC3339),
		"filter":   filterKey(filter),
	})
	if hit, ok := cached[models.MetricsAnalytics](e, key); ok {
		return hit, nil
	}

	buckets, err := e.db.MetricBuckets(ctx, orgID, projectID, eventName, interval, start, end, filter)
	if err != nil {
		return nil, err
	}

	total, uniqueUsers, err := e.db.MetricTotals(ctx, orgID, projectID, eventName, start, end, filter)
	if err != nil {
		return nil, err
	}

	result := &models.MetricsAnalytics{
		EventName:        eventName,
		Interval:         interval,
		StartDate:        start.UTC(),
		EndDate:          end.UTC(),
		Buckets:          buckets,
		TotalCount:       total,
		TotalUniqueUsers: uniqueUsers,
	}
	e.results.SetWithTTL(key, result, e.queryTTL)
	return result, nil
}

// filterKey canonicalizes a filter tree for cache key purposes.
func filterKey(filter *models.Filter) string {
	if filter == nil {
		return ""
	}
	b, err := json.Marshal(filter)
	if err != nil {
		return "unmarshalable"
	}
	return string(b)
}
