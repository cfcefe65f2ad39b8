// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package analytics

import (
	"context"
	"time"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/database"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// EventSummary aggregates a tenant's events over a range, per event name,
// descending by count.
func (e *Engine) EventSummary(ctx context.Context, orgID, projectID string, start, end time.Time) (*models.EventSummary, error) {
	key := cache.GenerateKey(nsEventSummary, map[string]string{
		"org":   orgID,
		"proj":  projectID,
		"start": start.UTC().Format(time.RFC3339),
		"end":   end.UTC().Format(time.RFC3339),
	})
	if hit, ok := cached[models.EventSummary](e, key); ok {
		return hit, nil
	}

	items, err := e.db.EventSummaryRows(ctx, orgID, projectID, start, end)
	if err != nil {
		return nil, err
	}

	var totalEvents int64
	for i := range items {
		totalEvents += items[i].Count
	}

	uniqueUsers, err := e.db.CountDistinctUsers(ctx, orgID, projectID, database.ScanOptions{
		Start: start,
		End:   end,
	})
	if err != nil {
		return nil, err
	}

	result := &models.EventSummary{
		StartDate:        start.UTC(),
		EndDate:          end.UTC(),
		Events:           items,
		TotalEvents:      totalEvents,
		TotalUniqueUsers: uniqueUsers,
	}
	e.results.SetWithTTL(key, result, e.queryTTL)
	return result, nil
}
