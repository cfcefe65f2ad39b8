// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package analytics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/database"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// defaultJourneyLimit caps a journey when the caller gives no limit.
const defaultJourneyLimit = 1000

// UserJourney returns one user's events in chronological order. A user
// with no events under the tenant is ErrNotFound.
func (e *Engine) UserJourney(ctx context.Context, orgID, projectID, userID string, start, end time.Time, limit int) (*models.UserJourney, error) {
	if limit <= 0 {
		limit = defaultJourneyLimit
	}

	key := cache.GenerateKey(nsUserJourney, map[string]string{
		"org":   orgID,
		"proj":  projectID,
		"user":  userID,
		"start": start.UTC().Format(time.RFC3339),
		"end":   end.UTC().Format(time.RFC3339),
		"limit": strconv.Itoa(limit),
	})
	if hit, ok := cached[models.UserJourney](e, key); ok {
		return hit, nil
	}

	events, err := e.db.ScanEvents(ctx, orgID, projectID, database.ScanOptions{
		UserID:    userID,
		Start:     start,
		End:       end,
		Ascending: true,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("user %q: %w", userID, database.ErrNotFound)
	}

	result := &models.UserJourney{
		UserID:    userID,
		StartDate: start.UTC(),
		EndDate:   end.UTC(),
		Events:    events,
	}
	e.results.SetWithTTL(key, result, e.userTTL)
	return result, nil
}

// UserEvents returns a page of one user's events, newest first, optionally
// narrowed to one event name. Unlike UserJourney an empty result is an
// empty page, not an error.
func (e *Engine) UserEvents(ctx context.Context, orgID, projectID, userID, eventName string, start, end time.Time, limit, offset int) ([]models.Event, int64, error) {
	events, err := e.db.ScanEvents(ctx, orgID, projectID, database.ScanOptions{
		UserID:    userID,
		EventName: eventName,
		Start:     start,
		End:       end,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, 0, err
	}

	total, err := e.db.CountEvents(ctx, orgID, projectID, database.ScanOptions{
		UserID:    userID,
		EventName: eventName,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// UserSummary aggregates one user's activity: totals, first/last seen, and
// the per-event-name breakdown. A user with no events is ErrNotFound.
func (e *Engine) UserSummary(ctx context.Context, orgID, projectID, userID string) (*models.UserSummary, error) {
	key := cache.GenerateKey(nsUserSummary, map[string]string{
		"org":  orgID,
		"proj": projectID,
		"user": userID,
	})
	if hit, ok := cached[models.UserSummary](e, key); ok {
		return hit, nil
	}

	total, firstSeen, lastSeen, err := e.db.UserActivityTotals(ctx, orgID, projectID, userID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, fmt.Errorf("user %q: %w", userID, database.ErrNotFound)
	}

	breakdown, err := e.db.UserEventBreakdown(ctx, orgID, projectID, userID)
	if err != nil {
		return nil, err
	}

	result := &models.UserSummary{
		UserID:      userID,
		TotalEvents: total,
		FirstSeen:   firstSeen,
		LastSeen:    lastSeen,
		Events:      breakdown,
	}
	e.results.SetWithTTL(key, result, e.userTTL)
	return result, nil
}
