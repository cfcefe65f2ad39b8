// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// StepOccurrences returns, per user, the ascending timestamps at which an
// event occurred within [start, end] under the optional property filter.
// The funnel algorithm folds these lists into ordered step membership.
func (db *DB) StepOccurrences(ctx context.Context, orgID, projectID, eventName string, start, end time.Time, filter *models.Filter) (map[string][]time.Time, error) {
	query := `
		SELECT user_id, timestamp
		FROM events
		WHERE org_id = ? AND project_id = ? AND event_name = ?
		  AND timestamp >= ? AND timestamp <= ?`
	args := []any{orgID, projectID, eventName, start.UTC(), end.UTC()}

	if filter != nil {
		clause, filterArgs, err := filterSQL(filter)
		if err != nil {
			return nil, err
		}
		query += " AND " + clause
		args = append(args, filterArgs...)
	}
	query += " ORDER BY user_id, timestamp"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query step occurrences: %w", err)
	}
	defer rows.Close()

	occurrences := make(map[string][]time.Time)
	for rows.Next() {
		var (
			userID string
			ts     time.Time
		)
		if err := rows.Scan(&userID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan step occurrence: %w", err)
		}
		occurrences[userID] = append(occurrences[userID], ts.UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("step occurrence iteration failed: %w", err)
	}
	return occurrences, nil
}

// RetentionCohortSize counts the users whose first occurrence of the cohort
// event falls within [start, end]. A user who performed the event before
// start entered an earlier cohort and is excluded.
func (db *DB) RetentionCohortSize(ctx context.Context, orgID, projectID, cohortEvent string, start, end time.Time) (int64, error) {
	var size int64
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM (
			SELECT user_id
			FROM events
			WHERE org_id = ? AND project_id = ? AND event_name = ?
			GROUP BY user_id
			HAVING MIN(timestamp) >= ? AND MIN(timestamp) <= ?
		)`,
		orgID, projectID, cohortEvent, start.UTC(), end.UTC()).Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("failed to count retention cohort: %w", err)
	}
	return size, nil
}

// RetentionDayCounts returns, for each day offset 1..days from the UTC
// calendar day of start, the distinct cohort users active on that day.
// Days with no activity are absent from the map.
func (db *DB) RetentionDayCounts(ctx context.Context, orgID, projectID, cohortEvent string, start, end time.Time, days int) (map[int]int64, error) {
	baseDay := start.UTC().Truncate(24 * time.Hour)
	activityStart := baseDay.AddDate(0, 0, 1)
	activityEnd := baseDay.AddDate(0, 0, days+1)

	rows, err := db.conn.QueryContext(ctx, `
		WITH cohort AS (
			SELECT user_id
			FROM events
			WHERE org_id = ? AND project_id = ? AND event_name = ?
			GROUP BY user_id
			HAVING MIN(timestamp) >= ? AND MIN(timestamp) <= ?
		)
		SELECT date_diff('day', CAST(? AS DATE), CAST(e.timestamp AS DATE)) AS day,
		       COUNT(DISTINCT e.user_id) AS retained
		FROM events e
		JOIN cohort c ON e.user_id = c.user_id
		WHERE e.org_id = ? AND e.project_id = ?
		  AND e.timestamp >= ? AND e.timestamp < ?
		GROUP BY day
		ORDER BY day`,
		orgID, projectID, cohortEvent, start.UTC(), end.UTC(),
		baseDay,
		orgID, projectID, activityStart, activityEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to query retention activity: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int64, days)
	for rows.Next() {
		var (
			day      int
			retained int64
		)
		if err := rows.Scan(&day, &retained); err != nil {
			return nil, fmt.Errorf("failed to scan retention day: %w", err)
		}
		if day >= 1 && day <= days {
			counts[day] = retained
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("retention iteration failed: %w", err)
	}
	return counts, nil
}

// MetricBuckets returns the time-bucketed series for an event name. Buckets
// are UTC-aligned via date_trunc and sorted ascending.
func (db *DB) MetricBuckets(ctx context.Context, orgID, projectID, eventName string, interval models.MetricInterval, start, end time.Time, filter *models.Filter) ([]models.MetricBucket, error) {
	part, err := truncPart(interval)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT date_trunc('%s', timestamp) AS bucket,
		       COUNT(*) AS cnt,
		       COUNT(DISTINCT user_id) AS uniq
		FROM events
		WHERE org_id = ? AND project_id = ? AND event_name = ?
		  AND timestamp >= ? AND timestamp <= ?`, part)
	args := []any{orgID, projectID, eventName, start.UTC(), end.UTC()}

	if filter != nil {
		clause, filterArgs, err := filterSQL(filter)
		if err != nil {
			return nil, err
		}
		query += " AND " + clause
		args = append(args, filterArgs...)
	}
	query += " GROUP BY bucket ORDER BY bucket"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric buckets: %w", err)
	}
	defer rows.Close()

	buckets := []models.MetricBucket{}
	for rows.Next() {
		var b models.MetricBucket
		if err := rows.Scan(&b.BucketStart, &b.Count, &b.UniqueUsers); err != nil {
			return nil, fmt.Errorf("failed to scan metric bucket: %w", err)
		}
		b.BucketStart = b.BucketStart.UTC()
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metric bucket iteration failed: %w", err)
	}
	return buckets, nil
}

// MetricTotals returns the total count and range-wide distinct user count
// for an event name. The distinct count is computed across the whole range,
// not summed over buckets.
func (db *DB) MetricTotals(ctx context.Context, orgID, projectID, eventName string, start, end time.Time, filter *models.Filter) (count, uniqueUsers int64, err error) {
	query := `
		SELECT COUNT(*), COUNT(DISTINCT user_id)
		FROM events
		WHERE org_id = ? AND project_id = ? AND event_name = ?
		  AND timestamp >= ? AND timestamp <= ?`
	args := []any{orgID, projectID, eventName, start.UTC(), end.UTC()}

	if filter != nil {
		clause, filterArgs, ferr := filterSQL(filter)
		if ferr != nil {
			return 0, 0, ferr
		}
		query += " AND " + clause
		args = append(args, filterArgs...)
	}

	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count, &uniqueUsers); err != nil {
		return 0, 0, fmt.Errorf("failed to query metric totals: %w", err)
	}
	return count, uniqueUsers, nil
}

// EventSummaryRows returns per-event-name aggregates over [start, end],
// descending by count with event name as tie-break.
func (db *DB) EventSummaryRows(ctx context.Context, orgID, projectID string, start, end time.Time) ([]models.EventSummaryItem, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT event_name, COUNT(*) AS cnt, COUNT(DISTINCT user_id) AS uniq
		FROM events
		WHERE org_id = ? AND project_id = ?
		  AND timestamp >= ? AND timestamp <= ?
		GROUP BY event_name
		ORDER BY cnt DESC, event_name ASC`,
		orgID, projectID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query event summary: %w", err)
	}
	defer rows.Close()

	items := []models.EventSummaryItem{}
	for rows.Next() {
		var item models.EventSummaryItem
		if err := rows.Scan(&item.EventName, &item.Count, &item.UniqueUsers); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("summary iteration failed: %w", err)
	}
	return items, nil
}

// UserActivityTotals returns a user's event count and first/last seen
// instants. A zero count means the user has no events under the tenant.
func (db *DB) UserActivityTotals(ctx context.Context, orgID, projectID, userID string) (count int64, firstSeen, lastSeen *time.Time, err error) {
	var minTS, maxTS *time.Time
	err = db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM events
		WHERE org_id = ? AND project_id = ? AND user_id = ?`,
		orgID, projectID, userID).Scan(&count, &minTS, &maxTS)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to query user totals: %w", err)
	}

	if minTS != nil {
		t := minTS.UTC()
		firstSeen = &t
	}
	if maxTS != nil {
		t := maxTS.UTC()
		lastSeen = &t
	}
	return count, firstSeen, lastSeen, nil
}

// UserEventBreakdown returns a user's per-event-name aggregates descending
// by count.
func (db *DB) UserEventBreakdown(ctx context.Context, orgID, projectID, userID string) ([]models.EventSummaryItem, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT event_name, COUNT(*) AS cnt, COUNT(DISTINCT user_id) AS uniq
		FROM events
		WHERE org_id = ? AND project_id = ? AND user_id = ?
		GROUP BY event_name
		ORDER BY cnt DESC, event_name ASC`,
		orgID, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user breakdown: %w", err)
	}
	defer rows.Close()

	items := []models.EventSummaryItem{}
	for rows.Next() {
		var item models.EventSummaryItem
		if err := rows.Scan(&item.EventName, &item.Count, &item.UniqueUsers); err != nil {
			return nil, fmt.Errorf("failed to scan user breakdown row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user breakdown iteration failed: %w", err)
	}
	return items, nil
}

func truncPart(interval models.MetricInterval) (string, error) {
	switch interval {
	case models.IntervalHourly:
		return "hour", nil
	case models.IntervalDaily:
		return "day", nil
	case models.IntervalWeekly:
		// date_trunc('week') is ISO: buckets start on Monday.
		return "week", nil
	case models.IntervalMonthly:
		return "month", nil
	}
	return "", fmt.Errorf("unsupported interval %q", interval)
}
