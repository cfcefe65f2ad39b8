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
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// ResolveRetentionRange applies the defaults for an unspecified cohort
// range: end is now, start reaches back twice the retention horizon so the
// cohort has room to produce the full series.
func ResolveRetentionRange(start, end time.Time, days int, now time.Time) (time.Time, time.Time) {
	if end.IsZero() {
		end = now.UTC()
	}
	if start.IsZero() {
		start = end.Add(-time.Duration(2*days) * 24 * time.Hour)
	}
	return start.UTC(), end.UTC()
}

// Retention computes a day-N retention series for users whose cohort event
// occurred within [start, end]. Day offsets are relative to the UTC
// calendar day of the range start. Days with no retained users are present
// with zero counts.
func (e *Engine) Retention(ctx context.Context, orgID, projectID, cohortEvent string, days int, start, end time.Time) (*models.RetentionAnalytics, error) {
	if days < models.MinRetentionDays || days > models.MaxRetentionDays {
		return nil, fmt.Errorf("days must be between %d and %d", models.MinRetentionDays, models.MaxRetentionDays)
	}

	key := cache.GenerateKey(nsRetention, map[string]string{
		"org":    orgID,
		"proj":   projectID,
		"cohort": cohortEvent,
		"days":   strconv.Itoa(days),
		"start":  start.UTC().Format(time.RFC3339),
		"end":    end.UTC().Format(time.RFC3339),
	})
	if hit, ok := cached[models.RetentionAnalytics](e, key); ok {
		return hit, nil
	}

	cohortSize, err := e.db.RetentionCohortSize(ctx, orgID, projectID, cohortEvent, start, end)
	if err != nil {
		return nil, err
	}

	series := make([]models.RetentionDay, days)
	if cohortSize > 0 {
		counts, err := e.db.RetentionDayCounts(ctx, orgID, projectID, cohortEvent, start, end, days)
		if err != nil {
			return nil, err
		}
		for day := 1; day <= days; day++ {
			retained := counts[day]
			series[day-1] = models.RetentionDay{
				Day:           day,
				RetainedUsers: retained,
				RetentionRate: percentage(retained, cohortSize),
			}
		}
	} else {
		for day := 1; day <= days; day++ {
			series[day-1] = models.RetentionDay{Day: day}
		}
	}

	result := &models.RetentionAnalytics{
		CohortEvent:   cohortEvent,
		CohortSize:    cohortSize,
		Days:          days,
		StartDate:     start.UTC(),
		EndDate:       end.UTC(),
		RetentionData: series,
	}
	e.results.SetWithTTL(key, result, e.queryTTL)
	return result, nil
}
