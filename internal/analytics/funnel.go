// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// Funnel computes ordered-step conversion for a stored funnel. A user
// counts for step i only after reaching step i-1: the qualifying occurrence
// is the earliest one at or after the user's step i-1 instant, and when the
// step carries a time window it must also fall within that window.
func (e *Engine) Funnel(ctx context.Context, orgID, projectID, funnelID string, start, end time.Time) (*models.FunnelAnalytics, error) {
	key := cache.GenerateKey(nsFunnel, map[string]string{
		"org":    orgID,
		"proj":   projectID,
		"funnel": funnelID,
		"start":  start.UTC().Format(time.RFC3339),
		"end":    end.UTC().Format(time.RFC3339),
	})
	if hit, ok := cached[models.FunnelAnalytics](e, key); ok {
		return hit, nil
	}

	funnel, err := e.db.GetFunnel(ctx, orgID, projectID, funnelID)
	if err != nil {
		return nil, err
	}

	result, err := e.computeFunnel(ctx, orgID, projectID, funnel, start, end)
	if err != nil {
		return nil, err
	}

	e.results.SetWithTTL(key, result, e.queryTTL)
	return result, nil
}

func (e *Engine) computeFunnel(ctx context.Context, orgID, projectID string, funnel *models.Funnel, start, end time.Time) (*models.FunnelAnalytics, error) {
	// reached maps user -> instant at which they completed the previous
	// step. Seeded below from step 0.
	var reached map[string]time.Time

	steps := make([]models.FunnelStepResult, 0, len(funnel.Steps))

	for i := range funnel.Steps {
		step := &funnel.Steps[i]

		occurrences, err := e.db.StepOccurrences(ctx, orgID, projectID, step.EventName, start, end, step.Filters)
		if err != nil {
			return nil, fmt.Errorf("funnel step %d: %w", i, err)
		}

		next := make(map[string]time.Time)
		if i == 0 {
			for user, times := range occurrences {
				next[user] = times[0]
			}
		} else {
			window := time.Duration(step.TimeWindow) * time.Second
			for user, prev := range reached {
				times, ok := occurrences[user]
				if !ok {
					continue
				}
				if at, ok := firstAtOrAfter(times, prev, window); ok {
					next[user] = at
				}
			}
		}
		reached = next

		steps = append(steps, models.FunnelStepResult{
			EventName: step.EventName,
			Count:     int64(len(reached)),
		})
	}

	fillRates(steps)

	return &models.FunnelAnalytics{
		FunnelID:  funnel.ID,
		Name:      funnel.Name,
		StartDate: start.UTC(),
		EndDate:   end.UTC(),
		Steps:     steps,
	}, nil
}

// firstAtOrAfter returns the earliest timestamp in the ascending list at or
// after prev, bounded by the window when one is set.
func firstAtOrAfter(times []time.Time, prev time.Time, window time.Duration) (time.Time, bool) {
	for _, t := range times {
		if t.Before(prev) {
			continue
		}
		if window > 0 && t.After(prev.Add(window)) {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// fillRates computes step-over-step conversion percentages in place.
// Conversion at step i is count_i over count_{i-1}; drop-off is its
// complement. Step one converts at 100% whenever anyone entered.
func fillRates(steps []models.FunnelStepResult) {
	for i := range steps {
		if i == 0 {
			if steps[0].Count > 0 {
				steps[0].ConversionRate = 100
			}
			continue
		}
		prev := steps[i-1].Count
		if prev > 0 {
			steps[i].ConversionRate = percentage(steps[i].Count, prev)
			steps[i].DropOffRate = round2(100 - steps[i].ConversionRate)
		}
	}
}
