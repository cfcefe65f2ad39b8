// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/config"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/database"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

func newTestEngine(t *testing.T) (*Engine, *database.DB) {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{Path: "", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	results := cache.NewResultCache(time.Minute)
	t.Cleanup(func() {
		results.Stop()
		_ = db.Close()
	})
	return NewEngine(db, results, 30*time.Minute, 5*time.Minute), db
}

func insert(t *testing.T, db *database.DB, userID, eventName string, ts time.Time, props models.Properties) {
	t.Helper()
	outcome, err := db.InsertEvents(context.Background(), []models.Event{{
		UserID: userID, EventName: eventName, Timestamp: ts,
		OrgID: "org1", ProjectID: "proj1", Properties: props,
	}})
	if err != nil || len(outcome.Failures) != 0 {
		t.Fatalf("insert failed: %v %+v", err, outcome)
	}
}

func createFunnel(t *testing.T, db *database.DB, steps ...models.FunnelStep) *models.Funnel {
	t.Helper()
	funnel, err := db.CreateFunnel(context.Background(), "org1", "proj1", &models.FunnelInput{
		Name:  "test-funnel",
		Steps: steps,
	})
	if err != nil {
		t.Fatalf("CreateFunnel error: %v", err)
	}
	return funnel
}

func TestFunnelOrderedMembership(t *testing.T) {
	engine, db := newTestEngine(t)
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	// u1 converts fully in order.
	insert(t, db, "u1", "view", base, nil)
	insert(t, db, "u1", "signup", base.Add(time.Minute), nil)
	insert(t, db, "u1", "purchase", base.Add(2*time.Minute), nil)
	// u2 reaches step two only.
	insert(t, db, "u2", "view", base, nil)
	insert(t, db, "u2", "signup", base.Add(time.Minute), nil)
	// u3 does the steps backwards: purchase before signup must not count.
	insert(t, db, "u3", "view", base, nil)
	insert(t, db, "u3", "purchase", base.Add(time.Minute), nil)
	insert(t, db, "u3", "signup", base.Add(2*time.Minute), nil)
	// u4 never does step one.
	insert(t, db, "u4", "signup", base, nil)
	insert(t, db, "u4", "purchase", base.Add(time.Minute), nil)

	funnel := createFunnel(t, db,
		models.FunnelStep{EventName: "view"},
		models.FunnelStep{EventName: "signup"},
		models.FunnelStep{EventName: "purchase"},
	)

	result, err := engine.Funnel(context.Background(), "org1", "proj1", funnel.ID,
		base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Funnel error: %v", err)
	}

	counts := []int64{result.Steps[0].Count, result.Steps[1].Count, result.Steps[2].Count}
	// view: u1,u2,u3. signup after view: u1,u2,u3. purchase after signup: u1.
	if counts[0] != 3 || counts[1] != 3 || counts[2] != 1 {
		t.Errorf("step counts = %v, want [3 3 1]", counts)
	}

	if result.Steps[0].ConversionRate != 100 {
		t.Errorf("step1 conversion = %v, want 100", result.Steps[0].ConversionRate)
	}
	if result.Steps[1].ConversionRate != 100 {
		t.Errorf("step2 conversion = %v, want 100", result.Steps[1].ConversionRate)
	}
	if result.Steps[2].ConversionRate != 33.33 {
		t.Errorf("step3 conversion = %v, want 33.33", result.Steps[2].ConversionRate)
	}
	if result.Steps[2].DropOffRate != 66.67 {
		t.Errorf("step3 dropoff = %v, want 66.67", result.Steps[2].DropOffRate)
	}
}

func TestFunnelTimeWindow(t *testing.T) {
	engine, db := newTestEngine(t)
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	// u1 purchases within the hour, u2 a day later.
	insert(t, db, "u1", "view", base, nil)
	insert(t, db, "u1", "purchase", base.Add(30*time.Minute), nil)
	insert(t, db, "u2", "view", base, nil)
	insert(t, db, "u2", "purchase", base.Add(24*time.Hour), nil)

	funnel := createFunnel(t, db,
		models.FunnelStep{EventName: "view"},
		models.FunnelStep{EventName: "purchase", TimeWindow: 3600},
	)

	result, err := engine.Funnel(context.Background(), "org1", "proj1", funnel.ID,
		base.Add(-time.Hour), base.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("Funnel error: %v", err)
	}
	if result.Steps[0].Count != 2 || result.Steps[1].Count != 1 {
		t.Errorf("counts = [%d %d], want [2 1]", result.Steps[0].Count, result.Steps[1].Count)
	}
}

func TestFunnelWithStepFilter(t *testing.T) {
	engine, db := newTestEngine(t)
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	insert(t, db, "u1", "view", base, nil)
	insert(t, db, "u1", "purchase", base.Add(time.Minute), models.Properties{"plan": "pro"})
	insert(t, db, "u2", "view", base, nil)
	insert(t, db, "u2", "purchase", base.Add(time.Minute), models.Properties{"plan": "free"})

	funnel := createFunnel(t, db,
		models.FunnelStep{EventName: "view"},
		models.FunnelStep{
			EventName: "purchase",
			Filters:   &models.Filter{Op: models.FilterEq, Field: "plan", Value: "pro"},
		},
	)

	result, err := engine.Funnel(context.Background(), "org1", "proj1", funnel.ID,
		base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Funnel error: %v", err)
	}
	if result.Steps[1].Count != 1 {
		t.Errorf("filtered step count = %d, want 1", result.Steps[1].Count)
	}
}

func TestFunnelUnknownID(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Funnel(context.Background(), "org1", "proj1", "nope",
		time.Now().Add(-time.Hour), time.Now())
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestFunnelResultCached(t *testing.T) {
	engine, db := newTestEngine(t)
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	insert(t, db, "u1", "view", base, nil)
	insert(t, db, "u1", "signup", base.Add(time.Minute), nil)
	funnel := createFunnel(t, db,
		models.FunnelStep{EventName: "view"},
		models.FunnelStep{EventName: "signup"},
	)

	start, end := base.Add(-time.Hour), base.Add(time.Hour)
	first, err := engine.Funnel(context.Background(), "org1", "proj1", funnel.ID, start, end)
	if err != nil {
		t.Fatal(err)
	}

	// New events after caching are invisible until the TTL expires.
	insert(t, db, "u9", "view", base, nil)

	second, err := engine.Funnel(context.Background(), "org1", "proj1", funnel.ID, start, end)
	if err != nil {
		t.Fatal(err)
	}
	if second.Steps[0].Count != first.Steps[0].Count {
		t.Errorf("cached count = %d, want %d", second.Steps[0].Count, first.Steps[0].Count)
	}
	if engine.CacheStats().Hits == 0 {
		t.Error("second query did not hit the cache")
	}
}

func TestRetention(t *testing.T) {
	engine, db := newTestEngine(t)
	day0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	insert(t, db, "u1", "signup", day0, nil)
	insert(t, db, "u2", "signup", day0, nil)
	insert(t, db, "u1", "open", day0.AddDate(0, 0, 1), nil)
	insert(t, db, "u1", "open", day0.AddDate(0, 0, 3), nil)
	insert(t, db, "u2", "open", day0.AddDate(0, 0, 3), nil)

	result, err := engine.Retention(context.Background(), "org1", "proj1", "signup", 3,
		day0.Add(-time.Hour), day0.Add(time.Hour))
	if err != nil {
		t.Fatalf("Retention error: %v", err)
	}

	if result.CohortSize != 2 {
		t.Errorf("cohort size = %d, want 2", result.CohortSize)
	}
	if len(result.RetentionData) != 3 {
		t.Fatalf("series length = %d, want 3", len(result.RetentionData))
	}
	// Day 1: u1. Day 2: nobody (zero-filled). Day 3: both.
	if result.RetentionData[0].RetainedUsers != 1 || result.RetentionData[0].RetentionRate != 50 {
		t.Errorf("day1 = %+v, want 1 user / 50%%", result.RetentionData[0])
	}
	if result.RetentionData[1].RetainedUsers != 0 {
		t.Errorf("day2 = %+v, want zero-filled", result.RetentionData[1])
	}
	if result.RetentionData[2].RetainedUsers != 2 || result.RetentionData[2].RetentionRate != 100 {
		t.Errorf("day3 = %+v, want 2 users / 100%%", result.RetentionData[2])
	}
}

func TestRetentionBounds(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now().UTC()
	for _, days := range []int{0, -1, 366} {
		if _, err := engine.Retention(context.Background(), "org1", "proj1", "signup", days,
			now.Add(-time.Hour), now); err == nil {
			t.Errorf("days=%d accepted", days)
		}
	}
}

func TestResolveRanges(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	start, end := ResolveMetricsRange(time.Time{}, time.Time{}, now)
	if !end.Equal(now) || !start.Equal(now.Add(-30*24*time.Hour)) {
		t.Errorf("metrics defaults = [%v %v]", start, end)
	}

	start, end = ResolveRetentionRange(time.Time{}, time.Time{}, 7, now)
	if !end.Equal(now) || !start.Equal(now.Add(-14*24*time.Hour)) {
		t.Errorf("retention defaults = [%v %v]", start, end)
	}

	explicit := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	start, _ = ResolveMetricsRange(explicit, now, now)
	if !start.Equal(explicit) {
		t.Error("explicit start overridden")
	}
}

func TestMetrics(t *testing.T) {
	engine, db := newTestEngine(t)
	day1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	insert(t, db, "u1", "click", day1, nil)
	insert(t, db, "u1", "click", day1.Add(time.Hour), nil)
	insert(t, db, "u2", "click", day1.AddDate(0, 0, 1), nil)

	result, err := engine.Metrics(context.Background(), "org1", "proj1", "click",
		models.IntervalDaily, day1.Add(-time.Hour), day1.AddDate(0, 0, 2), nil)
	if err != nil {
		t.Fatalf("Metrics error: %v", err)
	}
	if len(result.Buckets) != 2 {
		t.Fatalf("buckets = %d, want 2", len(result.Buckets))
	}
	if result.TotalCount != 3 || result.TotalUniqueUsers != 2 {
		t.Errorf("totals = %d/%d, want 3/2", result.TotalCount, result.TotalUniqueUsers)
	}
}

func TestEventSummary(t *testing.T) {
	engine, db := newTestEngine(t)
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	insert(t, db, "u1", "view", base, nil)
	insert(t, db, "u2", "view", base.Add(time.Minute), nil)
	insert(t, db, "u1", "click", base.Add(2*time.Minute), nil)

	result, err := engine.EventSummary(context.Background(), "org1", "proj1",
		base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("EventSummary error: %v", err)
	}
	if result.TotalEvents != 3 || result.TotalUniqueUsers != 2 {
		t.Errorf("totals = %d/%d, want 3/2", result.TotalEvents, result.TotalUniqueUsers)
	}
	if len(result.Events) != 2 || result.Events[0].EventName != "view" {
		t.Errorf("events = %+v, want view first", result.Events)
	}
}

func TestUserJourneyAndSummary(t *testing.T) {
	engine, db := newTestEngine(t)
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	insert(t, db, "u1", "view", base.Add(time.Minute), nil)
	insert(t, db, "u1", "click", base, nil)

	journey, err := engine.UserJourney(context.Background(), "org1", "proj1", "u1",
		base.Add(-time.Hour), base.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("UserJourney error: %v", err)
	}
	if len(journey.Events) != 2 || journey.Events[0].EventName != "click" {
		t.Errorf("journey order wrong: %+v", journey.Events)
	}

	if _, err := engine.UserJourney(context.Background(), "org1", "proj1", "ghost",
		base.Add(-time.Hour), base.Add(time.Hour), 0); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("unknown user error = %v, want ErrNotFound", err)
	}

	summary, err := engine.UserSummary(context.Background(), "org1", "proj1", "u1")
	if err != nil {
		t.Fatalf("UserSummary error: %v", err)
	}
	if summary.TotalEvents != 2 {
		t.Errorf("total events = %d, want 2", summary.TotalEvents)
	}
	if summary.FirstSeen == nil || !summary.FirstSeen.Equal(base) {
		t.Errorf("firstSeen = %v, want %v", summary.FirstSeen, base)
	}

	if _, err := engine.UserSummary(context.Background(), "org1", "proj1", "ghost"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("unknown user summary error = %v, want ErrNotFound", err)
	}
}

func TestUserEventsPagination(t *testing.T) {
	engine, db := newTestEngine(t)
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		insert(t, db, "u1", "click", base.Add(time.Duration(i)*time.Minute), nil)
	}

	events, total, err := engine.UserEvents(context.Background(), "org1", "proj1", "u1", "",
		base.Add(-time.Hour), base.Add(time.Hour), 2, 2)
	if err != nil {
		t.Fatalf("UserEvents error: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(events) != 2 {
		t.Errorf("page size = %d, want 2", len(events))
	}
	// Newest first: page at offset 2 starts at the third newest.
	if !events[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("page start = %v", events[0].Timestamp)
	}
}

func TestRounding(t *testing.T) {
	if got := percentage(1, 3); got != 33.33 {
		t.Errorf("percentage(1,3) = %v, want 33.33", got)
	}
	if got := percentage(2, 3); got != 66.67 {
		t.Errorf("percentage(2,3) = %v, want 66.67", got)
	}
	if got := percentage(5, 0); got != 0 {
		t.Errorf("percentage(5,0) = %v, want 0", got)
	}
	if got := round2(0.125); got != 0.13 {
		t.Errorf("round2(0.125) = %v, want 0.13", got)
	}
}
