// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/config"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAllowWithinBudget(t *testing.T) {
	l := NewLimiter(cache.NewMemoryStore(), false)
	// Mid-window so the previous bucket weight is stable.
	l.now = fixedClock(time.Date(2024, 1, 1, 10, 0, 30, 0, time.UTC))

	class := Class{Name: "test", Window: time.Minute, Max: 3}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d := l.Allow(ctx, class, "caller1")
		if !d.Allowed {
			t.Fatalf("request %d denied within budget", i+1)
		}
		if d.Remaining != int64(3-(i+1)) {
			t.Errorf("request %d remaining = %d, want %d", i+1, d.Remaining, 3-(i+1))
		}
	}

	d := l.Allow(ctx, class, "caller1")
	if d.Allowed {
		t.Error("request over budget allowed")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > class.Window {
		t.Errorf("retryAfter = %v, want within (0, window]", d.RetryAfter)
	}
}

func TestCallersAreIndependent(t *testing.T) {
	l := NewLimiter(cache.NewMemoryStore(), false)
	l.now = fixedClock(time.Date(2024, 1, 1, 10, 0, 30, 0, time.UTC))

	class := Class{Name: "test", Window: time.Minute, Max: 1}
	ctx := context.Background()

	if d := l.Allow(ctx, class, "a"); !d.Allowed {
		t.Error("caller a denied")
	}
	if d := l.Allow(ctx, class, "a"); d.Allowed {
		t.Error("caller a second request allowed")
	}
	if d := l.Allow(ctx, class, "b"); !d.Allowed {
		t.Error("caller b throttled by caller a")
	}
}

func TestClassesAreIndependent(t *testing.T) {
	l := NewLimiter(cache.NewMemoryStore(), false)
	l.now = fixedClock(time.Date(2024, 1, 1, 10, 0, 30, 0, time.UTC))
	ctx := context.Background()

	tight := Class{Name: "tight", Window: time.Minute, Max: 1}
	loose := Class{Name: "loose", Window: time.Minute, Max: 100}

	l.Allow(ctx, tight, "caller")
	if d := l.Allow(ctx, tight, "caller"); d.Allowed {
		t.Error("tight class over budget allowed")
	}
	if d := l.Allow(ctx, loose, "caller"); !d.Allowed {
		t.Error("loose class throttled by tight class")
	}
}

func TestPreviousWindowWeighting(t *testing.T) {
	store := cache.NewMemoryStore()
	l := NewLimiter(store, false)
	class := Class{Name: "test", Window: time.Minute, Max: 10}
	ctx := context.Background()

	// Fill the previous window to the brim.
	prevTime := time.Date(2024, 1, 1, 10, 0, 30, 0, time.UTC)
	l.now = fixedClock(prevTime)
	for i := 0; i < 10; i++ {
		l.Allow(ctx, class, "caller")
	}

	// At the window boundary the whole previous load still counts.
	l.now = fixedClock(time.Date(2024, 1, 1, 10, 1, 0, 0, time.UTC))
	if d := l.Allow(ctx, class, "caller"); d.Allowed {
		t.Error("boundary burst allowed despite weighted carry-over")
	}

	// Near the end of the next window the carry-over has decayed.
	l.now = fixedClock(time.Date(2024, 1, 1, 10, 1, 54, 0, time.UTC)) // 90% elapsed
	if d := l.Allow(ctx, class, "caller"); !d.Allowed {
		t.Error("request denied after carry-over decay")
	}
}

func TestDisabledLimiter(t *testing.T) {
	l := NewLimiter(cache.NewMemoryStore(), true)
	class := Class{Name: "test", Window: time.Minute, Max: 1}
	for i := 0; i < 10; i++ {
		if d := l.Allow(context.Background(), class, "caller"); !d.Allowed {
			t.Fatal("disabled limiter denied a request")
		}
	}
}

func TestFailsOpenOnStoreError(t *testing.T) {
	l := NewLimiter(failingStore{}, false)
	class := Class{Name: "test", Window: time.Minute, Max: 1}
	for i := 0; i < 5; i++ {
		if d := l.Allow(context.Background(), class, "caller"); !d.Allowed {
			t.Fatal("limiter failed closed on store error")
		}
	}
}

func TestGeneralClassFromConfig(t *testing.T) {
	class := GeneralClass(&config.RateLimitConfig{Window: 15 * time.Minute, MaxRequests: 100})
	if class.Window != 15*time.Minute || class.Max != 100 || class.Name != "general" {
		t.Errorf("general class = %+v", class)
	}
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, context.DeadlineExceeded
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return context.DeadlineExceeded
}
func (failingStore) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, context.DeadlineExceeded
}
func (failingStore) Delete(context.Context, string) error { return context.DeadlineExceeded }
func (failingStore) IncrBy(context.Context, string, int64, time.Duration) (int64, error) {
	return 0, context.DeadlineExceeded
}
func (failingStore) GetInt64(context.Context, string) (int64, error) {
	return 0, context.DeadlineExceeded
}
func (failingStore) Close() error { return nil }
