// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/config"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/database"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

func TestBatchRoundTrip(t *testing.T) {
	in := &Batch{
		OrgID:     "org1",
		ProjectID: "proj1",
		Events: []models.Event{
			{UserID: "u1", EventName: "click", OrgID: "org1", ProjectID: "proj1",
				Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		},
	}

	payload, err := MarshalBatch(in)
	if err != nil {
		t.Fatalf("MarshalBatch error: %v", err)
	}
	out, err := UnmarshalBatch(payload)
	if err != nil {
		t.Fatalf("UnmarshalBatch error: %v", err)
	}
	if out.OrgID != "org1" || out.ProjectID != "proj1" || len(out.Events) != 1 {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if out.Events[0].EventName != "click" {
		t.Errorf("event name = %q", out.Events[0].EventName)
	}
}

func TestUnmarshalBatchRejectsMissingTenant(t *testing.T) {
	if _, err := UnmarshalBatch([]byte(`{"events":[]}`)); err == nil {
		t.Error("batch without tenant accepted")
	}
	if _, err := UnmarshalBatch([]byte(`not json`)); err == nil {
		t.Error("malformed payload accepted")
	}
}

func TestHistoryBounds(t *testing.T) {
	h := NewHistory()
	for i := 0; i < maxCompletedJobs+20; i++ {
		h.RecordCompleted(JobRecord{MessageID: fmt.Sprintf("c%d", i)})
	}
	for i := 0; i < maxFailedJobs+5; i++ {
		h.RecordFailed(JobRecord{MessageID: fmt.Sprintf("f%d", i)})
	}

	completed, failed := h.Snapshot()
	if len(completed) != maxCompletedJobs {
		t.Errorf("completed = %d, want %d", len(completed), maxCompletedJobs)
	}
	if len(failed) != maxFailedJobs {
		t.Errorf("failed = %d, want %d", len(failed), maxFailedJobs)
	}
	// Oldest entries dropped.
	if completed[0].MessageID != "c20" {
		t.Errorf("oldest completed = %s, want c20", completed[0].MessageID)
	}
}

func TestWatermillLoggerWith(t *testing.T) {
	base := NewWatermillLogger()
	child := base.With(watermill.LogFields{"a": 1})
	grandchild := child.With(watermill.LogFields{"b": 2})

	wl, ok := grandchild.(*watermillLogger)
	if !ok {
		t.Fatalf("unexpected adapter type %T", grandchild)
	}
	if wl.fields["a"] != 1 || wl.fields["b"] != 2 {
		t.Errorf("merged fields = %v", wl.fields)
	}
	// Parent is unchanged.
	if len(base.(*watermillLogger).fields) != 0 {
		t.Error("With mutated the parent logger")
	}
}

// captureNotifier records fan-out calls.
type captureNotifier struct {
	mu     sync.Mutex
	orgID  string
	events int
}

func (n *captureNotifier) NotifyEvents(orgID, _ string, events []models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orgID = orgID
	n.events += len(events)
}

func newTestConsumer(t *testing.T, notifier Notifier) (*Consumer, *database.DB, cache.Store) {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{Path: "", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := cache.NewMemoryStore()
	return &Consumer{
		db:          db,
		store:       store,
		notifier:    notifier,
		history:     NewHistory(),
		concurrency: 1,
	}, db, store
}

func TestConsumerHandlePersistsAndNotifies(t *testing.T) {
	notifier := &captureNotifier{}
	consumer, db, store := newTestConsumer(t, notifier)
	ctx := context.Background()

	batch := &Batch{
		OrgID:     "org1",
		ProjectID: "proj1",
		Events: []models.Event{
			{UserID: "u1", EventName: "click", OrgID: "org1", ProjectID: "proj1",
				Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
			{UserID: "u2", EventName: "view", OrgID: "org1", ProjectID: "proj1",
				Timestamp: time.Date(2024, 1, 1, 10, 1, 0, 0, time.UTC)},
		},
	}
	payload, err := MarshalBatch(batch)
	if err != nil {
		t.Fatal(err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	consumer.handle(ctx, msg)

	events, err := db.ScanEvents(ctx, "org1", "proj1", database.ScanOptions{Ascending: true})
	if err != nil {
		t.Fatalf("ScanEvents error: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("persisted events = %d, want 2", len(events))
	}

	total, err := store.GetInt64(ctx, cache.EventCountKey("org1", "proj1"))
	if err != nil || total != 2 {
		t.Errorf("tenant counter = %d (err %v), want 2", total, err)
	}
	clicks, err := store.GetInt64(ctx, cache.EventNameCountKey("org1", "proj1", "click"))
	if err != nil || clicks != 1 {
		t.Errorf("click counter = %d (err %v), want 1", clicks, err)
	}

	if notifier.events != 2 || notifier.orgID != "org1" {
		t.Errorf("notifier got %d events for %q, want 2 for org1", notifier.events, notifier.orgID)
	}

	completed, failed := consumer.history.Snapshot()
	if len(completed) != 1 || len(failed) != 0 {
		t.Errorf("history completed=%d failed=%d, want 1/0", len(completed), len(failed))
	}
}

func TestConsumerHandleMalformedPayload(t *testing.T) {
	consumer, _, _ := newTestConsumer(t, nil)

	msg := message.NewMessage(watermill.NewUUID(), []byte("garbage"))
	consumer.handle(context.Background(), msg)

	completed, failed := consumer.history.Snapshot()
	if len(completed) != 0 || len(failed) != 1 {
		t.Errorf("history completed=%d failed=%d, want 0/1", len(completed), len(failed))
	}

	// Poison messages must be acked, not redelivered.
	select {
	case <-msg.Acked():
	case <-time.After(time.Second):
		t.Error("malformed message was not acked")
	}
}
