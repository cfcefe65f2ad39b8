// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/config"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// captureEnqueuer records enqueued batches and can be told to fail.
type captureEnqueuer struct {
	mu      sync.Mutex
	batches [][]models.Event
	fail    bool
}

func (c *captureEnqueuer) EnqueueBatch(_ context.Context, _, _ string, events []models.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("queue down")
	}
	batch := make([]models.Event, len(events))
	copy(batch, events)
	c.batches = append(c.batches, batch)
	return nil
}

func (c *captureEnqueuer) setFail(fail bool) {
	c.mu.Lock()
	c.fail = fail
	c.mu.Unlock()
}

func (c *captureEnqueuer) totalEvents() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.batches {
		n += len(b)
	}
	return n
}

func (c *captureEnqueuer) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *captureEnqueuer) largestBatch() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	largest := 0
	for _, b := range c.batches {
		if len(b) > largest {
			largest = len(b)
		}
	}
	return largest
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestValidateBatch(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	long := strings.Repeat("x", 256)

	tests := []struct {
		name      string
		input     models.EventInput
		wantField string
	}{
		{"missing userId", models.EventInput{EventName: "click"}, "userId"},
		{"missing eventName", models.EventInput{UserID: "u1"}, "eventName"},
		{"userId too long", models.EventInput{UserID: long, EventName: "click"}, "userId"},
		{"eventName too long", models.EventInput{UserID: "u1", EventName: long}, "eventName"},
		{"bad timestamp", models.EventInput{UserID: "u1", EventName: "click", Timestamp: "yesterday"}, "timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accepted, skipped, err := ValidateBatch([]models.EventInput{tt.input}, "org1", "proj1", now, models.MaxBatchSize)
			if err != nil {
				t.Fatalf("ValidateBatch error: %v", err)
			}
			if len(accepted) != 0 {
				t.Fatalf("event accepted, want skip on %s", tt.wantField)
			}
			if len(skipped) != 1 || skipped[0].Field != tt.wantField {
				t.Errorf("skipped = %+v, want field %s", skipped, tt.wantField)
			}
		})
	}
}

func TestValidateBatchAccepts(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	accepted, skipped, err := ValidateBatch([]models.EventInput{
		{UserID: "u1", EventName: "click", Timestamp: "2024-01-01T10:00:00Z"},
		{UserID: "u2", EventName: "view"}, // no timestamp: stamped at receipt
	}, "org1", "proj1", now, models.MaxBatchSize)
	if err != nil {
		t.Fatalf("ValidateBatch error: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("unexpected skips: %+v", skipped)
	}
	if len(accepted) != 2 {
		t.Fatalf("accepted = %d, want 2", len(accepted))
	}
	if !accepted[0].Timestamp.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("parsed timestamp = %v", accepted[0].Timestamp)
	}
	if !accepted[1].Timestamp.Equal(now) {
		t.Errorf("defaulted timestamp = %v, want receipt time", accepted[1].Timestamp)
	}
	if accepted[0].OrgID != "org1" || accepted[0].ProjectID != "proj1" {
		t.Error("tenant identity not stamped")
	}
	if accepted[0].Fingerprint == "" {
		t.Error("fingerprint not computed")
	}
}

func TestValidateBatchSkipIndexes(t *testing.T) {
	now := time.Now().UTC()
	accepted, skipped, err := ValidateBatch([]models.EventInput{
		{UserID: "u1", EventName: "a"},
		{UserID: "", EventName: "b"},
		{UserID: "u3", EventName: "c"},
		{UserID: "u4", EventName: ""},
	}, "org1", "proj1", now, models.MaxBatchSize)
	if err != nil {
		t.Fatalf("ValidateBatch error: %v", err)
	}
	if len(accepted) != 2 {
		t.Errorf("accepted = %d, want 2", len(accepted))
	}
	if len(skipped) != 2 || skipped[0].Index != 1 || skipped[1].Index != 3 {
		t.Errorf("skip indexes = %+v, want 1 and 3", skipped)
	}
}

func TestValidateBatchWholeBatchRejections(t *testing.T) {
	now := time.Now().UTC()

	if _, _, err := ValidateBatch(nil, "org1", "proj1", now, models.MaxBatchSize); err == nil {
		t.Error("empty batch accepted")
	}

	big := make([]models.EventInput, models.MaxBatchSize+1)
	for i := range big {
		big[i] = models.EventInput{UserID: "u", EventName: "e"}
	}
	if _, _, err := ValidateBatch(big, "org1", "proj1", now, models.MaxBatchSize); !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("oversized batch error = %v, want ErrBatchTooLarge", err)
	}

	// A non-positive limit falls back to the default bound.
	if _, _, err := ValidateBatch(big, "org1", "proj1", now, 0); !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("fallback bound error = %v, want ErrBatchTooLarge", err)
	}

	three := []models.EventInput{
		{UserID: "u", EventName: "e"},
		{UserID: "u", EventName: "e"},
		{UserID: "u", EventName: "e"},
	}
	if _, _, err := ValidateBatch(three, "org1", "proj1", now, 2); !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("configured bound error = %v, want ErrBatchTooLarge", err)
	}
}

func TestValidateBatchOversizedProperties(t *testing.T) {
	props := models.Properties{"blob": strings.Repeat("x", models.MaxPropertiesBytes+1)}
	_, skipped, err := ValidateBatch([]models.EventInput{
		{UserID: "u1", EventName: "click", Properties: props},
	}, "org1", "proj1", time.Now().UTC(), models.MaxBatchSize)
	if err != nil {
		t.Fatalf("ValidateBatch error: %v", err)
	}
	if len(skipped) != 1 || skipped[0].Field != "properties" {
		t.Errorf("skipped = %+v, want properties skip", skipped)
	}
}

func TestDeduperFilter(t *testing.T) {
	store := cache.NewMemoryStore()
	d := NewDeduper(store, time.Hour)
	ctx := context.Background()

	ev := models.Event{UserID: "u1", EventName: "click", OrgID: "org1", ProjectID: "proj1",
		Timestamp: time.Now()}
	ev.Fingerprint = ev.ComputeFingerprint()

	fresh, dupes := d.Filter(ctx, []models.Event{ev, ev})
	if len(fresh) != 1 || dupes != 1 {
		t.Errorf("first pass fresh=%d dupes=%d, want 1/1", len(fresh), dupes)
	}

	fresh, dupes = d.Filter(ctx, []models.Event{ev})
	if len(fresh) != 0 || dupes != 1 {
		t.Errorf("second pass fresh=%d dupes=%d, want 0/1", len(fresh), dupes)
	}
}

// failingStore errors on every operation to exercise fail-open paths.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errStoreDown }
func (failingStore) Set(context.Context, string, []byte, time.Duration) error { return errStoreDown }
func (failingStore) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, errStoreDown
}
func (failingStore) Delete(context.Context, string) error { return errStoreDown }
func (failingStore) IncrBy(context.Context, string, int64, time.Duration) (int64, error) {
	return 0, errStoreDown
}
func (failingStore) GetInt64(context.Context, string) (int64, error) { return 0, errStoreDown }
func (failingStore) Close() error                                    { return nil }

func TestDeduperFailsOpen(t *testing.T) {
	d := NewDeduper(failingStore{}, time.Hour)

	ev := models.Event{UserID: "u1", EventName: "click", OrgID: "org1", ProjectID: "proj1",
		Timestamp: time.Now()}
	ev.Fingerprint = ev.ComputeFingerprint()

	fresh, dupes := d.Filter(context.Background(), []models.Event{ev, ev})
	if len(fresh) != 2 || dupes != 0 {
		t.Errorf("fail-open fresh=%d dupes=%d, want 2/0", len(fresh), dupes)
	}
}

func makeEvents(n int, prefix string) []models.Event {
	events := make([]models.Event, n)
	for i := range events {
		events[i] = models.Event{
			UserID: prefix, EventName: "click", OrgID: "org1", ProjectID: "proj1",
			Timestamp: time.Now().Add(time.Duration(i) * time.Millisecond),
		}
	}
	return events
}

func TestBufferSizeTriggeredFlush(t *testing.T) {
	enq := &captureEnqueuer{}
	buf, err := NewBuffer(enq, 5, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Stop(context.Background())

	if err := buf.Add(context.Background(), "org1", "proj1", makeEvents(5, "u")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, func() bool { return enq.totalEvents() == 5 })

	if enq.batchCount() != 1 {
		t.Errorf("batches = %d, want 1", enq.batchCount())
	}
}

func TestBufferFlushNeverExceedsBatchSize(t *testing.T) {
	enq := &captureEnqueuer{}
	buf, err := NewBuffer(enq, 5, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Stop(context.Background())

	// A large add on top of a partly filled buffer detaches more than one
	// batch size at once; the enqueuer must still see bounded batches.
	if err := buf.Add(context.Background(), "org1", "proj1", makeEvents(4, "u")); err != nil {
		t.Fatal(err)
	}
	if err := buf.Add(context.Background(), "org1", "proj1", makeEvents(6, "v")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, func() bool { return enq.totalEvents() == 10 })

	if got := enq.largestBatch(); got > 5 {
		t.Errorf("largest enqueued batch = %d, want <= 5", got)
	}
	if enq.batchCount() != 2 {
		t.Errorf("batches = %d, want 2", enq.batchCount())
	}
}

func TestBufferDrainChunksAccumulatedBacklog(t *testing.T) {
	enq := &captureEnqueuer{fail: true}
	buf, err := NewBuffer(enq, 3, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	// Fail the first flush, then stack more events behind the requeued
	// batch before the queue recovers.
	if err := buf.Add(context.Background(), "org1", "proj1", makeEvents(3, "u")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, func() bool { return buf.Stats().ErrorCount == 1 })
	if err := buf.Add(context.Background(), "org1", "proj1", makeEvents(2, "v")); err != nil {
		t.Fatal(err)
	}

	enq.setFail(false)
	buf.Stop(context.Background())

	if enq.totalEvents() != 5 {
		t.Errorf("events delivered = %d, want 5", enq.totalEvents())
	}
	if got := enq.largestBatch(); got > 3 {
		t.Errorf("largest enqueued batch = %d, want <= 3", got)
	}
}

func TestBufferAgeTriggeredFlush(t *testing.T) {
	enq := &captureEnqueuer{}
	buf, err := NewBuffer(enq, 1000, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	buf.Start()
	defer buf.Stop(context.Background())

	if err := buf.Add(context.Background(), "org1", "proj1", makeEvents(3, "u")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool { return enq.totalEvents() == 3 })
}

func TestBufferStopDrains(t *testing.T) {
	enq := &captureEnqueuer{}
	buf, err := NewBuffer(enq, 1000, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if err := buf.Add(context.Background(), "org1", "proj1", makeEvents(7, "u")); err != nil {
		t.Fatal(err)
	}
	buf.Stop(context.Background())

	if enq.totalEvents() != 7 {
		t.Errorf("drained events = %d, want 7", enq.totalEvents())
	}
	if err := buf.Add(context.Background(), "org1", "proj1", makeEvents(1, "u")); err == nil {
		t.Error("Add after Stop succeeded")
	}
}

func TestBufferRetainsOnEnqueueError(t *testing.T) {
	enq := &captureEnqueuer{fail: true}
	buf, err := NewBuffer(enq, 3, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if err := buf.Add(context.Background(), "org1", "proj1", makeEvents(3, "u")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, func() bool { return buf.Stats().ErrorCount == 1 })

	enq.setFail(false)
	buf.Stop(context.Background())

	if enq.totalEvents() != 3 {
		t.Errorf("events delivered after recovery = %d, want 3", enq.totalEvents())
	}
}

func TestBufferTenantIsolation(t *testing.T) {
	enq := &captureEnqueuer{}
	buf, err := NewBuffer(enq, 2, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Stop(context.Background())

	// One event per tenant: neither reaches the batch size.
	if err := buf.Add(context.Background(), "org1", "proj1", makeEvents(1, "u")); err != nil {
		t.Fatal(err)
	}
	if err := buf.Add(context.Background(), "org2", "proj1", makeEvents(1, "u")); err != nil {
		t.Fatal(err)
	}
	if enq.batchCount() != 0 {
		t.Errorf("batches = %d, want 0 before thresholds", enq.batchCount())
	}
	if got := buf.Stats().PendingTenants; got != 2 {
		t.Errorf("pending tenants = %d, want 2", got)
	}
}

func TestPipelineIngest(t *testing.T) {
	enq := &captureEnqueuer{}
	p, err := NewPipeline(cache.NewMemoryStore(), enq, &config.IngestConfig{
		BatchSize:       1000,
		BufferTimeout:   time.Hour,
		MaxRequestBatch: 1000,
	}, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	result, err := p.Ingest(context.Background(), "org1", "proj1", []models.EventInput{
		{UserID: "u1", EventName: "click", Timestamp: "2024-01-01T10:00:00Z"},
		{UserID: "u1", EventName: "click", Timestamp: "2024-01-01T10:00:00Z"}, // duplicate
		{UserID: "", EventName: "click"},                                      // invalid
	})
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if result.Processed != 1 || result.Duplicates != 1 || len(result.Skipped) != 1 {
		t.Errorf("result = %+v, want processed=1 duplicates=1 skipped=1", result)
	}

	p.Stop(context.Background())
	if enq.totalEvents() != 1 {
		t.Errorf("enqueued = %d, want 1", enq.totalEvents())
	}
}

func TestPipelineHonorsMaxRequestBatch(t *testing.T) {
	enq := &captureEnqueuer{}
	p, err := NewPipeline(cache.NewMemoryStore(), enq, &config.IngestConfig{
		BatchSize:       1000,
		BufferTimeout:   time.Hour,
		MaxRequestBatch: 2,
	}, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Stop(context.Background())

	_, err = p.Ingest(context.Background(), "org1", "proj1", []models.EventInput{
		{UserID: "u1", EventName: "a"},
		{UserID: "u2", EventName: "b"},
		{UserID: "u3", EventName: "c"},
	})
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("Ingest error = %v, want ErrBatchTooLarge", err)
	}
}
