// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/metrics"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// flushTimeout bounds a single enqueue attempt during flush.
const flushTimeout = 10 * time.Second

// Enqueuer hands a detached batch to the durable queue. Implemented by the
// queue publisher and by fakes in tests.
type Enqueuer interface {
	EnqueueBatch(ctx context.Context, orgID, projectID string, events []models.Event) error
}

// BufferStats holds runtime counters for monitoring.
type BufferStats struct {
	EventsBuffered int64 `json:"eventsBuffered"`
	EventsFlushed  int64 `json:"eventsFlushed"`
	FlushCount     int64 `json:"flushCount"`
	ErrorCount     int64 `json:"errorCount"`
	PendingEvents  int   `json:"pendingEvents"`
	PendingTenants int   `json:"pendingTenants"`
}

// Buffer accumulates validated events per tenant and hands them to the
// queue in batches, either when a tenant's buffer reaches the batch size or
// when its oldest event exceeds the age limit.
//
// Flushes detach the tenant's slice under the lock and enqueue outside it,
// so a slow queue never blocks ingestion of other tenants. On enqueue
// failure the batch is prepended back so a later flush retries it.
type Buffer struct {
	enqueuer  Enqueuer
	batchSize int
	maxAge    time.Duration

	mu      sync.Mutex
	tenants map[string]*tenantBuffer

	started  atomic.Bool
	closed   atomic.Bool
	stopChan chan struct{}
	doneChan chan struct{}
	flushWg  sync.WaitGroup

	eventsBuffered atomic.Int64
	eventsFlushed  atomic.Int64
	flushCount     atomic.Int64
	errorCount     atomic.Int64
}

type tenantBuffer struct {
	orgID     string
	projectID string
	events    []models.Event
	oldest    time.Time
}

// NewBuffer creates a buffer flushing at batchSize events or maxAge
// staleness, whichever comes first.
func NewBuffer(enqueuer Enqueuer, batchSize int, maxAge time.Duration) (*Buffer, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("enqueuer required")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("max age must be positive")
	}
	return &Buffer{
		enqueuer:  enqueuer,
		batchSize: batchSize,
		maxAge:    maxAge,
		tenants:   make(map[string]*tenantBuffer),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}, nil
}

// Start launches the age sweeper. Idempotent.
func (b *Buffer) Start() {
	if b.closed.Load() || b.started.Swap(true) {
		return
	}
	go b.sweepLoop()
}

// Add appends events to the tenant's buffer. A buffer reaching the batch
// size is detached and enqueued asynchronously.
func (b *Buffer) Add(ctx context.Context, orgID, projectID string, events []models.Event) error {
	if b.closed.Load() {
		return fmt.Errorf("buffer is closed")
	}
	if len(events) == 0 {
		return nil
	}

	key := models.TenantKey(orgID, projectID)

	b.mu.Lock()
	tb, ok := b.tenants[key]
	if !ok {
		tb = &tenantBuffer{orgID: orgID, projectID: projectID}
		b.tenants[key] = tb
	}
	if len(tb.events) == 0 {
		tb.oldest = time.Now()
	}
	tb.events = append(tb.events, events...)
	b.eventsBuffered.Add(int64(len(events)))
	metrics.BufferedEvents.Add(float64(len(events)))

	var batch []models.Event
	if len(tb.events) >= b.batchSize {
		batch = tb.events
		tb.events = nil
	}
	b.mu.Unlock()

	if batch != nil {
		metrics.BufferedEvents.Sub(float64(len(batch)))
		b.flushAsync(orgID, projectID, batch)
	}
	return nil
}

// flushAsync enqueues a detached batch on its own goroutine. The caller's
// context is not used: the request may complete before the flush does.
func (b *Buffer) flushAsync(orgID, projectID string, batch []models.Event) {
	b.flushWg.Add(1)
	go func() {
		defer b.flushWg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		b.flush(ctx, orgID, projectID, batch)
	}()
}

// flush hands a detached slice to the queue in chunks of at most batchSize.
// The slice can exceed batchSize when a large request lands on a partly
// filled buffer, or after a requeue; no enqueued batch ever does. On enqueue
// failure the failed chunk and everything behind it go back for retry.
func (b *Buffer) flush(ctx context.Context, orgID, projectID string, batch []models.Event) {
	for len(batch) > 0 {
		n := len(batch)
		if n > b.batchSize {
			n = b.batchSize
		}
		chunk := batch[:n]

		b.flushCount.Add(1)
		if err := b.enqueuer.EnqueueBatch(ctx, orgID, projectID, chunk); err != nil {
			b.errorCount.Add(1)
			logging.Error().Err(err).
				Str("tenant", models.TenantKey(orgID, projectID)).
				Int("events", len(batch)).
				Msg("Failed to enqueue batch, retaining for retry")
			b.requeue(orgID, projectID, batch)
			return
		}
		b.eventsFlushed.Add(int64(n))
		logging.Debug().
			Str("tenant", models.TenantKey(orgID, projectID)).
			Int("events", n).
			Msg("Batch enqueued")
		batch = batch[n:]
	}
}

// requeue prepends a failed batch so event order is preserved on retry.
func (b *Buffer) requeue(orgID, projectID string, batch []models.Event) {
	key := models.TenantKey(orgID, projectID)

	b.mu.Lock()
	defer b.mu.Unlock()
	tb, ok := b.tenants[key]
	if !ok {
		tb = &tenantBuffer{orgID: orgID, projectID: projectID}
		b.tenants[key] = tb
	}
	tb.events = append(batch, tb.events...)
	tb.oldest = time.Now().Add(-b.maxAge) // flush again on the next sweep
	metrics.BufferedEvents.Add(float64(len(batch)))
}

// sweepLoop flushes tenant buffers whose oldest event exceeds maxAge. The
// sweep interval is a fraction of the age limit so staleness overshoot
// stays small.
func (b *Buffer) sweepLoop() {
	defer close(b.doneChan)

	interval := b.maxAge / 4
	if interval < 50*time.Millisecond {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.sweep()
		}
	}
}

func (b *Buffer) sweep() {
	now := time.Now()

	type stale struct {
		orgID, projectID string
		events           []models.Event
	}
	var due []stale

	b.mu.Lock()
	for _, tb := range b.tenants {
		if len(tb.events) == 0 || now.Sub(tb.oldest) < b.maxAge {
			continue
		}
		metrics.BufferedEvents.Sub(float64(len(tb.events)))
		due = append(due, stale{tb.orgID, tb.projectID, tb.events})
		tb.events = nil
	}
	b.mu.Unlock()

	for _, s := range due {
		b.flushAsync(s.orgID, s.projectID, s.events)
	}
}

// FlushAll synchronously drains every tenant buffer. Used at shutdown.
func (b *Buffer) FlushAll(ctx context.Context) {
	b.mu.Lock()
	type pending struct {
		orgID, projectID string
		events           []models.Event
	}
	var all []pending
	for _, tb := range b.tenants {
		if len(tb.events) == 0 {
			continue
		}
		metrics.BufferedEvents.Sub(float64(len(tb.events)))
		all = append(all, pending{tb.orgID, tb.projectID, tb.events})
		tb.events = nil
	}
	b.mu.Unlock()

	for _, p := range all {
		b.flush(ctx, p.orgID, p.projectID, p.events)
	}
}

// Stop halts the sweeper, waits for in-flight flushes, and drains what
// remains. Safe to call once.
func (b *Buffer) Stop(ctx context.Context) {
	if b.closed.Swap(true) {
		return
	}
	if b.started.Load() {
		close(b.stopChan)
		<-b.doneChan
	}
	b.flushWg.Wait()
	b.FlushAll(ctx)
}

// Stats returns a snapshot of the buffer counters.
func (b *Buffer) Stats() BufferStats {
	b.mu.Lock()
	pendingEvents := 0
	pendingTenants := 0
	for _, tb := range b.tenants {
		if len(tb.events) > 0 {
			pendingTenants++
			pendingEvents += len(tb.events)
		}
	}
	b.mu.Unlock()

	return BufferStats{
		EventsBuffered: b.eventsBuffered.Load(),
		EventsFlushed:  b.eventsFlushed.Load(),
		FlushCount:     b.flushCount.Load(),
		ErrorCount:     b.errorCount.Load(),
		PendingEvents:  pendingEvents,
		PendingTenants: pendingTenants,
	}
}
