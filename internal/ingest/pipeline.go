// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/config"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// Pipeline is the ingest write path: validate, dedup, buffer. An event
// counted as processed is in a buffer or already on the queue; it is not
// yet queryable.
type Pipeline struct {
	deduper  *Deduper
	buffer   *Buffer
	maxBatch int
}

// NewPipeline wires the pipeline from its dependencies.
func NewPipeline(store cache.Store, enqueuer Enqueuer, ingestCfg *config.IngestConfig, dedupTTL time.Duration) (*Pipeline, error) {
	buffer, err := NewBuffer(enqueuer, ingestCfg.BatchSize, ingestCfg.BufferTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest buffer: %w", err)
	}
	return &Pipeline{
		deduper:  NewDeduper(store, dedupTTL),
		buffer:   buffer,
		maxBatch: ingestCfg.MaxRequestBatch,
	}, nil
}

// Start launches the buffer's age sweeper.
func (p *Pipeline) Start() {
	p.buffer.Start()
}

// Ingest runs a tenant's batch through validation, dedup, and buffering,
// and reports what happened to each event. Returns an error only for
// whole-batch rejections (empty or oversized).
func (p *Pipeline) Ingest(ctx context.Context, orgID, projectID string, inputs []models.EventInput) (*models.IngestResult, error) {
	receivedAt := time.Now().UTC()

	accepted, skipped, err := ValidateBatch(inputs, orgID, projectID, receivedAt, p.maxBatch)
	if err != nil {
		return nil, err
	}

	fresh, duplicates := p.deduper.Filter(ctx, accepted)

	if err := p.buffer.Add(ctx, orgID, projectID, fresh); err != nil {
		return nil, fmt.Errorf("failed to buffer events: %w", err)
	}

	logging.Ctx(ctx).Debug().
		Str("tenant", models.TenantKey(orgID, projectID)).
		Int("received", len(inputs)).
		Int("processed", len(fresh)).
		Int("duplicates", duplicates).
		Int("skipped", len(skipped)).
		Msg("Batch ingested")

	return &models.IngestResult{
		Processed:  len(fresh),
		Duplicates: duplicates,
		Skipped:    skipped,
		Timestamp:  receivedAt,
	}, nil
}

// Stats returns the buffer counters.
func (p *Pipeline) Stats() BufferStats {
	return p.buffer.Stats()
}

// Stop drains all buffers. Called during graceful shutdown before the queue
// publisher closes.
func (p *Pipeline) Stop(ctx context.Context) {
	p.buffer.Stop(ctx)
}
