// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package ingest

import (
	"context"
	"time"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// dedupMarker is the value stored under a fingerprint key. Only the key's
// existence matters.
var dedupMarker = []byte("1")

// Deduper filters duplicate events using fingerprint markers in the KV
// store. Store failures fail OPEN: an event is treated as fresh and the
// database's unique fingerprint index remains the backstop.
type Deduper struct {
	store cache.Store
	ttl   time.Duration
}

// NewDeduper creates a deduper with the given marker TTL.
func NewDeduper(store cache.Store, ttl time.Duration) *Deduper {
	return &Deduper{store: store, ttl: ttl}
}

// IsDuplicate atomically records the event's fingerprint and reports whether
// it was already known.
func (d *Deduper) IsDuplicate(ctx context.Context, event *models.Event) bool {
	key := cache.DedupKey(event.OrgID, event.ProjectID, event.Fingerprint)
	created, err := d.store.SetNX(ctx, key, dedupMarker, d.ttl)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("fingerprint", event.Fingerprint).
			Msg("Dedup store unavailable, treating event as fresh")
		return false
	}
	return !created
}

// Filter partitions events into fresh and duplicate counts, preserving the
// order of fresh events.
func (d *Deduper) Filter(ctx context.Context, events []models.Event) (fresh []models.Event, duplicates int) {
	fresh = make([]models.Event, 0, len(events))
	for i := range events {
		if d.IsDuplicate(ctx, &events[i]) {
			duplicates++
			continue
		}
		fresh = append(fresh, events[i])
	}
	return fresh, duplicates
}
