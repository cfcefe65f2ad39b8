// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/config"
)

// BatchTopic is the subject event batches are published on. It sits under
// the stream's subject space.
const BatchTopic = "events.batches"

// streamSubjects covers every event subject, leaving room for future
// per-tenant subjects without a stream migration.
var streamSubjects = []string{"events.>"}

// EnsureStream creates or updates the JetStream stream that holds ingested
// batches. Called once at startup before the publisher or consumer connect.
func EnsureStream(ctx context.Context, nc *nats.Conn, cfg *config.QueueConfig) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	streamCfg := jetstream.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  streamSubjects,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
		MaxBytes:  cfg.MaxStore,
		// Broker-side dedup window; the ingest fingerprint dedup is the
		// primary mechanism, this catches publish retries.
		Duplicates: 2 * time.Minute,
		Discard:    jetstream.DiscardOld,
	}

	if _, err := js.Stream(ctx, cfg.StreamName); err == nil {
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("failed to update stream %s: %w", cfg.StreamName, err)
		}
		return nil
	}

	if _, err := js.CreateStream(ctx, streamCfg); err != nil {
		return fmt.Errorf("failed to create stream %s: %w", cfg.StreamName, err)
	}
	return nil
}

// Connect dials NATS with retry-friendly options shared by the stream
// initializer and health checks.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}
