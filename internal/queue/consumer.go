// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/config"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/database"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/metrics"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// ackWaitTimeout is how long JetStream waits for an ack before redelivery.
const ackWaitTimeout = 30 * time.Second

// Notifier receives persisted events for realtime fan-out. Implemented by
// the websocket hub.
type Notifier interface {
	NotifyEvents(orgID, projectID string, events []models.Event)
}

// Consumer drains the batch stream: each message is persisted to the event
// store, reflected in the per-tenant counters, and pushed to realtime
// subscribers. Processing failures are nacked and redelivered up to
// MaxDeliver times with the configured backoff.
type Consumer struct {
	subscriber  message.Subscriber
	db          *database.DB
	store       cache.Store
	notifier    Notifier
	history     *History
	concurrency int
}

// NewConsumer creates the durable JetStream consumer.
func NewConsumer(cfg *config.QueueConfig, db *database.DB, store cache.Store, notifier Notifier, logger watermill.LoggerAdapter) (*Consumer, error) {
	if logger == nil {
		logger = NewWatermillLogger()
	}

	backoff := make([]time.Duration, 0, cfg.MaxDeliver-1)
	for i := 1; i < cfg.MaxDeliver; i++ {
		backoff = append(backoff, cfg.RetryBackoff)
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.AckWait(ackWaitTimeout),
		natsgo.BindStream(cfg.StreamName),
		natsgo.DeliverAll(),
	}
	if len(backoff) > 0 {
		subOpts = append(subOpts, natsgo.BackOff(backoff))
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("Consumer disconnected", err, nil)
			}
		}),
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:            cfg.URL,
		AckWaitTimeout: ackWaitTimeout,
		CloseTimeout:   30 * time.Second,
		NatsOptions:    natsOpts,
		Unmarshaler:    &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision:    false,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Consumer{
		subscriber:  sub,
		db:          db,
		store:       store,
		notifier:    notifier,
		history:     NewHistory(),
		concurrency: concurrency,
	}, nil
}

// History exposes the bounded job log.
func (c *Consumer) History() *History {
	return c.history
}

// Run consumes batches until the context is canceled. Blocks; run under the
// supervisor.
func (c *Consumer) Run(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, BatchTopic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", BatchTopic, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range messages {
				c.handle(ctx, msg)
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// handle processes one message. Persist errors nack for redelivery;
// malformed payloads ack to keep poison messages from cycling.
func (c *Consumer) handle(ctx context.Context, msg *message.Message) {
	start := time.Now()

	batch, err := UnmarshalBatch(msg.Payload)
	if err != nil {
		logging.Error().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed batch")
		c.history.RecordFailed(JobRecord{
			MessageID:   msg.UUID,
			Error:       err.Error(),
			ProcessedAt: time.Now().UTC(),
			Duration:    time.Since(start).String(),
		})
		msg.Ack()
		return
	}

	tenant := models.TenantKey(batch.OrgID, batch.ProjectID)

	outcome, err := c.db.InsertEvents(ctx, batch.Events)
	if err != nil {
		logging.Error().Err(err).
			Str("tenant", tenant).
			Str("message_uuid", msg.UUID).
			Msg("Failed to persist batch")
		c.history.RecordFailed(JobRecord{
			MessageID:   msg.UUID,
			Tenant:      tenant,
			Events:      len(batch.Events),
			Error:       err.Error(),
			ProcessedAt: time.Now().UTC(),
			Duration:    time.Since(start).String(),
		})
		metrics.RecordBatch(true, time.Since(start))
		msg.Nack()
		return
	}

	c.bumpCounters(ctx, batch.OrgID, batch.ProjectID, outcome.Persisted)

	if c.notifier != nil && len(outcome.Persisted) > 0 {
		c.notifier.NotifyEvents(batch.OrgID, batch.ProjectID, outcome.Persisted)
	}

	c.history.RecordCompleted(JobRecord{
		MessageID:   msg.UUID,
		Tenant:      tenant,
		Events:      len(outcome.Persisted),
		Duplicates:  outcome.Duplicates,
		ProcessedAt: time.Now().UTC(),
		Duration:    time.Since(start).String(),
	})

	logging.Debug().
		Str("tenant", tenant).
		Int("persisted", len(outcome.Persisted)).
		Int("duplicates", outcome.Duplicates).
		Int("failed_rows", len(outcome.Failures)).
		Msg("Batch persisted")

	metrics.RecordBatch(false, time.Since(start))
	msg.Ack()
}

// bumpCounters maintains the events: counters. Counter failures only log;
// the source of truth is the database.
func (c *Consumer) bumpCounters(ctx context.Context, orgID, projectID string, persisted []models.Event) {
	if len(persisted) == 0 {
		return
	}

	if _, err := c.store.IncrBy(ctx, cache.EventCountKey(orgID, projectID), int64(len(persisted)), 0); err != nil {
		logging.Warn().Err(err).Msg("Failed to bump tenant event counter")
	}

	perName := make(map[string]int64)
	for i := range persisted {
		perName[persisted[i].EventName]++
	}
	for name, n := range perName {
		if _, err := c.store.IncrBy(ctx, cache.EventNameCountKey(orgID, projectID, name), n, 0); err != nil {
			logging.Warn().Err(err).Str("event_name", name).Msg("Failed to bump event name counter")
		}
	}
}

// Close shuts down the subscriber.
func (c *Consumer) Close() error {
	return c.subscriber.Close()
}
