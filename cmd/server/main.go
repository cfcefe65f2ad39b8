// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

// Package main is the entry point for the event analytics server.
//
// The server initializes components in dependency order:
//
//  1. Configuration: Koanf v2 layered loading (defaults, config file, env)
//  2. Logging: zerolog, JSON or console format
//  3. KV cache: BadgerDB for dedup markers, counters, rate-limit windows
//  4. Event store: DuckDB
//  5. Queue: embedded NATS JetStream (or an external broker), publisher
//     behind a circuit breaker, durable consumer
//  6. Ingestion pipeline: validation, dedup, per-tenant buffers
//  7. Realtime hub, analytics engine, authentication, rate limiting
//  8. HTTP server: chi router under the configured API prefix
//
// The realtime hub and the queue consumer run under a suture supervisor so
// a panic or transient failure restarts the loop instead of killing the
// process.
//
// Shutdown on SIGINT/SIGTERM: stop accepting requests, drain in-flight
// requests, flush every tenant buffer through the queue, then release the
// broker, cache, and database.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/analytics"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/api"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/auth"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/config"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/database"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/ingest"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/queue"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/ratelimit"
	ws "github.com/rahulbhardwaj94/event-analytics-platform/internal/websocket"
)

// shutdownTimeout is the soft deadline for draining requests and flushing
// buffers at exit.
const shutdownTimeout = 30 * time.Second

// consumerService adapts the queue consumer to suture's Service interface.
type consumerService struct {
	consumer *queue.Consumer
}

func (s consumerService) Serve(ctx context.Context) error {
	return s.consumer.Run(ctx)
}

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Int("port", cfg.Server.Port).
		Str("db_path", cfg.Database.Path).
		Msg("Starting event analytics server")

	// KV cache: dedup markers, realtime counters, rate-limit windows.
	store, err := cache.NewBadgerStore(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}
	defer closeQuietly("cache store", store.Close)

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeQuietly("database", db.Close)

	// Queue broker: embedded JetStream by default, external when configured.
	queueURL := cfg.Queue.URL
	if cfg.Queue.Embedded {
		embedded, err := queue.NewEmbeddedServer(&cfg.Queue)
		if err != nil {
			return fmt.Errorf("failed to start embedded broker: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := embedded.Shutdown(ctx); err != nil {
				logging.Error().Err(err).Msg("Embedded broker shutdown failed")
			}
		}()
		queueURL = embedded.ClientURL()
		logging.Info().Str("url", queueURL).Msg("Embedded broker started")
	}
	cfg.Queue.URL = queueURL

	nc, err := queue.Connect(queueURL)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer nc.Close()

	streamCtx, streamCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = queue.EnsureStream(streamCtx, nc, &cfg.Queue)
	streamCancel()
	if err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}

	wmLogger := queue.NewWatermillLogger()

	publisher, err := queue.NewPublisher(&cfg.Queue, wmLogger)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}
	defer closeQuietly("publisher", publisher.Close)

	pipeline, err := ingest.NewPipeline(store, publisher, &cfg.Ingest, cfg.Cache.DedupTTL)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	pipeline.Start()

	hub := ws.NewHub()

	consumer, err := queue.NewConsumer(&cfg.Queue, db, store, hub, wmLogger)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	defer closeQuietly("consumer", consumer.Close)

	results := cache.NewResultCache(cfg.Cache.QueryTTL)
	defer results.Stop()

	engine := analytics.NewEngine(db, results, cfg.Cache.QueryTTL, cfg.Cache.UserQueryTTL)

	server := api.NewServer(api.Deps{
		Config:       cfg,
		DB:           db,
		Store:        store,
		Pipeline:     pipeline,
		Engine:       engine,
		Hub:          hub,
		History:      consumer.History(),
		BreakerState: publisher.BreakerState,
		Auth:         auth.NewAuthenticator(db),
		Limiter:      ratelimit.NewLimiter(store, cfg.RateLimit.Disabled),
	})

	// Supervised long-running loops: realtime hub and queue consumer.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := suture.NewSimple("event-analytics")
	sup.Add(hub)
	sup.Add(consumerService{consumer: consumer})
	supErr := sup.ServeBackground(ctx)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received")
	case err := <-serveErr:
		stop()
		return fmt.Errorf("http server failed: %w", err)
	case err := <-supErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			stop()
			return fmt.Errorf("supervisor failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting requests and drain in-flight ones.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Flush every tenant buffer through the queue before the broker goes
	// away. Undrained jobs stay in JetStream for the next instance.
	pipeline.Stop(shutdownCtx)

	// Wait for the supervised loops to wind down.
	select {
	case <-supErr:
	case <-shutdownCtx.Done():
		logging.Warn().Msg("Supervisor did not stop before deadline")
	}

	logging.Info().Msg("Server stopped")
	return nil
}

func closeQuietly(name string, close func() error) {
	if err := close(); err != nil {
		logging.Error().Err(err).Str("component", name).Msg("Close failed")
	}
}
