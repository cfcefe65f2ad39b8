// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

// Package metrics registers the Prometheus collectors instrumenting the
// ingest pipeline, queue, query cache, HTTP surface, and realtime hub.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest pipeline
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_events_total",
			Help: "Events accepted into the pipeline",
		},
		[]string{"org"},
	)

	EventsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_events_deduplicated_total",
			Help: "Events dropped as duplicates at ingest",
		},
	)

	EventsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_events_skipped_total",
			Help: "Events rejected by validation",
		},
	)

	BufferedEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_buffered_events",
			Help: "Events currently waiting in tenant buffers",
		},
	)

	// Queue
	BatchesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_batches_published_total",
			Help: "Batches published to the event stream",
		},
	)

	BatchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_batches_processed_total",
			Help: "Batches consumed from the event stream",
		},
		[]string{"outcome"}, // "completed" or "failed"
	)

	BatchProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queue_batch_processing_seconds",
			Help:    "Time to persist and fan out one batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Query cache
	QueryCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "query_cache_hits_total",
			Help: "Analytics result cache hits",
		},
	)

	QueryCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "query_cache_misses_total",
			Help: "Analytics result cache misses",
		},
	)

	// HTTP surface
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "In-flight API requests",
		},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by rate limiting",
		},
		[]string{"class"},
	)

	// Realtime
	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connected_clients",
			Help: "Connected websocket clients",
		},
	)

	RealtimeEventsPushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_events_pushed_total",
			Help: "Events pushed to realtime rooms",
		},
	)
)

// RecordAPIRequest records one finished HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordBatch records one consumed batch.
func RecordBatch(failed bool, duration time.Duration) {
	outcome := "completed"
	if failed {
		outcome = "failed"
	}
	BatchesProcessed.WithLabelValues(outcome).Inc()
	BatchProcessingDuration.Observe(duration.Seconds())
}
