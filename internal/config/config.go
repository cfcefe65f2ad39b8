// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

// Package config loads and validates application configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables. Environment variables always win, so a
// container deployment can run without any config file at all.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the platform.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Queue     QueueConfig     `koanf:"queue"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP listen port.
	Port int `koanf:"port"`

	// Host is the bind address.
	Host string `koanf:"host"`

	// APIPrefix is the URL prefix for all API routes.
	APIPrefix string `koanf:"api_prefix"`

	// Timeout is the per-request read/write timeout.
	Timeout time.Duration `koanf:"timeout"`

	// Environment is "development" or "production". Error responses include
	// internal detail only in development.
	Environment string `koanf:"environment"`

	// CORSOrigins lists allowed browser origins.
	CORSOrigins []string `koanf:"cors_origins"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file. Empty means in-memory (tests).
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage, e.g. "2GB".
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// CacheConfig holds BadgerDB and result-cache settings.
type CacheConfig struct {
	// Path is the BadgerDB directory for durable keys (dedup markers,
	// realtime counters, rate-limit windows).
	Path string `koanf:"path"`

	// QueryTTL is the default analytics result cache TTL.
	QueryTTL time.Duration `koanf:"query_ttl"`

	// UserQueryTTL is the cache TTL for user-specific queries.
	UserQueryTTL time.Duration `koanf:"user_query_ttl"`

	// DedupTTL is how long dedup markers live.
	DedupTTL time.Duration `koanf:"dedup_ttl"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	// BatchSize is the buffer size threshold that triggers a synchronous flush.
	BatchSize int `koanf:"batch_size"`

	// BufferTimeout is the buffer age threshold enforced by the sweeper.
	BufferTimeout time.Duration `koanf:"buffer_timeout"`

	// MaxRequestBatch is the largest batch accepted by the batch endpoint.
	MaxRequestBatch int `koanf:"max_request_batch"`
}

// QueueConfig holds NATS JetStream settings.
type QueueConfig struct {
	// URL is the NATS server URL.
	URL string `koanf:"url"`

	// Embedded runs an in-process NATS server.
	Embedded bool `koanf:"embedded"`

	// StoreDir is the JetStream file storage directory.
	StoreDir string `koanf:"store_dir"`

	// MaxMemory and MaxStore bound JetStream resource usage.
	MaxMemory int64 `koanf:"max_memory"`
	MaxStore  int64 `koanf:"max_store"`

	// StreamName is the JetStream stream holding event batches.
	StreamName string `koanf:"stream_name"`

	// DurableName identifies the durable consumer.
	DurableName string `koanf:"durable_name"`

	// Concurrency is the number of parallel batch consumers.
	Concurrency int `koanf:"concurrency"`

	// MaxDeliver is the redelivery attempt budget per batch.
	MaxDeliver int `koanf:"max_deliver"`

	// RetryBackoff is the initial redelivery backoff.
	RetryBackoff time.Duration `koanf:"retry_backoff"`
}

// RateLimitConfig holds the general limiter tier. The ingest, analytics, and
// admin tiers are fixed policy and not configurable.
type RateLimitConfig struct {
	// Window is the general limiter window.
	Window time.Duration `koanf:"window"`

	// MaxRequests is the general limiter budget per window.
	MaxRequests int `koanf:"max_requests"`

	// Disabled turns off all rate limiting (tests, local dev).
	Disabled bool `koanf:"disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        3000,
			Host:        "0.0.0.0",
			APIPrefix:   "/api/v1",
			Timeout:     30 * time.Second,
			Environment: "development",
			CORSOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Path:      "/data/events.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Cache: CacheConfig{
			Path:         "/data/cache",
			QueryTTL:     1800 * time.Second,
			UserQueryTTL: 300 * time.Second,
			DedupTTL:     24 * time.Hour,
		},
		Ingest: IngestConfig{
			BatchSize:       1000,
			BufferTimeout:   5000 * time.Millisecond,
			MaxRequestBatch: 1000,
		},
		Queue: QueueConfig{
			URL:          "nats://127.0.0.1:4222",
			Embedded:     true,
			StoreDir:     "/data/nats/jetstream",
			MaxMemory:    1 << 30,  // 1GB
			MaxStore:     10 << 30, // 10GB
			StreamName:   "EVENTS",
			DurableName:  "event-processor",
			Concurrency:  4,
			MaxDeliver:   3,
			RetryBackoff: 2 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Window:      15 * time.Minute,
			MaxRequests: 100,
			Disabled:    false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks configuration consistency. It returns the first problem
// found; callers should treat any error as fatal at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.APIPrefix, "/") {
		return fmt.Errorf("server.api_prefix must start with /, got %q", c.Server.APIPrefix)
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("server.environment must be development or production, got %q", c.Server.Environment)
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.BufferTimeout <= 0 {
		return fmt.Errorf("ingest.buffer_timeout must be positive, got %s", c.Ingest.BufferTimeout)
	}
	if c.Ingest.MaxRequestBatch < 1 {
		return fmt.Errorf("ingest.max_request_batch must be positive, got %d", c.Ingest.MaxRequestBatch)
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("queue.concurrency must be positive, got %d", c.Queue.Concurrency)
	}
	if c.Queue.MaxDeliver < 1 {
		return fmt.Errorf("queue.max_deliver must be positive, got %d", c.Queue.MaxDeliver)
	}
	if c.Queue.StreamName == "" {
		return fmt.Errorf("queue.stream_name must not be empty")
	}
	if c.Cache.QueryTTL <= 0 || c.Cache.UserQueryTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Cache.DedupTTL <= 0 {
		return fmt.Errorf("cache.dedup_ttl must be positive, got %s", c.Cache.DedupTTL)
	}
	if !c.RateLimit.Disabled {
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate_limit.window must be positive, got %s", c.RateLimit.Window)
		}
		if c.RateLimit.MaxRequests < 1 {
			return fmt.Errorf("rate_limit.max_requests must be positive, got %d", c.RateLimit.MaxRequests)
		}
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Addr returns the host:port bind address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
