// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package config

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 3000 {
		t.Errorf("default port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Server.APIPrefix != "/api/v1" {
		t.Errorf("default api prefix = %q, want /api/v1", cfg.Server.APIPrefix)
	}
	if cfg.Ingest.BatchSize != 1000 {
		t.Errorf("default batch size = %d, want 1000", cfg.Ingest.BatchSize)
	}
	if cfg.Ingest.BufferTimeout != 5*time.Second {
		t.Errorf("default buffer timeout = %s, want 5s", cfg.Ingest.BufferTimeout)
	}
	if cfg.Cache.QueryTTL != 30*time.Minute {
		t.Errorf("default query TTL = %s, want 30m", cfg.Cache.QueryTTL)
	}
	if cfg.Cache.UserQueryTTL != 5*time.Minute {
		t.Errorf("default user query TTL = %s, want 5m", cfg.Cache.UserQueryTTL)
	}
	if cfg.Cache.DedupTTL != 24*time.Hour {
		t.Errorf("default dedup TTL = %s, want 24h", cfg.Cache.DedupTTL)
	}
	if cfg.RateLimit.Window != 15*time.Minute || cfg.RateLimit.MaxRequests != 100 {
		t.Errorf("default general limiter = %s/%d, want 15m/100",
			cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)
	}
	if cfg.Queue.MaxDeliver != 3 {
		t.Errorf("default max deliver = %d, want 3", cfg.Queue.MaxDeliver)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"prefix without slash", func(c *Config) { c.Server.APIPrefix = "api/v1" }},
		{"bad environment", func(c *Config) { c.Server.Environment = "staging" }},
		{"zero batch size", func(c *Config) { c.Ingest.BatchSize = 0 }},
		{"zero buffer timeout", func(c *Config) { c.Ingest.BufferTimeout = 0 }},
		{"zero concurrency", func(c *Config) { c.Queue.Concurrency = 0 }},
		{"zero max deliver", func(c *Config) { c.Queue.MaxDeliver = 0 }},
		{"empty stream name", func(c *Config) { c.Queue.StreamName = "" }},
		{"zero query ttl", func(c *Config) { c.Cache.QueryTTL = 0 }},
		{"zero dedup ttl", func(c *Config) { c.Cache.DedupTTL = 0 }},
		{"zero rate window", func(c *Config) { c.RateLimit.Window = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidateAllowsDisabledRateLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.RateLimit.Disabled = true
	cfg.RateLimit.Window = 0
	cfg.RateLimit.MaxRequests = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled rate limit should skip limiter validation, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("API_PREFIX", "/api/v2")
	t.Setenv("EVENT_BATCH_SIZE", "250")
	t.Setenv("EVENT_BUFFER_TIMEOUT_MS", "2500")
	t.Setenv("EVENT_WORKER_CONCURRENCY", "8")
	t.Setenv("RATE_LIMIT_WINDOW_MS", "60000")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "50")
	t.Setenv("CACHE_TTL", "600")
	t.Setenv("QUERY_CACHE_TTL", "60")
	t.Setenv("CORS_ORIGIN", "https://app.example.com, https://admin.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.APIPrefix != "/api/v2" {
		t.Errorf("api prefix = %q, want /api/v2", cfg.Server.APIPrefix)
	}
	if cfg.Ingest.BatchSize != 250 {
		t.Errorf("batch size = %d, want 250", cfg.Ingest.BatchSize)
	}
	if cfg.Ingest.BufferTimeout != 2500*time.Millisecond {
		t.Errorf("buffer timeout = %s, want 2.5s", cfg.Ingest.BufferTimeout)
	}
	if cfg.Queue.Concurrency != 8 {
		t.Errorf("concurrency = %d, want 8", cfg.Queue.Concurrency)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Errorf("rate limit window = %s, want 1m", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.MaxRequests != 50 {
		t.Errorf("rate limit max = %d, want 50", cfg.RateLimit.MaxRequests)
	}
	if cfg.Cache.QueryTTL != 10*time.Minute {
		t.Errorf("query TTL = %s, want 10m", cfg.Cache.QueryTTL)
	}
	if cfg.Cache.UserQueryTTL != time.Minute {
		t.Errorf("user query TTL = %s, want 1m", cfg.Cache.UserQueryTTL)
	}
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("cors origins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("cors origin[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestEnvTransformSkipsUnknown(t *testing.T) {
	if got := envTransformFunc("RANDOM_UNRELATED_VAR"); got != "" {
		t.Errorf("unknown env var mapped to %q, want empty", got)
	}
	if got := envTransformFunc("PORT"); got != "server.port" {
		t.Errorf("PORT mapped to %q, want server.port", got)
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "0.0.0.0", Port: 3000}
	if got := s.Addr(); got != "0.0.0.0:3000" {
		t.Errorf("Addr() = %q, want 0.0.0.0:3000", got)
	}
}
