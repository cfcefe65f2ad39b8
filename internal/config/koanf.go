// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/event-analytics/config.yaml",
	"/etc/event-analytics/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Transform flat environment variable names to koanf paths:
	// PORT -> server.port, EVENT_BATCH_SIZE -> ingest.batch_size
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processDurationMillis(k); err != nil {
		return nil, fmt.Errorf("failed to normalize durations: %w", err)
	}
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// millisConfigPaths lists config paths whose env vars carry bare millisecond
// counts rather than Go duration strings.
var millisConfigPaths = []string{
	"ingest.buffer_timeout",
	"rate_limit.window",
}

// secondsConfigPaths lists config paths whose env vars carry bare second
// counts rather than Go duration strings.
var secondsConfigPaths = []string{
	"cache.query_ttl",
	"cache.user_query_ttl",
}

// processDurationMillis converts bare numeric env values ("5000") into Go
// duration strings ("5000ms") so koanf can unmarshal them into
// time.Duration fields. Values already carrying a unit pass through.
func processDurationMillis(k *koanf.Koanf) error {
	convert := func(paths []string, unit string) error {
		for _, path := range paths {
			val := k.Get(path)
			strVal, ok := val.(string)
			if !ok || strVal == "" {
				continue
			}
			if _, err := strconv.ParseInt(strVal, 10, 64); err != nil {
				continue // already has a unit suffix
			}
			if err := k.Set(path, strVal+unit); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
		return nil
	}
	if err := convert(millisConfigPaths, "ms"); err != nil {
		return err
	}
	return convert(secondsConfigPaths, "s")
}

// sliceConfigPaths lists config paths parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env values to slices for known
// slice fields. Env vars arrive as strings; the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped, so unrelated environment
// variables never pollute the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"port":        "server.port",
		"host":        "server.host",
		"api_prefix":  "server.api_prefix",
		"environment": "server.environment",
		"cors_origin": "server.cors_origins",

		// Database
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Cache
		"cache_path":      "cache.path",
		"cache_ttl":       "cache.query_ttl",
		"query_cache_ttl": "cache.user_query_ttl",
		"dedup_ttl":       "cache.dedup_ttl",

		// Ingestion
		"event_batch_size":        "ingest.batch_size",
		"event_buffer_timeout_ms": "ingest.buffer_timeout",
		"event_max_request_batch": "ingest.max_request_batch",

		// Queue
		"nats_url":                 "queue.url",
		"nats_embedded":            "queue.embedded",
		"nats_store_dir":           "queue.store_dir",
		"nats_max_memory":          "queue.max_memory",
		"nats_max_store":           "queue.max_store",
		"nats_stream_name":         "queue.stream_name",
		"nats_durable_name":        "queue.durable_name",
		"event_worker_concurrency": "queue.concurrency",
		"queue_max_deliver":        "queue.max_deliver",
		"queue_retry_backoff":      "queue.retry_backoff",

		// Rate limiting (general tier)
		"rate_limit_window_ms":    "rate_limit.window",
		"rate_limit_max_requests": "rate_limit.max_requests",
		"disable_rate_limit":      "rate_limit.disabled",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
