// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package database

import (
	"context"
	"fmt"
)

// createSchema creates the three logical collections (events, funnels,
// api_keys) and their secondary access paths. All statements are idempotent
// so startup on an existing database is a no-op.
func (db *DB) createSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY,
			org_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			event_name TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			properties TEXT,
			session_id TEXT,
			page_url TEXT,
			user_agent TEXT,
			ip_address TEXT,
			fingerprint TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Duplicate fingerprints within a tenant are rejected; the dedup
		// cache in front is best-effort only.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_fingerprint
			ON events(org_id, project_id, fingerprint)`,

		`CREATE INDEX IF NOT EXISTS idx_events_tenant_time
			ON events(org_id, project_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_tenant_name_time
			ON events(org_id, project_id, event_name, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_tenant_user_time
			ON events(org_id, project_id, user_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_tenant_session_time
			ON events(org_id, project_id, session_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS funnels (
			id UUID PRIMARY KEY,
			org_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			steps TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_funnels_tenant_name
			ON funnels(org_id, project_id, name)`,

		`CREATE TABLE IF NOT EXISTS api_keys (
			id UUID PRIMARY KEY,
			key_digest TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			org_id TEXT NOT NULL,
			project_id TEXT,
			permissions TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_used TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_api_keys_org
			ON api_keys(org_id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema statement: %s: %w", query, err)
		}
	}

	return nil
}
