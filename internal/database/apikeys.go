// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// CreateAPIKey stores a new key record. KeyDigest must already be set; the
// raw key material is never persisted. The unique digest constraint refuses
// the astronomically unlikely duplicate. Key names are unique per org.
func (db *DB) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}

	exists, err := db.keyNameExists(ctx, key.OrgID, key.Name, "")
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("api key %q: %w", key.Name, ErrConflict)
	}

	perms, err := json.Marshal(key.Permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO api_keys (id, key_digest, name, org_id, project_id, permissions, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.KeyDigest, key.Name, key.OrgID, nullable(key.ProjectID),
		string(perms), key.IsActive, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// GetAPIKeyByDigest looks up an active key by the SHA-256 digest of its raw
// material. Returns ErrNotFound for unknown or inactive keys.
func (db *DB) GetAPIKeyByDigest(ctx context.Context, digest string) (*models.APIKey, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, key_digest, name, org_id, project_id, permissions, is_active, last_used, created_at
		FROM api_keys
		WHERE key_digest = ? AND is_active = TRUE`,
		digest)

	key, err := scanAPIKeyRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("api key: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// GetAPIKey returns a key by id, scoped to an org. Returns ErrNotFound when
// absent.
func (db *DB) GetAPIKey(ctx context.Context, orgID, id string) (*models.APIKey, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, key_digest, name, org_id, project_id, permissions, is_active, last_used, created_at
		FROM api_keys
		WHERE id = ? AND org_id = ?`,
		id, orgID)

	key, err := scanAPIKeyRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("api key %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// ListAPIKeys returns all keys belonging to an org, newest first.
func (db *DB) ListAPIKeys(ctx context.Context, orgID string) ([]models.APIKey, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, key_digest, name, org_id, project_id, permissions, is_active, last_used, created_at
		FROM api_keys
		WHERE org_id = ?
		ORDER BY created_at DESC`,
		orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	keys := []models.APIKey{}
	for rows.Next() {
		key, err := scanAPIKeyRow(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("api key list iteration failed: %w", err)
	}
	return keys, nil
}

// UpdateAPIKey updates a key's name, permissions, and active flag. Returns
// ErrNotFound when absent and ErrConflict when the new name collides with
// another key in the org.
func (db *DB) UpdateAPIKey(ctx context.Context, orgID, id string, name string, permissions []models.Permission, isActive bool) (*models.APIKey, error) {
	key, err := db.GetAPIKey(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	exists, err := db.keyNameExists(ctx, orgID, name, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("api key %q: %w", name, ErrConflict)
	}

	perms, err := json.Marshal(permissions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode permissions: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		UPDATE api_keys SET name = ?, permissions = ?, is_active = ?
		WHERE id = ? AND org_id = ?`,
		name, string(perms), isActive, id, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to update api key: %w", err)
	}

	key.Name = name
	key.Permissions = permissions
	key.IsActive = isActive
	return key, nil
}

// DeleteAPIKey removes a key. Returns ErrNotFound when absent.
func (db *DB) DeleteAPIKey(ctx context.Context, orgID, id string) error {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM api_keys WHERE id = ? AND org_id = ?`,
		id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("api key %q: %w", id, ErrNotFound)
	}
	return nil
}

// TouchAPIKey updates a key's last-used instant. Called asynchronously on
// every successful authentication, so failures are the caller's to log, not
// to fail the request on.
func (db *DB) TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE api_keys SET last_used = ? WHERE id = ?`,
		usedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update api key last_used: %w", err)
	}
	return nil
}

func (db *DB) keyNameExists(ctx context.Context, orgID, name, excludeID string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM api_keys
		WHERE org_id = ? AND name = ? AND id != ?`,
		orgID, name, excludeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check api key name: %w", err)
	}
	return count > 0, nil
}

func scanAPIKeyRow(row rowScanner) (*models.APIKey, error) {
	var (
		key       models.APIKey
		projectID sql.NullString
		perms     string
		lastUsed  sql.NullTime
	)
	err := row.Scan(&key.ID, &key.KeyDigest, &key.Name, &key.OrgID, &projectID,
		&perms, &key.IsActive, &lastUsed, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan api key row: %w", err)
	}

	key.ProjectID = projectID.String
	if lastUsed.Valid {
		t := lastUsed.Time.UTC()
		key.LastUsed = &t
	}
	key.CreatedAt = key.CreatedAt.UTC()

	if err := json.Unmarshal([]byte(perms), &key.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	return &key, nil
}
