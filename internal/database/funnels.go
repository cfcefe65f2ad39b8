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

// CreateFunnel stores a new funnel. Returns ErrConflict when the tenant
// already has a funnel with the same name.
func (db *DB) CreateFunnel(ctx context.Context, orgID, projectID string, input *models.FunnelInput) (*models.Funnel, error) {
	exists, err := db.funnelNameExists(ctx, orgID, projectID, input.Name, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("funnel %q: %w", input.Name, ErrConflict)
	}

	steps, err := json.Marshal(input.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to encode funnel steps: %w", err)
	}

	now := time.Now().UTC()
	funnel := &models.Funnel{
		ID:        uuid.New().String(),
		Name:      input.Name,
		OrgID:     orgID,
		ProjectID: projectID,
		Steps:     input.Steps,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO funnels (id, org_id, project_id, name, steps, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		funnel.ID, orgID, projectID, funnel.Name, string(steps), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create funnel: %w", err)
	}
	return funnel, nil
}

// GetFunnel returns a funnel by id, tenant-scoped. Returns ErrNotFound when
// the funnel does not exist under the caller's tenant.
func (db *DB) GetFunnel(ctx context.Context, orgID, projectID, id string) (*models.Funnel, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, org_id, project_id, name, steps, created_at, updated_at
		FROM funnels
		WHERE id = ? AND org_id = ? AND project_id = ?`,
		id, orgID, projectID)

	funnel, err := scanFunnelRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("funnel %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return funnel, nil
}

// ListFunnels returns all funnels under the tenant, newest first.
func (db *DB) ListFunnels(ctx context.Context, orgID, projectID string) ([]models.Funnel, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, org_id, project_id, name, steps, created_at, updated_at
		FROM funnels
		WHERE org_id = ? AND project_id = ?
		ORDER BY created_at DESC`,
		orgID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list funnels: %w", err)
	}
	defer rows.Close()

	funnels := []models.Funnel{}
	for rows.Next() {
		funnel, err := scanFunnelRow(rows)
		if err != nil {
			return nil, err
		}
		funnels = append(funnels, *funnel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("funnel list iteration failed: %w", err)
	}
	return funnels, nil
}

// UpdateFunnel replaces a funnel's name and steps. Returns ErrNotFound when
// absent and ErrConflict when renaming onto an existing name.
func (db *DB) UpdateFunnel(ctx context.Context, orgID, projectID, id string, input *models.FunnelInput) (*models.Funnel, error) {
	existing, err := db.GetFunnel(ctx, orgID, projectID, id)
	if err != nil {
		return nil, err
	}

	if input.Name != existing.Name {
		exists, err := db.funnelNameExists(ctx, orgID, projectID, input.Name, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("funnel %q: %w", input.Name, ErrConflict)
		}
	}

	steps, err := json.Marshal(input.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to encode funnel steps: %w", err)
	}

	now := time.Now().UTC()
	_, err = db.conn.ExecContext(ctx, `
		UPDATE funnels SET name = ?, steps = ?, updated_at = ?
		WHERE id = ? AND org_id = ? AND project_id = ?`,
		input.Name, string(steps), now, id, orgID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to update funnel: %w", err)
	}

	existing.Name = input.Name
	existing.Steps = input.Steps
	existing.UpdatedAt = now
	return existing, nil
}

// DeleteFunnel removes a funnel. Returns ErrNotFound when absent.
func (db *DB) DeleteFunnel(ctx context.Context, orgID, projectID, id string) error {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM funnels WHERE id = ? AND org_id = ? AND project_id = ?`,
		id, orgID, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete funnel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete funnel: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("funnel %q: %w", id, ErrNotFound)
	}
	return nil
}

func (db *DB) funnelNameExists(ctx context.Context, orgID, projectID, name, excludeID string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM funnels
		WHERE org_id = ? AND project_id = ? AND name = ? AND id != ?`,
		orgID, projectID, name, excludeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check funnel name: %w", err)
	}
	return count > 0, nil
}

func scanFunnelRow(row rowScanner) (*models.Funnel, error) {
	var (
		funnel models.Funnel
		steps  string
	)
	err := row.Scan(&funnel.ID, &funnel.OrgID, &funnel.ProjectID, &funnel.Name,
		&steps, &funnel.CreatedAt, &funnel.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan funnel row: %w", err)
	}

	if err := json.Unmarshal([]byte(steps), &funnel.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode funnel steps: %w", err)
	}
	funnel.CreatedAt = funnel.CreatedAt.UTC()
	funnel.UpdatedAt = funnel.UpdatedAt.UTC()
	return &funnel, nil
}
