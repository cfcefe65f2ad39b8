// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// InsertFailure records a per-event persistence error inside a batch.
type InsertFailure struct {
	Index int
	Err   error
}

// InsertOutcome reports what happened to each event of a batch.
type InsertOutcome struct {
	Persisted  []models.Event
	Duplicates int
	Failures   []InsertFailure
}

// InsertEvents persists a batch. Per-event failures are recorded and do not
// abort the batch; events whose fingerprint already exists under the tenant
// are counted as duplicates. The returned slice preserves submission order
// for the events that were persisted.
func (db *DB) InsertEvents(ctx context.Context, events []models.Event) (*InsertOutcome, error) {
	outcome := &InsertOutcome{}

	const insert = `
		INSERT INTO events
			(id, org_id, project_id, user_id, event_name, timestamp,
			 properties, session_id, page_url, user_agent, ip_address, fingerprint)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM events
			WHERE org_id = ? AND project_id = ? AND fingerprint = ?
		)`

	for i := range events {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		ev := events[i]
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		if ev.Fingerprint == "" {
			ev.Fingerprint = ev.ComputeFingerprint()
		}

		props, err := marshalProperties(ev.Properties)
		if err != nil {
			outcome.Failures = append(outcome.Failures, InsertFailure{Index: i, Err: err})
			continue
		}

		res, err := db.conn.ExecContext(ctx, insert,
			ev.ID, ev.OrgID, ev.ProjectID, ev.UserID, ev.EventName, ev.Timestamp.UTC(),
			props, nullable(ev.SessionID), nullable(ev.PageURL),
			nullable(ev.UserAgent), nullable(ev.IPAddress), ev.Fingerprint,
			ev.OrgID, ev.ProjectID, ev.Fingerprint)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("event_name", ev.EventName).
				Int("index", i).
				Msg("Failed to persist event, continuing batch")
			outcome.Failures = append(outcome.Failures, InsertFailure{Index: i, Err: err})
			continue
		}

		affected, err := res.RowsAffected()
		if err != nil {
			outcome.Failures = append(outcome.Failures, InsertFailure{Index: i, Err: err})
			continue
		}
		if affected == 0 {
			outcome.Duplicates++
			continue
		}
		outcome.Persisted = append(outcome.Persisted, ev)
	}

	return outcome, nil
}

// ScanOptions narrow an event scan. Zero values mean "no constraint".
type ScanOptions struct {
	UserID    string
	SessionID string
	EventName string
	Start     time.Time
	End       time.Time
	Ascending bool
	Limit     int
	Offset    int
}

// ScanEvents returns tenant events matching the options, ordered by
// timestamp in the requested direction.
func (db *DB) ScanEvents(ctx context.Context, orgID, projectID string, opts ScanOptions) ([]models.Event, error) {
	where, args := scanWhere(orgID, projectID, opts)

	order := "DESC"
	if opts.Ascending {
		order = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT id, org_id, project_id, user_id, event_name, timestamp,
		       properties, session_id, page_url, user_agent, ip_address, fingerprint
		FROM events
		WHERE %s
		ORDER BY timestamp %s`, where, order)

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		ev, err := scanEventRow(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event scan iteration failed: %w", err)
	}
	return events, nil
}

// CountEvents returns the number of tenant events matching the options.
func (db *DB) CountEvents(ctx context.Context, orgID, projectID string, opts ScanOptions) (int64, error) {
	where, args := scanWhere(orgID, projectID, opts)

	var count int64
	query := "SELECT COUNT(*) FROM events WHERE " + where
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// CountDistinctUsers returns the distinct user cardinality for tenant
// events matching the options.
func (db *DB) CountDistinctUsers(ctx context.Context, orgID, projectID string, opts ScanOptions) (int64, error) {
	where, args := scanWhere(orgID, projectID, opts)

	var count int64
	query := "SELECT COUNT(DISTINCT user_id) FROM events WHERE " + where
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count distinct users: %w", err)
	}
	return count, nil
}

// scanWhere builds the tenant-scoped WHERE clause shared by scan queries.
func scanWhere(orgID, projectID string, opts ScanOptions) (string, []any) {
	clauses := []string{"org_id = ?", "project_id = ?"}
	args := []any{orgID, projectID}

	if opts.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, opts.UserID)
	}
	if opts.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, opts.SessionID)
	}
	if opts.EventName != "" {
		clauses = append(clauses, "event_name = ?")
		args = append(args, opts.EventName)
	}
	if !opts.Start.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, opts.Start.UTC())
	}
	if !opts.End.IsZero() {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, opts.End.UTC())
	}

	return strings.Join(clauses, " AND "), args
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEventRow(row rowScanner) (models.Event, error) {
	var (
		ev        models.Event
		props     sql.NullString
		sessionID sql.NullString
		pageURL   sql.NullString
		userAgent sql.NullString
		ipAddress sql.NullString
	)

	err := row.Scan(&ev.ID, &ev.OrgID, &ev.ProjectID, &ev.UserID, &ev.EventName,
		&ev.Timestamp, &props, &sessionID, &pageURL, &userAgent, &ipAddress, &ev.Fingerprint)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to scan event row: %w", err)
	}

	ev.Timestamp = ev.Timestamp.UTC()
	ev.SessionID = sessionID.String
	ev.PageURL = pageURL.String
	ev.UserAgent = userAgent.String
	ev.IPAddress = ipAddress.String

	if props.Valid && props.String != "" {
		if err := json.Unmarshal([]byte(props.String), &ev.Properties); err != nil {
			return models.Event{}, fmt.Errorf("failed to decode event properties: %w", err)
		}
	}
	return ev, nil
}

func marshalProperties(props models.Properties) (any, error) {
	if len(props) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("failed to encode properties: %w", err)
	}
	return string(b), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
