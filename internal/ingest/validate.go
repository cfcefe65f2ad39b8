// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

// Package ingest implements the write path: per-event validation,
// content-addressed deduplication, and per-tenant batch buffering ahead of
// the durable queue. A batch is accepted as a whole or rejected as a whole
// only on the batch-size bound; individual events degrade to skip reasons.
package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// ErrBatchTooLarge rejects the whole request; partial acceptance of an
// oversized batch would hide the client bug.
var ErrBatchTooLarge = errors.New("batch exceeds the maximum batch size")

var validate = validator.New()

// acceptedTimestampLayouts are tried in order when parsing an event's
// timestamp string.
var acceptedTimestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ValidateBatch checks every event in a batch and returns the accepted
// events alongside per-index skip reasons. receivedAt stamps events that
// arrive without a timestamp; maxBatch bounds the whole request, falling
// back to models.MaxBatchSize when non-positive. The returned events carry
// the tenant identity and a computed fingerprint.
func ValidateBatch(inputs []models.EventInput, orgID, projectID string, receivedAt time.Time, maxBatch int) ([]models.Event, []models.SkipReason, error) {
	if len(inputs) == 0 {
		return nil, nil, errors.New("batch is empty")
	}
	if maxBatch <= 0 {
		maxBatch = models.MaxBatchSize
	}
	if len(inputs) > maxBatch {
		return nil, nil, ErrBatchTooLarge
	}

	accepted := make([]models.Event, 0, len(inputs))
	var skipped []models.SkipReason

	for i := range inputs {
		event, reason := validateEvent(&inputs[i], orgID, projectID, receivedAt)
		if reason != nil {
			reason.Index = i
			skipped = append(skipped, *reason)
			continue
		}
		accepted = append(accepted, *event)
	}
	return accepted, skipped, nil
}

// validateEvent checks one event. A nil skip reason means acceptance.
func validateEvent(in *models.EventInput, orgID, projectID string, receivedAt time.Time) (*models.Event, *models.SkipReason) {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, skipForFieldError(verrs[0])
		}
		return nil, &models.SkipReason{Message: err.Error()}
	}

	ts := receivedAt.UTC()
	if in.Timestamp != "" {
		parsed, err := parseTimestamp(in.Timestamp)
		if err != nil {
			return nil, &models.SkipReason{
				Field:   "timestamp",
				Message: fmt.Sprintf("unparseable timestamp %q", in.Timestamp),
			}
		}
		ts = parsed
	}

	size, err := in.Properties.SerializedSize()
	if err != nil {
		return nil, &models.SkipReason{Field: "properties", Message: "properties are not serializable"}
	}
	if size > models.MaxPropertiesBytes {
		return nil, &models.SkipReason{
			Field:   "properties",
			Message: fmt.Sprintf("properties exceed %d bytes", models.MaxPropertiesBytes),
		}
	}

	event := &models.Event{
		UserID:     in.UserID,
		EventName:  in.EventName,
		Timestamp:  ts,
		OrgID:      orgID,
		ProjectID:  projectID,
		Properties: in.Properties,
		SessionID:  in.SessionID,
		PageURL:    in.PageURL,
		UserAgent:  in.UserAgent,
		IPAddress:  in.IPAddress,
	}
	event.Fingerprint = event.ComputeFingerprint()
	return event, nil
}

func skipForFieldError(fe validator.FieldError) *models.SkipReason {
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return &models.SkipReason{Field: field, Message: field + " is required"}
	case "max":
		return &models.SkipReason{
			Field:   field,
			Message: fmt.Sprintf("%s exceeds %s characters", field, fe.Param()),
		}
	}
	return &models.SkipReason{Field: field, Message: field + " is invalid"}
}

// jsonFieldName maps validator struct-field names to the wire names clients
// see in skip reasons.
func jsonFieldName(structField string) string {
	switch structField {
	case "UserID":
		return "userId"
	case "EventName":
		return "eventName"
	}
	return strings.ToLower(structField[:1]) + structField[1:]
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range acceptedTimestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}
