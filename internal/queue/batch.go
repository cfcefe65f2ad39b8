// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package queue

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// Batch is the wire envelope for a flushed buffer: one tenant, ordered
// events.
type Batch struct {
	OrgID     string         `json:"orgId"`
	ProjectID string         `json:"projectId"`
	Events    []models.Event `json:"events"`
}

// MarshalBatch encodes a batch for publication.
func MarshalBatch(b *Batch) ([]byte, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}
	return payload, nil
}

// UnmarshalBatch decodes a consumed batch payload.
func UnmarshalBatch(payload []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	if b.OrgID == "" || b.ProjectID == "" {
		return nil, fmt.Errorf("batch missing tenant identity")
	}
	return &b, nil
}
