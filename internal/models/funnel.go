// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package models

import (
	"fmt"
	"time"
)

// Funnel step count bounds.
const (
	MinFunnelSteps = 2
	MaxFunnelSteps = 10
)

// FunnelStep is one stage of a conversion funnel. TimeWindow, when nonzero,
// bounds the gap in seconds between this step and the previous one.
type FunnelStep struct {
	EventName  string  `json:"eventName"`
	Filters    *Filter `json:"filters,omitempty"`
	TimeWindow int64   `json:"timeWindow,omitempty"`
}

// Funnel is an ordered sequence of steps through which conversion is
// measured. Scoped to a tenant; name is unique per tenant.
type Funnel struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	OrgID     string       `json:"orgId"`
	ProjectID string       `json:"projectId"`
	Steps     []FunnelStep `json:"steps"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// FunnelInput is the create/update request payload.
type FunnelInput struct {
	Name  string       `json:"name" validate:"required,max=255"`
	Steps []FunnelStep `json:"steps" validate:"required,min=2,max=10"`
}

// Validate enforces funnel structural invariants: 2-10 steps, unique step
// event names, valid step filters, non-negative time windows.
func (in *FunnelInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("funnel name is required")
	}
	if len(in.Name) > MaxFieldLength {
		return fmt.Errorf("funnel name exceeds %d characters", MaxFieldLength)
	}
	if len(in.Steps) < MinFunnelSteps || len(in.Steps) > MaxFunnelSteps {
		return fmt.Errorf("funnel requires %d-%d steps, got %d",
			MinFunnelSteps, MaxFunnelSteps, len(in.Steps))
	}
	seen := make(map[string]struct{}, len(in.Steps))
	for i, step := range in.Steps {
		if step.EventName == "" {
			return fmt.Errorf("step %d: eventName is required", i+1)
		}
		if len(step.EventName) > MaxFieldLength {
			return fmt.Errorf("step %d: eventName exceeds %d characters", i+1, MaxFieldLength)
		}
		if _, dup := seen[step.EventName]; dup {
			return fmt.Errorf("step %d: duplicate step event name %q", i+1, step.EventName)
		}
		seen[step.EventName] = struct{}{}
		if step.TimeWindow < 0 {
			return fmt.Errorf("step %d: timeWindow must be non-negative", i+1)
		}
		if step.Filters != nil {
			if err := step.Filters.Validate(); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		}
	}
	return nil
}
