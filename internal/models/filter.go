// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package models

import (
	"fmt"
	"regexp"

	"github.com/goccy/go-json"
)

// FilterOp identifies a node kind in a property filter tree.
type FilterOp string

const (
	FilterEq    FilterOp = "eq"
	FilterRegex FilterOp = "regex"
	FilterRange FilterOp = "range"
	FilterAnd   FilterOp = "and"
	FilterOr    FilterOp = "or"
)

// Filter is a predicate over an event property bag. Leaf nodes (eq, regex,
// range) constrain a single property field; and/or combine child filters.
//
// Wire format:
//
//	{"op":"eq","field":"plan","value":"pro"}
//	{"op":"regex","field":"pageUrl","pattern":"^/checkout"}
//	{"op":"range","field":"amount","min":10,"max":100}
//	{"op":"and","filters":[...]}
type Filter struct {
	Op      FilterOp `json:"op"`
	Field   string   `json:"field,omitempty"`
	Value   any      `json:"value,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Filters []Filter `json:"filters,omitempty"`
}

// ParseFilter decodes and validates a JSON-encoded filter tree.
func ParseFilter(raw string) (*Filter, error) {
	if raw == "" {
		return nil, nil
	}
	var f Filter
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("invalid filter JSON: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks structural consistency of the filter tree.
func (f *Filter) Validate() error {
	switch f.Op {
	case FilterEq:
		if f.Field == "" {
			return fmt.Errorf("eq filter requires a field")
		}
	case FilterRegex:
		if f.Field == "" {
			return fmt.Errorf("regex filter requires a field")
		}
		if _, err := regexp.Compile(f.Pattern); err != nil {
			return fmt.Errorf("invalid regex pattern %q: %w", f.Pattern, err)
		}
	case FilterRange:
		if f.Field == "" {
			return fmt.Errorf("range filter requires a field")
		}
		if f.Min == nil && f.Max == nil {
			return fmt.Errorf("range filter requires min or max")
		}
	case FilterAnd, FilterOr:
		if len(f.Filters) == 0 {
			return fmt.Errorf("%s filter requires child filters", f.Op)
		}
		for i := range f.Filters {
			if err := f.Filters[i].Validate(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown filter op %q", f.Op)
	}
	return nil
}
