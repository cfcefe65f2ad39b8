// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var queryTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseQueryTime(raw string) (time.Time, error) {
	for _, layout := range queryTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// parseTimeRange reads the startDate/endDate query parameters. Absent
// values stay zero; callers resolve defaults per operation.
func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	q := r.URL.Query()
	if raw := q.Get("startDate"); raw != "" {
		if start, err = parseQueryTime(raw); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("startDate: %w", err)
		}
	}
	if raw := q.Get("endDate"); raw != "" {
		if end, err = parseQueryTime(raw); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("endDate: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("endDate precedes startDate")
	}
	return start, end, nil
}

// strictIntParam reads an integer query parameter, rejecting malformed or
// out-of-range values. Absent values take the default.
func strictIntParam(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%s must be between %d and %d", name, min, max)
	}
	return n, nil
}

// intParam reads an integer query parameter clamped to [min, max],
// defaulting when absent or malformed. Pagination parameters use this;
// range-sensitive parameters use strictIntParam.
func intParam(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
