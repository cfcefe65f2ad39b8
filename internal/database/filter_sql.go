// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package database

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// filterSQL translates a property filter tree into a parameterized SQL
// predicate over the JSON properties column. The property path and all
// comparison values travel as bind parameters; only fixed SQL text is
// assembled here.
func filterSQL(f *models.Filter) (string, []any, error) {
	switch f.Op {
	case models.FilterEq:
		return eqSQL(f)

	case models.FilterRegex:
		return "regexp_matches(COALESCE(json_extract_string(properties, ?), ''), ?)",
			[]any{propertyPath(f.Field), f.Pattern}, nil

	case models.FilterRange:
		clauses := []string{}
		args := []any{}
		if f.Min != nil {
			clauses = append(clauses, "TRY_CAST(json_extract_string(properties, ?) AS DOUBLE) >= ?")
			args = append(args, propertyPath(f.Field), *f.Min)
		}
		if f.Max != nil {
			clauses = append(clauses, "TRY_CAST(json_extract_string(properties, ?) AS DOUBLE) <= ?")
			args = append(args, propertyPath(f.Field), *f.Max)
		}
		return "(" + strings.Join(clauses, " AND ") + ")", args, nil

	case models.FilterAnd, models.FilterOr:
		joiner := " AND "
		if f.Op == models.FilterOr {
			joiner = " OR "
		}
		clauses := make([]string, 0, len(f.Filters))
		var args []any
		for i := range f.Filters {
			clause, childArgs, err := filterSQL(&f.Filters[i])
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, clause)
			args = append(args, childArgs...)
		}
		return "(" + strings.Join(clauses, joiner) + ")", args, nil
	}

	return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
}

// eqSQL compares numerically when the filter value is a number, textually
// otherwise. JSON booleans extract as "true"/"false" strings.
func eqSQL(f *models.Filter) (string, []any, error) {
	switch v := f.Value.(type) {
	case float64:
		return "TRY_CAST(json_extract_string(properties, ?) AS DOUBLE) = ?",
			[]any{propertyPath(f.Field), v}, nil
	case int:
		return "TRY_CAST(json_extract_string(properties, ?) AS DOUBLE) = ?",
			[]any{propertyPath(f.Field), float64(v)}, nil
	case int64:
		return "TRY_CAST(json_extract_string(properties, ?) AS DOUBLE) = ?",
			[]any{propertyPath(f.Field), float64(v)}, nil
	case bool:
		return "json_extract_string(properties, ?) = ?",
			[]any{propertyPath(f.Field), strconv.FormatBool(v)}, nil
	case string:
		return "json_extract_string(properties, ?) = ?",
			[]any{propertyPath(f.Field), v}, nil
	case nil:
		return "json_extract_string(properties, ?) IS NULL",
			[]any{propertyPath(f.Field)}, nil
	}
	return "", nil, fmt.Errorf("unsupported eq filter value type %T", f.Value)
}

func propertyPath(field string) string {
	return "$." + field
}
