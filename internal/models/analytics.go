// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package models

import "time"

// MetricInterval selects the time-bucketing granularity for metrics queries.
type MetricInterval string

const (
	IntervalHourly  MetricInterval = "hourly"
	IntervalDaily   MetricInterval = "daily"
	IntervalWeekly  MetricInterval = "weekly"
	IntervalMonthly MetricInterval = "monthly"
)

// ValidInterval reports whether s names a supported bucketing interval.
func ValidInterval(s string) bool {
	switch MetricInterval(s) {
	case IntervalHourly, IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	}
	return false
}

// Retention day bounds.
const (
	MinRetentionDays = 1
	MaxRetentionDays = 365
)

// FunnelStepResult is one step of a computed funnel.
type FunnelStepResult struct {
	EventName      string  `json:"eventName"`
	Count          int64   `json:"count"`
	ConversionRate float64 `json:"conversionRate"`
	DropOffRate    float64 `json:"dropOffRate"`
}

// FunnelAnalytics is the result of a funnel query.
type FunnelAnalytics struct {
	FunnelID  string             `json:"funnelId"`
	Name      string             `json:"name"`
	StartDate time.Time          `json:"startDate"`
	EndDate   time.Time          `json:"endDate"`
	Steps     []FunnelStepResult `json:"steps"`
}

// RetentionDay is a single day of a retention series.
type RetentionDay struct {
	Day           int     `json:"day"`
	RetainedUsers int64   `json:"retainedUsers"`
	RetentionRate float64 `json:"retentionRate"`
}

// RetentionAnalytics is the result of a cohort retention query.
type RetentionAnalytics struct {
	CohortEvent   string         `json:"cohortEvent"`
	CohortSize    int64          `json:"cohortSize"`
	Days          int            `json:"days"`
	StartDate     time.Time      `json:"startDate"`
	EndDate       time.Time      `json:"endDate"`
	RetentionData []RetentionDay `json:"retentionData"`
}

// MetricBucket is one time bucket of a metrics series.
type MetricBucket struct {
	BucketStart time.Time `json:"bucketStart"`
	Count       int64     `json:"count"`
	UniqueUsers int64     `json:"uniqueUsers"`
}

// MetricsAnalytics is a time-bucketed event series. TotalUniqueUsers is the
// distinct user count across the whole range, not the sum of per-bucket
// unique counts.
type MetricsAnalytics struct {
	EventName        string         `json:"eventName"`
	Interval         MetricInterval `json:"interval"`
	StartDate        time.Time      `json:"startDate"`
	EndDate          time.Time      `json:"endDate"`
	Buckets          []MetricBucket `json:"buckets"`
	TotalCount       int64          `json:"totalCount"`
	TotalUniqueUsers int64          `json:"totalUniqueUsers"`
}

// UserJourney is the chronologically ordered event history of one user.
type UserJourney struct {
	UserID    string    `json:"userId"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Events    []Event   `json:"events"`
}

// EventSummaryItem is a per-event-name aggregate.
type EventSummaryItem struct {
	EventName   string `json:"eventName"`
	Count       int64  `json:"count"`
	UniqueUsers int64  `json:"uniqueUsers"`
}

// EventSummary aggregates a tenant's events over a range, descending by
// count. TotalUniqueUsers is distinct across all event names.
type EventSummary struct {
	StartDate        time.Time          `json:"startDate"`
	EndDate          time.Time          `json:"endDate"`
	Events           []EventSummaryItem `json:"events"`
	TotalEvents      int64              `json:"totalEvents"`
	TotalUniqueUsers int64              `json:"totalUniqueUsers"`
}

// UserSummary aggregates one user's activity.
type UserSummary struct {
	UserID      string             `json:"userId"`
	TotalEvents int64              `json:"totalEvents"`
	FirstSeen   *time.Time         `json:"firstSeen,omitempty"`
	LastSeen    *time.Time         `json:"lastSeen,omitempty"`
	Events      []EventSummaryItem `json:"events"`
}
