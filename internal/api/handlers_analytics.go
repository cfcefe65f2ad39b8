// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package api

import (
	"net/http"
	"time"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/analytics"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

const defaultRetentionDays = 7

// handleRetention computes cohort retention: users who performed the cohort
// event in the range, tracked day by day afterwards.
func (s *Server) handleRetention(w http.ResponseWriter, r *http.Request) {
	orgID, projectID, ok := tenantScope(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"projectId is required for org-wide keys", nil)
		return
	}

	cohort := r.URL.Query().Get("cohort")
	if cohort == "" {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, "cohort is required", nil)
		return
	}

	days, err := strictIntParam(r, "days", defaultRetentionDays, models.MinRetentionDays, models.MaxRetentionDays)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}

	start, end, err := parseTimeRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}
	start, end = analytics.ResolveRetentionRange(start, end, days, time.Now().UTC())

	result, err := s.engine.Retention(r.Context(), orgID, projectID, cohort, days, start, end)
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("Retention query failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to compute retention", nil)
		return
	}

	respondData(w, http.StatusOK, result)
}

// handleMetrics serves a time-bucketed series for one event name, with an
// optional JSON-encoded property filter.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	orgID, projectID, ok := tenantScope(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"projectId is required for org-wide keys", nil)
		return
	}

	q := r.URL.Query()

	eventName := q.Get("event")
	if eventName == "" {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, "event is required", nil)
		return
	}

	interval := q.Get("interval")
	if interval == "" {
		interval = string(models.IntervalDaily)
	}
	if !models.ValidInterval(interval) {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed,
			"interval must be hourly, daily, weekly, or monthly", nil)
		return
	}

	var filter *models.Filter
	if raw := q.Get("filters"); raw != "" {
		var err error
		if filter, err = models.ParseFilter(raw); err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
			return
		}
	}

	start, end, err := parseTimeRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}
	start, end = analytics.ResolveMetricsRange(start, end, time.Now().UTC())

	result, err := s.engine.Metrics(r.Context(), orgID, projectID, eventName,
		models.MetricInterval(interval), start, end, filter)
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("Metrics query failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to compute metrics", nil)
		return
	}

	respondData(w, http.StatusOK, result)
}

// handleMetricsEvents lists the event names seen in the range with their
// counts, descending by volume.
func (s *Server) handleMetricsEvents(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.eventSummaryForRange(w, r)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, summary.Events)
}

// handleMetricsSummary reports range-wide totals without the per-event
// breakdown.
func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.eventSummaryForRange(w, r)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"startDate":        summary.StartDate,
		"endDate":          summary.EndDate,
		"totalEvents":      summary.TotalEvents,
		"totalUniqueUsers": summary.TotalUniqueUsers,
		"eventNames":       len(summary.Events),
	})
}

// eventSummaryForRange runs the shared scope/range/summary plumbing for the
// metrics sub-endpoints. A false return means the error was already sent.
func (s *Server) eventSummaryForRange(w http.ResponseWriter, r *http.Request) (*models.EventSummary, bool) {
	orgID, projectID, ok := tenantScope(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"projectId is required for org-wide keys", nil)
		return nil, false
	}

	start, end, err := parseTimeRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return nil, false
	}
	start, end = analytics.ResolveMetricsRange(start, end, time.Now().UTC())

	summary, err := s.engine.EventSummary(r.Context(), orgID, projectID, start, end)
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("Event summary query failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to compute summary", nil)
		return nil, false
	}
	return summary, true
}
