// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/analytics"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/database"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
)

const (
	defaultUserEventsLimit = 50
	maxUserEventsLimit     = 1000
	journeyLimitCap        = 1000
)

// handleUserJourney serves one user's chronological event history.
func (s *Server) handleUserJourney(w http.ResponseWriter, r *http.Request) {
	orgID, projectID, ok := tenantScope(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"projectId is required for org-wide keys", nil)
		return
	}
	userID := chi.URLParam(r, "userId")

	start, end, err := parseTimeRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}
	start, end = analytics.ResolveMetricsRange(start, end, time.Now().UTC())
	limit := intParam(r, "limit", journeyLimitCap, 1, journeyLimitCap)

	journey, err := s.engine.UserJourney(r.Context(), orgID, projectID, userID, start, end, limit)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "No events found for user", nil)
			return
		}
		logging.CtxErr(r.Context(), err).Msg("User journey query failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load user journey", nil)
		return
	}

	respondData(w, http.StatusOK, journey)
}

// handleUserEvents serves one user's events newest-first with page/limit
// pagination in the envelope.
func (s *Server) handleUserEvents(w http.ResponseWriter, r *http.Request) {
	orgID, projectID, ok := tenantScope(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"projectId is required for org-wide keys", nil)
		return
	}
	userID := chi.URLParam(r, "userId")

	start, end, err := parseTimeRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}
	start, end = analytics.ResolveMetricsRange(start, end, time.Now().UTC())

	page := intParam(r, "page", 1, 1, 1<<30)
	limit := intParam(r, "limit", defaultUserEventsLimit, 1, maxUserEventsLimit)
	offset := (page - 1) * limit

	eventName := r.URL.Query().Get("eventName")

	events, total, err := s.engine.UserEvents(r.Context(), orgID, projectID, userID, eventName, start, end, limit, offset)
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("User events query failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load user events", nil)
		return
	}

	totalPages := int(total) / limit
	if int(total)%limit != 0 {
		totalPages++
	}

	respondPage(w, http.StatusOK, events, &Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	})
}

// handleUserSummary serves one user's lifetime aggregates.
func (s *Server) handleUserSummary(w http.ResponseWriter, r *http.Request) {
	orgID, projectID, ok := tenantScope(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"projectId is required for org-wide keys", nil)
		return
	}
	userID := chi.URLParam(r, "userId")

	summary, err := s.engine.UserSummary(r.Context(), orgID, projectID, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "No events found for user", nil)
			return
		}
		logging.CtxErr(r.Context(), err).Msg("User summary query failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load user summary", nil)
		return
	}

	respondData(w, http.StatusOK, summary)
}
