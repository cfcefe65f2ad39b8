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
	"github.com/goccy/go-json"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/analytics"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/database"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

func decodeFunnelInput(r *http.Request) (*models.FunnelInput, error) {
	var input models.FunnelInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		return nil, errors.New("malformed funnel payload")
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return &input, nil
}

func (s *Server) handleCreateFunnel(w http.ResponseWriter, r *http.Request) {
	orgID, projectID, ok := tenantScope(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"projectId is required for org-wide keys", nil)
		return
	}

	input, err := decodeFunnelInput(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}

	funnel, err := s.db.CreateFunnel(r.Context(), orgID, projectID, input)
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			respondError(w, http.StatusConflict, ErrCodeConflict,
				"A funnel with this name already exists", nil)
			return
		}
		logging.CtxErr(r.Context(), err).Msg("Funnel create failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to create funnel", nil)
		return
	}

	respondData(w, http.StatusCreated, funnel)
}

func (s *Server) handleListFunnels(w http.ResponseWriter, r *http.Request) {
	orgID, projectID, ok := tenantScope(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"projectId is required for org-wide keys", nil)
		return
	}

	funnels, err := s.db.ListFunnels(r.Context(), orgID, projectID)
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("Funnel list failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to list funnels", nil)
		return
	}

	respondData(w, http.StatusOK, funnels)
}

func (s *Server) handleGetFunnel(w http.ResponseWriter, r *http.Request) {
	orgID, projectID, ok := tenantScope(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"projectId is required for org-wide keys", nil)
		return
	}

	funnel, err := s.db.GetFunnel(r.Context(), orgID, projectID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Funnel not found", nil)
			return
		}
		logging.CtxErr(r.Context(), err).Msg("Funnel lookup failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load funnel", nil)
		return
	}

	respondData(w, http.StatusOK, funnel)
}

func (s *Server) handleUpdateFunnel(w http.ResponseWriter, r *http.Request) {
	orgID, projectID, ok := tenantScope(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"projectId is required for org-wide keys", nil)
		return
	}

	input, err := decodeFunnelInput(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}

	funnel, err := s.db.UpdateFunnel(r.Context(), orgID, projectID, chi.URLParam(r, "id"), input)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Funnel not found", nil)
		case errors.Is(err, database.ErrConflict):
			respondError(w, http.StatusConflict, ErrCodeConflict,
				"A funnel with this name already exists", nil)
		default:
			logging.CtxErr(r.Context(), err).Msg("Funnel update failed")
			respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to update funnel", nil)
		}
		return
	}

	respondData(w, http.StatusOK, funnel)
}

func (s *Server) handleDeleteFunnel(w http.ResponseWriter, r *http.Request) {
	orgID, projectID, ok := tenantScope(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"projectId is required for org-wide keys", nil)
		return
	}

	if err := s.db.DeleteFunnel(r.Context(), orgID, projectID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Funnel not found", nil)
			return
		}
		logging.CtxErr(r.Context(), err).Msg("Funnel delete failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to delete funnel", nil)
		return
	}

	respondMessage(w, http.StatusOK, "Funnel deleted")
}

// handleFunnelAnalytics computes step-by-step conversion over a range,
// defaulting to the last 30 days.
func (s *Server) handleFunnelAnalytics(w http.ResponseWriter, r *http.Request) {
	orgID, projectID, ok := tenantScope(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"projectId is required for org-wide keys", nil)
		return
	}

	start, end, err := parseTimeRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}
	start, end = analytics.ResolveMetricsRange(start, end, time.Now().UTC())

	result, err := s.engine.Funnel(r.Context(), orgID, projectID, chi.URLParam(r, "id"), start, end)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Funnel not found", nil)
			return
		}
		logging.CtxErr(r.Context(), err).Msg("Funnel analytics failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to compute funnel", nil)
		return
	}

	respondData(w, http.StatusOK, result)
}
