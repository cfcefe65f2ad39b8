// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/analytics"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/ingest"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/metrics"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// maxIngestBody caps the request body. 1000 events with 64KiB of
// properties each cannot legally exceed this.
const maxIngestBody = 96 << 20

// handleIngest accepts a single event object or an array of up to the
// configured maximum batch size and runs them through the pipeline.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	orgID, projectID, ok := tenantScope(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"projectId is required for org-wide keys", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "Failed to read request body", nil)
		return
	}

	inputs, err := decodeEventBody(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}

	result, err := s.pipeline.Ingest(r.Context(), orgID, projectID, inputs)
	if err != nil {
		if errors.Is(err, ingest.ErrBatchTooLarge) {
			respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
			return
		}
		if len(inputs) == 0 {
			respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
			return
		}
		logging.CtxErr(r.Context(), err).Msg("Ingest failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to ingest events", nil)
		return
	}

	metrics.EventsIngested.WithLabelValues(orgID).Add(float64(result.Processed))
	metrics.EventsDeduplicated.Add(float64(result.Duplicates))
	metrics.EventsSkipped.Add(float64(len(result.Skipped)))

	respondData(w, http.StatusOK, result)
}

// decodeEventBody accepts either a bare event object or an array of them.
func decodeEventBody(body []byte) ([]models.EventInput, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, errors.New("request body is empty")
	}

	if trimmed[0] == '[' {
		var inputs []models.EventInput
		if err := json.Unmarshal(trimmed, &inputs); err != nil {
			return nil, errors.New("malformed event array")
		}
		return inputs, nil
	}

	var single models.EventInput
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, errors.New("malformed event object")
	}
	return []models.EventInput{single}, nil
}

// handleEventSummary serves per-event-name aggregates over a range,
// defaulting to the last 30 days.
func (s *Server) handleEventSummary(w http.ResponseWriter, r *http.Request) {
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

	summary, err := s.engine.EventSummary(r.Context(), orgID, projectID, start, end)
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("Event summary query failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to compute event summary", nil)
		return
	}

	respondData(w, http.StatusOK, summary)
}

// handleRealtimeCount reports the tenant's running event counter, bumped by
// the queue consumer as batches persist.
func (s *Server) handleRealtimeCount(w http.ResponseWriter, r *http.Request) {
	orgID, projectID, ok := tenantScope(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"projectId is required for org-wide keys", nil)
		return
	}

	count, err := s.store.GetInt64(r.Context(), cache.EventCountKey(orgID, projectID))
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("Realtime counter read failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read event counter", nil)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"count":     count,
		"timestamp": time.Now().UTC(),
	})
}
