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

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/auth"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/database"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// handleCreateKey mints a new API key. The raw key material appears only in
// this response; afterwards only its digest exists.
func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromContext(r.Context())

	var input models.APIKeyInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, "malformed key payload", nil)
		return
	}
	if input.OrgID == "" {
		input.OrgID = ac.OrgID
	}
	if err := input.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}
	if input.OrgID != ac.OrgID {
		respondError(w, http.StatusForbidden, ErrCodeForbidden,
			"Keys can only be created within your own organization", nil)
		return
	}

	rawKey, err := auth.GenerateKey()
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("Key generation failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to generate key", nil)
		return
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	key := &models.APIKey{
		Name:        input.Name,
		OrgID:       input.OrgID,
		ProjectID:   input.ProjectID,
		Permissions: input.Permissions,
		IsActive:    active,
		KeyDigest:   auth.DigestKey(rawKey),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.CreateAPIKey(r.Context(), key); err != nil {
		if errors.Is(err, database.ErrConflict) {
			respondError(w, http.StatusConflict, ErrCodeConflict,
				"A key with this name already exists", nil)
			return
		}
		logging.CtxErr(r.Context(), err).Msg("Key create failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to create key", nil)
		return
	}

	key.Key = rawKey
	respondData(w, http.StatusCreated, key)
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromContext(r.Context())

	keys, err := s.db.ListAPIKeys(r.Context(), ac.OrgID)
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("Key list failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to list keys", nil)
		return
	}

	respondData(w, http.StatusOK, keys)
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromContext(r.Context())

	key, err := s.db.GetAPIKey(r.Context(), ac.OrgID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Key not found", nil)
			return
		}
		logging.CtxErr(r.Context(), err).Msg("Key lookup failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load key", nil)
		return
	}

	respondData(w, http.StatusOK, key)
}

func (s *Server) handleUpdateKey(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromContext(r.Context())

	var input models.APIKeyInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, "malformed key payload", nil)
		return
	}
	if input.OrgID == "" {
		input.OrgID = ac.OrgID
	}
	if err := input.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	key, err := s.db.UpdateAPIKey(r.Context(), ac.OrgID, chi.URLParam(r, "id"),
		input.Name, input.Permissions, active)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Key not found", nil)
			return
		}
		if errors.Is(err, database.ErrConflict) {
			respondError(w, http.StatusConflict, ErrCodeConflict,
				"A key with this name already exists", nil)
			return
		}
		logging.CtxErr(r.Context(), err).Msg("Key update failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to update key", nil)
		return
	}

	respondData(w, http.StatusOK, key)
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromContext(r.Context())

	if err := s.db.DeleteAPIKey(r.Context(), ac.OrgID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Key not found", nil)
			return
		}
		logging.CtxErr(r.Context(), err).Msg("Key delete failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to delete key", nil)
		return
	}

	respondMessage(w, http.StatusOK, "Key deleted")
}

// handleValidateKey echoes the resolved identity back to any authenticated
// caller, for integration smoke checks.
func (s *Server) handleValidateKey(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromContext(r.Context())

	respondData(w, http.StatusOK, map[string]interface{}{
		"valid":       true,
		"keyId":       ac.KeyID,
		"orgId":       ac.OrgID,
		"projectId":   ac.ProjectID,
		"permissions": ac.Permissions,
	})
}
