// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package api

import (
	"errors"
	"net/http"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/auth"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// authenticate resolves the X-API-Key header to an AuthContext and attaches
// it to the request. Missing, unknown, and inactive keys all produce the
// same 401 so callers cannot probe for key existence.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get(auth.HeaderName)
		if rawKey == "" {
			respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "API key required", nil)
			return
		}

		ac, err := s.auth.Authenticate(r.Context(), rawKey)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidKey) {
				logging.CtxErr(r.Context(), err).Msg("Authentication lookup failed")
			}
			respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid API key", nil)
			return
		}

		ctx := auth.ContextWithAuth(r.Context(), ac)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission gates a route on a key capability. Admin keys pass
// every check.
func requirePermission(p models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := auth.FromContext(r.Context())
			if ac == nil {
				respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "API key required", nil)
				return
			}
			if !ac.HasPermission(p) {
				respondError(w, http.StatusForbidden, ErrCodeForbidden,
					"API key lacks the "+string(p)+" permission", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// tenantScope resolves the (org, project) pair a request operates on. The
// org always comes from the key. Project-scoped keys are pinned to their
// project; org-wide keys pick a project with the projectId query parameter.
func tenantScope(r *http.Request) (orgID, projectID string, ok bool) {
	ac := auth.FromContext(r.Context())
	if ac == nil {
		return "", "", false
	}
	projectID = ac.ProjectID
	if projectID == "" {
		projectID = r.URL.Query().Get("projectId")
	}
	return ac.OrgID, projectID, projectID != ""
}
