// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

// Package api is the HTTP surface: response envelope, authentication and
// rate-limit middleware, and the handlers behind every route. Routes are
// wired by Server.Router.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
)

// Machine-readable error codes carried in the failure envelope.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// Pagination describes a page of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type successEnvelope struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type errorEnvelope struct {
	Success    bool        `json:"success"`
	Error      string      `json:"error"`
	Message    string      `json:"message,omitempty"`
	Details    interface{} `json:"details,omitempty"`
	RetryAfter int         `json:"retryAfter,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Warn().Err(err).Msg("Failed to encode response body")
	}
}

// respondData writes a success envelope carrying a payload.
func respondData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, successEnvelope{Success: true, Data: data})
}

// respondMessage writes a success envelope carrying only a message.
func respondMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, successEnvelope{Success: true, Message: message})
}

// respondPage writes a success envelope with pagination metadata.
func respondPage(w http.ResponseWriter, status int, data interface{}, page *Pagination) {
	writeJSON(w, status, successEnvelope{Success: true, Data: data, Pagination: page})
}

// respondError writes a failure envelope. details is optional structured
// context (validation skips, field errors).
func respondError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	writeJSON(w, status, errorEnvelope{
		Success: false,
		Error:   code,
		Message: message,
		Details: details,
	})
}

// respondRateLimited writes the 429 envelope with the Retry-After header
// mirrored in the body.
func respondRateLimited(w http.ResponseWriter, retryAfterSeconds int) {
	writeJSON(w, http.StatusTooManyRequests, errorEnvelope{
		Success:    false,
		Error:      ErrCodeTooManyRequests,
		Message:    "Rate limit exceeded",
		RetryAfter: retryAfterSeconds,
	})
}
