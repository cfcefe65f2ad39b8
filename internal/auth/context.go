// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package auth

import (
	"context"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

type contextKey string

const authContextKey contextKey = "auth_context"

// ContextWithAuth attaches the authenticated tenant to the context.
func ContextWithAuth(ctx context.Context, ac *models.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// FromContext returns the authenticated tenant, or nil on an
// unauthenticated context.
func FromContext(ctx context.Context) *models.AuthContext {
	if ac, ok := ctx.Value(authContextKey).(*models.AuthContext); ok {
		return ac
	}
	return nil
}
