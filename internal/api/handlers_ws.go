// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package api

import (
	"net/http"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/auth"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/websocket"
)

// handleWebSocket upgrades the connection and homes the client in its
// tenant room. Clients may re-home with a join-room message, subject to the
// key's scope.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromContext(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.CtxErr(r.Context(), err).Msg("WebSocket upgrade failed")
		return
	}

	client := websocket.NewClient(s.hub, conn, ac)
	client.Start()
}
