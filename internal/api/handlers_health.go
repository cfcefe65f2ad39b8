// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package api

import (
	"net/http"
	"time"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// handleHealth reports liveness plus component detail: store reachability,
// publisher circuit state, queue job history, cache hit rates, and
// connected realtime clients.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "OK"

	components := map[string]interface{}{}

	if s.db != nil {
		dbOK := s.db.Health(r.Context()) == nil
		components["database"] = map[string]interface{}{"healthy": dbOK}
		if !dbOK {
			status = "DEGRADED"
		}
	}

	if s.breaker != nil {
		components["queue"] = map[string]interface{}{
			"breakerState": s.breaker(),
		}
	}

	if s.history != nil {
		completed, failed := s.history.Counts()
		components["jobs"] = map[string]interface{}{
			"completed": completed,
			"failed":    failed,
		}
	}

	if s.engine != nil {
		components["queryCache"] = s.engine.CacheStats()
	}

	if s.hub != nil {
		components["realtime"] = map[string]interface{}{
			"clients": s.hub.ClientCount(),
			"rooms":   s.hub.RoomCount(),
		}
	}

	if s.pipeline != nil {
		components["buffers"] = s.pipeline.Stats()
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"status":      status,
		"timestamp":   time.Now().UTC(),
		"uptime":      time.Since(s.startTime).Seconds(),
		"environment": s.cfg.Server.Environment,
		"version":     Version,
		"components":  components,
	})
}
