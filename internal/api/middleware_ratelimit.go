// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package api

import (
	"net"
	"net/http"
	"strconv"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/auth"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/metrics"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/ratelimit"
)

// rateLimit enforces the class budget per caller. Authenticated requests
// are keyed by API key so a tenant's quota follows the key across hosts;
// anything else falls back to the client IP.
func (s *Server) rateLimit(class ratelimit.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := s.limiter.Allow(r.Context(), class, callerIdentity(r))

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))

			if !decision.Allowed {
				retryAfter := int(decision.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				metrics.RateLimitRejections.WithLabelValues(class.Name).Inc()
				respondRateLimited(w, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func callerIdentity(r *http.Request) string {
	if ac := auth.FromContext(r.Context()); ac != nil {
		return "key:" + ac.KeyID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
