// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/analytics"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/auth"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/cache"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/config"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/database"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/ingest"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/middleware"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/queue"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/ratelimit"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/websocket"
)

// Deps are the services the HTTP layer delegates to. BreakerState reports
// the publisher circuit state for the health endpoint; it may be nil when
// the queue is not wired (tests).
type Deps struct {
	Config       *config.Config
	DB           *database.DB
	Store        cache.Store
	Pipeline     *ingest.Pipeline
	Engine       *analytics.Engine
	Hub          *websocket.Hub
	History      *queue.History
	BreakerState func() string
	Auth         *auth.Authenticator
	Limiter      *ratelimit.Limiter
}

// Server owns the routing table and handlers.
type Server struct {
	cfg      *config.Config
	db       *database.DB
	store    cache.Store
	pipeline *ingest.Pipeline
	engine   *analytics.Engine
	hub      *websocket.Hub
	history  *queue.History
	breaker  func() string
	auth     *auth.Authenticator
	limiter  *ratelimit.Limiter

	upgrader  gorillaws.Upgrader
	startTime time.Time
}

// NewServer builds the HTTP layer over its dependencies.
func NewServer(d Deps) *Server {
	return &Server{
		cfg:      d.Config,
		db:       d.DB,
		store:    d.Store,
		pipeline: d.Pipeline,
		engine:   d.Engine,
		hub:      d.Hub,
		history:  d.History,
		breaker:  d.BreakerState,
		auth:     d.Auth,
		limiter:  d.Limiter,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origins are enforced by the CORS layer; the key in the
			// upgrade request is what actually gates access.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		startTime: time.Now(),
	}
}

// Router assembles the full routing table under the configured API prefix.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", auth.HeaderName, "X-Request-ID"},
		MaxAge:         300,
	}))

	// Prometheus scrape endpoint sits outside the API prefix and outside
	// API auth. Operators fence it off at the network layer.
	r.Handle("/metrics", promhttp.Handler())

	r.Route(s.cfg.Server.APIPrefix, func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		// Health is unauthenticated; IP-throttled so probes cannot be
		// weaponized.
		r.With(httprate.LimitByIP(1000, time.Minute)).Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Route("/events", func(r chi.Router) {
				r.With(s.rateLimit(ratelimit.ClassIngest), requirePermission(models.PermissionWrite)).
					Post("/", s.handleIngest)
				r.With(s.rateLimit(ratelimit.ClassAnalytics), requirePermission(models.PermissionRead)).
					Get("/summary", s.handleEventSummary)
				r.With(s.rateLimit(s.generalClass()), requirePermission(models.PermissionRead)).
					Get("/realtime", s.handleRealtimeCount)
			})

			r.Route("/funnels", func(r chi.Router) {
				r.Use(s.rateLimit(s.generalClass()))
				r.With(requirePermission(models.PermissionWrite)).Post("/", s.handleCreateFunnel)
				r.With(requirePermission(models.PermissionRead)).Get("/", s.handleListFunnels)
				r.With(requirePermission(models.PermissionRead)).Get("/{id}", s.handleGetFunnel)
				r.With(requirePermission(models.PermissionWrite)).Put("/{id}", s.handleUpdateFunnel)
				r.With(requirePermission(models.PermissionWrite)).Delete("/{id}", s.handleDeleteFunnel)
				r.With(s.rateLimit(ratelimit.ClassAnalytics), requirePermission(models.PermissionAnalytics)).
					Get("/{id}/analytics", s.handleFunnelAnalytics)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.rateLimit(ratelimit.ClassAnalytics))
				r.Use(requirePermission(models.PermissionAnalytics))
				r.Get("/retention", s.handleRetention)
				r.Get("/metrics", s.handleMetrics)
				r.Get("/metrics/events", s.handleMetricsEvents)
				r.Get("/metrics/summary", s.handleMetricsSummary)
			})

			r.Route("/users/{userId}", func(r chi.Router) {
				r.Use(s.rateLimit(ratelimit.ClassAnalytics))
				r.Use(requirePermission(models.PermissionRead))
				r.Get("/journey", s.handleUserJourney)
				r.Get("/events", s.handleUserEvents)
				r.Get("/summary", s.handleUserSummary)
			})

			r.Route("/auth", func(r chi.Router) {
				r.With(s.rateLimit(s.generalClass())).Post("/validate", s.handleValidateKey)

				r.Group(func(r chi.Router) {
					r.Use(s.rateLimit(ratelimit.ClassAdmin))
					r.Use(requirePermission(models.PermissionAdmin))
					r.Post("/keys", s.handleCreateKey)
					r.Get("/keys", s.handleListKeys)
					r.Get("/keys/{id}", s.handleGetKey)
					r.Put("/keys/{id}", s.handleUpdateKey)
					r.Delete("/keys/{id}", s.handleDeleteKey)
				})
			})

			r.With(s.rateLimit(s.generalClass()), requirePermission(models.PermissionRead)).
				Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

func (s *Server) generalClass() ratelimit.Class {
	return ratelimit.GeneralClass(&s.cfg.RateLimit)
}
