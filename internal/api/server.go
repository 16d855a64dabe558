// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

// Package api is the externally reachable intake surface: batch event
// intake, provider webhooks, CRM lifecycle callbacks, diagnostics and
// health. Everything below this package assumes authentication, rate
// limiting and size caps were already enforced here.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clicutcl/clicutcl/internal/auth"
	"github.com/clicutcl/clicutcl/internal/config"
	"github.com/clicutcl/clicutcl/internal/dedup"
	"github.com/clicutcl/clicutcl/internal/dispatch"
	"github.com/clicutcl/clicutcl/internal/identity"
	"github.com/clicutcl/clicutcl/internal/queue"
	"github.com/clicutcl/clicutcl/internal/telemetry"
	"github.com/clicutcl/clicutcl/internal/webhooks"
)

// Server binds the pipeline components to the HTTP surface.
type Server struct {
	cfg             *config.Config
	dispatcher      *dispatch.Dispatcher
	dedup           *dedup.Store
	telemetryStore  *telemetry.Store
	recorder        *dispatch.Recorder
	tokens          *auth.TokenVerifier
	webhookVerifier *auth.WebhookVerifier
	providers       *webhooks.Registry
	resolver        *identity.Resolver
	queue           *queue.Queue
	eventLog        *queue.EventLog
	admin           *auth.AdminCredentials
}

// Deps carries the wired pipeline components into the server.
type Deps struct {
	Config          *config.Config
	Dispatcher      *dispatch.Dispatcher
	Dedup           *dedup.Store
	Telemetry       *telemetry.Store
	Recorder        *dispatch.Recorder
	Tokens          *auth.TokenVerifier
	WebhookVerifier *auth.WebhookVerifier
	Providers       *webhooks.Registry
	Resolver        *identity.Resolver
	Queue           *queue.Queue
	EventLog        *queue.EventLog
	Admin           *auth.AdminCredentials
}

// NewServer builds the server from its dependencies.
func NewServer(deps Deps) *Server {
	return &Server{
		cfg:             deps.Config,
		dispatcher:      deps.Dispatcher,
		dedup:           deps.Dedup,
		telemetryStore:  deps.Telemetry,
		recorder:        deps.Recorder,
		tokens:          deps.Tokens,
		webhookVerifier: deps.WebhookVerifier,
		providers:       deps.Providers,
		resolver:        deps.Resolver,
		queue:           deps.Queue,
		eventLog:        deps.EventLog,
		admin:           deps.Admin,
	}
}

// Router assembles the chi router with the full middleware stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(requestIDWithLogging())
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeaders())
	r.Use(clientIPResolver(s.cfg.Security.TrustedProxies))
	r.Use(requestMetrics())

	if len(s.cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Server.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "X-Clicutcl-Token", "X-Clicutcl-Timestamp", "X-Clicutcl-Signature"},
			AllowCredentials: true,
			MaxAge:           86400,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Group(func(r chi.Router) {
			r.Use(intakeRateLimit(
				s.cfg.Security.RateLimitRequests,
				s.cfg.Security.RateLimitWindow,
				s.cfg.Security.RateLimitDisabled,
			))
			r.Get("/token", s.handleMintToken)
			r.Post("/events", s.handleBatchEvents)
			r.Post("/webhooks/{provider}", s.handleWebhook)
			r.Post("/lifecycle", s.handleLifecycle)
		})

		r.Route("/diagnostics", func(r chi.Router) {
			r.Use(requireAdmin(s.admin))
			r.Get("/delivery", s.handleDeliveryDiagnostics)
			r.Get("/dedup", s.handleDedupStats)
			r.Get("/events", s.handleRecentEvents)
			r.Post("/debug", s.handleEnableDebug)
		})
	})

	return r
}

// handleHealth reports liveness. Readiness reflects configuration only;
// destination reachability is probed via the diagnostics surface, not
// on every health poll.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ready := !s.cfg.Destinations.Enabled ||
		(s.cfg.Destinations.Primary.Enabled && s.cfg.Destinations.Primary.Endpoint != "")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"ready":  ready,
	})
}
