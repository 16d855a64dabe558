// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

// Package main is the entry point for the Clicutcl server.
//
// Clicutcl ingests raw marketing events from page templates, provider
// webhooks and CRM lifecycle callbacks, translates them into the
// canonical event model, and dispatches them server-side to the
// configured destination with consent gating, deduplication and a
// durable retry queue.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load from defaults, config file and
//     environment variables (Koanf v2)
//  2. State store: BadgerDB for dedup marks, failure telemetry, debug
//     flags and worker locks
//  3. Durable store: DuckDB for the retry queue and event log
//  4. Pipeline: dedup ledger, failure recorder, telemetry store,
//     retry queue, dispatcher
//  5. HTTP server: intake API under /api/v1 plus /health and /metrics
//
// Shutdown on SIGINT/SIGTERM is graceful: the supervisor tree stops
// the HTTP server and retry worker, then the stores are closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/clicutcl/clicutcl/internal/adapters"
	"github.com/clicutcl/clicutcl/internal/api"
	"github.com/clicutcl/clicutcl/internal/auth"
	"github.com/clicutcl/clicutcl/internal/config"
	"github.com/clicutcl/clicutcl/internal/dedup"
	"github.com/clicutcl/clicutcl/internal/dispatch"
	"github.com/clicutcl/clicutcl/internal/identity"
	"github.com/clicutcl/clicutcl/internal/logging"
	"github.com/clicutcl/clicutcl/internal/queue"
	"github.com/clicutcl/clicutcl/internal/storage"
	"github.com/clicutcl/clicutcl/internal/telemetry"
	"github.com/clicutcl/clicutcl/internal/webhooks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("site", cfg.Server.Site).
		Bool("destinations_enabled", cfg.Destinations.Enabled).
		Str("primary_destination", cfg.Destinations.Primary.Kind).
		Msg("Configuration loaded")

	kv, err := storage.OpenBadger(cfg.Storage.StatePath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open state store")
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing state store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenDuckDB(ctx, cfg.Storage.DatabasePath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Str("db_path", cfg.Storage.DatabasePath).Msg("Database initialized")

	if cfg.Destinations.Primary.Kind == adapters.KindMetaCAPI && !cfg.Features.ConnectorNative {
		logging.Warn().Msg("Primary destination is a native connector but connector_native is disabled - server-side sending is off")
		cfg.Destinations.Enabled = false
	}

	dedupStore := dedup.NewStore(kv, cfg.Dedup.TTL)
	recorder := dispatch.NewRecorder(kv, cfg.Diagnostics.DebugBufferSize)
	telemetryStore := telemetry.NewStore(kv, telemetry.StoreOptions{
		FlushInterval:    cfg.Diagnostics.FlushInterval,
		RetentionBuckets: cfg.Diagnostics.RetentionBuckets,
		Site:             cfg.Server.Site,
	})
	retryQueue := queue.New(db, kv, queue.Options{
		MaxAttempts: cfg.Queue.MaxAttempts,
		BatchSize:   cfg.Queue.BatchSize,
		LockTTL:     cfg.Queue.LockTTL,
	}, recorder)
	dispatcher := dispatch.New(cfg.Destinations, dedupStore, retryQueue, recorder, cfg.Dedup.TTL)

	var tokens *auth.TokenVerifier
	if cfg.Security.TokenSecret != "" {
		tokens = auth.NewTokenVerifier(
			cfg.Security.TokenSecret,
			cfg.Server.Site,
			cfg.Server.AllowedTokenHosts,
			cfg.Security.NonceReplayLimit,
			cfg.Security.TokenTTL,
			kv,
		)
	} else {
		logging.Warn().Msg("Open intake enabled - batch events are accepted without token verification")
	}

	server := api.NewServer(api.Deps{
		Config:          cfg,
		Dispatcher:      dispatcher,
		Dedup:           dedupStore,
		Telemetry:       telemetryStore,
		Recorder:        recorder,
		Tokens:          tokens,
		WebhookVerifier: auth.NewWebhookVerifier(cfg.Webhooks.ReplayWindow),
		Providers:       webhooks.NewRegistry(),
		Resolver:        identity.NewResolver(cfg.Identity.Policy),
		Queue:           retryQueue,
		EventLog:        queue.NewEventLog(db),
		Admin:           auth.NewAdminCredentials(cfg.Security.AdminUsername, cfg.Security.AdminPasswordHash),
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	supervisor := suture.New("clicutcl", suture.Spec{
		EventHook: func(ev suture.Event) {
			logging.Warn().Str("event", ev.String()).Msg("Supervisor event")
		},
	})
	supervisor.Add(&httpService{server: httpServer, shutdownTimeout: cfg.Server.ShutdownTimeout})
	supervisor.Add(queue.NewWorker(retryQueue, cfg.Queue.Interval))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", httpServer.Addr).Msg("Starting server")
	if err := supervisor.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor error")
	}

	logging.Info().Msg("Server stopped gracefully")
}

// httpService runs the HTTP server under the supervisor tree.
type httpService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

func (s *httpService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		timeout := s.shutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("HTTP server shutdown error")
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *httpService) String() string { return "http-server" }
