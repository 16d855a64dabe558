// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package api

import (
	"net/http"
	"strconv"

	"github.com/clicutcl/clicutcl/internal/logging"
)

// handleDeliveryDiagnostics reports the delivery health picture an
// operator needs when a destination goes quiet: the last recorded
// error, the recent-dispatch debug buffer, hourly failure buckets and
// the retry queue depth.
func (s *Server) handleDeliveryDiagnostics(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Features.DiagnosticsV2 {
		respondError(w, http.StatusForbidden, "diagnostics_disabled", "diagnostics are disabled")
		return
	}

	destination := s.dispatcher.Destination()

	buckets, err := s.telemetryStore.Buckets()
	if err != nil {
		logging.Err(err).Msg("failed to read telemetry buckets")
	}
	depth, err := s.queue.Depth(r.Context())
	if err != nil {
		logging.Err(err).Msg("failed to read retry queue depth")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"destination":      destination,
		"last_error":       s.recorder.GetLastError(destination),
		"debug_active":     s.recorder.DebugActive(),
		"recent":           s.recorder.RecentDispatches(),
		"recent_intake":    s.recorder.RecentIntake(),
		"failure_buckets":  buckets,
		"queue_depth":      depth,
		"destination_live": !s.dispatcher.HealthCheck().Failed(),
	})
}

func (s *Server) handleDedupStats(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Features.DiagnosticsV2 {
		respondError(w, http.StatusForbidden, "diagnostics_disabled", "diagnostics are disabled")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   s.dedup.GetStats(),
	})
}

// handleEnableDebug switches on dispatch logging for the configured
// debug window. The switch lives in the state store, so it survives a
// restart and expires on its own.
func (s *Server) handleEnableDebug(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Features.DiagnosticsV2 {
		respondError(w, http.StatusForbidden, "diagnostics_disabled", "diagnostics are disabled")
		return
	}
	if err := s.recorder.EnableDebug(s.cfg.Diagnostics.DebugWindow); err != nil {
		logging.Err(err).Msg("failed to enable debug logging")
		respondError(w, http.StatusInternalServerError, "debug_enable_failed", "could not persist debug flag")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"debug_active":   true,
		"window_seconds": int(s.cfg.Diagnostics.DebugWindow.Seconds()),
	})
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Features.DiagnosticsV2 {
		respondError(w, http.StatusForbidden, "diagnostics_disabled", "diagnostics are disabled")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	entries, err := s.eventLog.Recent(r.Context(), limit)
	if err != nil {
		logging.Err(err).Msg("failed to read event log")
		respondError(w, http.StatusInternalServerError, "event_log_failed", "could not read event log")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"events":  entries,
	})
}
