// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/clicutcl/clicutcl/internal/event"
	"github.com/clicutcl/clicutcl/internal/logging"
	"github.com/clicutcl/clicutcl/internal/metrics"
	"github.com/clicutcl/clicutcl/internal/telemetry"
	"github.com/clicutcl/clicutcl/internal/webhooks"
)

// handleWebhook ingests a signed provider callback. The signature is
// verified over the raw body before any JSON parsing happens, so a
// forged payload never reaches the provider mappers.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "provider")

	if !s.cfg.Features.ExternalWebhooks {
		respondError(w, http.StatusForbidden, "webhooks_disabled", "webhook intake is disabled")
		return
	}
	providerCfg, configured := s.cfg.Webhooks.Providers[slug]
	if !configured || !providerCfg.Enabled {
		metrics.WebhookEvents.WithLabelValues(slug, "provider_disabled").Inc()
		respondError(w, http.StatusForbidden, "provider_disabled", "provider is not enabled")
		return
	}
	provider := s.providers.Get(slug)
	if provider == nil {
		respondError(w, http.StatusNotFound, "unknown_provider", "no mapper for provider")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Security.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(slug, "body_too_large").Inc()
		respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds limit")
		return
	}

	timestamp, _ := strconv.ParseInt(r.Header.Get("X-Clicutcl-Timestamp"), 10, 64)
	signature := r.Header.Get("X-Clicutcl-Signature")
	if err := s.webhookVerifier.Verify(providerCfg.Secret, signature, timestamp, body); err != nil {
		metrics.WebhookEvents.WithLabelValues(slug, "auth_failed").Inc()
		respondError(w, http.StatusUnauthorized, err.Error(), "webhook signature rejected")
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.WebhookEvents.WithLabelValues(slug, "invalid_json").Inc()
		respondError(w, http.StatusBadRequest, "invalid_json", "payload is not valid JSON")
		return
	}
	if !provider.Supports(payload) {
		metrics.WebhookEvents.WithLabelValues(slug, "unsupported").Inc()
		respondError(w, http.StatusBadRequest, "unsupported_payload", "payload shape not recognized")
		return
	}
	mapped, err := provider.MapToCanonical(payload)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(slug, "unsupported").Inc()
		respondError(w, http.StatusBadRequest, "unsupported_payload", "payload could not be mapped")
		return
	}

	c := event.Translate(mapped, nil)
	if !c.Validate() {
		logging.Error().Str("provider", sanitizeLogValue(slug)).Msg("mapped webhook event failed validation")
		respondError(w, http.StatusInternalServerError, "mapping_failed", "mapped event is invalid")
		return
	}
	metrics.EventsReceived.WithLabelValues("webhook").Inc()

	dup, derr := s.dedup.CheckAndMark(webhooks.DedupDestination(slug), c.EventName, c.EventID, s.cfg.Dedup.TTL)
	if derr != nil {
		logging.Err(derr).Str("provider", sanitizeLogValue(slug)).Msg("webhook dedup check failed")
	}
	if dup {
		metrics.WebhookEvents.WithLabelValues(slug, "duplicate").Inc()
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"duplicate":  true,
			"event_id":   c.EventID,
			"event_name": c.EventName,
		})
		return
	}

	acc := telemetry.NewAccumulator()
	result := s.dispatcher.DispatchFromV2(c, acc)
	acc.Flush(s.telemetryStore)

	if result.Failed() {
		metrics.WebhookEvents.WithLabelValues(slug, "failed").Inc()
		respondError(w, http.StatusInternalServerError, "dispatch_failed", "event could not be delivered")
		return
	}
	metrics.WebhookEvents.WithLabelValues(slug, "delivered").Inc()
	if !result.Skipped {
		s.appendEventLog(r, c)
	}
	s.logIntake("webhook:"+slug, c, "delivered")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"duplicate":  false,
		"event_id":   c.EventID,
		"event_name": c.EventName,
	})
}
