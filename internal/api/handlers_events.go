// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/clicutcl/clicutcl/internal/consent"
	"github.com/clicutcl/clicutcl/internal/dispatch"
	"github.com/clicutcl/clicutcl/internal/event"
	"github.com/clicutcl/clicutcl/internal/identity"
	"github.com/clicutcl/clicutcl/internal/logging"
	"github.com/clicutcl/clicutcl/internal/metrics"
	"github.com/clicutcl/clicutcl/internal/telemetry"
)

type batchError struct {
	Index  int    `json:"index"`
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

type batchResponse struct {
	Success    bool         `json:"success"`
	Accepted   int          `json:"accepted"`
	Duplicates int          `json:"duplicates"`
	Skipped    int          `json:"skipped"`
	Errors     []batchError `json:"errors,omitempty"`
}

// handleBatchEvents ingests a batch of raw events, translates each to
// the canonical model and hands it to the dispatcher. The request body
// is either {"token": "...", "events": [...]} or a single bare event
// object. Partial failures are reported per index; the batch as a
// whole still returns 200.
func (s *Server) handleBatchEvents(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Features.EventV2 {
		metrics.EventsRejected.WithLabelValues("feature_disabled").Inc()
		respondError(w, http.StatusForbidden, "event_v2_disabled", "event intake is disabled")
		return
	}

	var body map[string]interface{}
	tooLarge, err := decodeJSONBody(w, r, s.cfg.Security.MaxBodyBytes, &body)
	if tooLarge {
		metrics.EventsRejected.WithLabelValues("body_too_large").Inc()
		respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds limit")
		return
	}
	if err != nil {
		metrics.EventsRejected.WithLabelValues("invalid_json").Inc()
		respondError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}

	token := r.Header.Get("X-Clicutcl-Token")
	if token == "" {
		token = stringField(body, "token")
	}
	if s.tokens != nil {
		if _, err := s.tokens.Verify(token, r.Host, stringField(body, "blog")); err != nil {
			metrics.EventsRejected.WithLabelValues("auth").Inc()
			respondError(w, http.StatusUnauthorized, err.Error(), "intake token rejected")
			return
		}
	}

	events := extractEvents(body)
	if len(events) == 0 {
		metrics.EventsRejected.WithLabelValues("empty_batch").Inc()
		respondError(w, http.StatusBadRequest, "empty_batch", "no events in request")
		return
	}
	if len(events) > s.cfg.Security.MaxBatchEvents {
		metrics.EventsRejected.WithLabelValues("batch_too_large").Inc()
		respondError(w, http.StatusRequestEntityTooLarge, "batch_too_large", "too many events in batch")
		return
	}

	cookieConsent := consent.FromRequest(r)
	fallback := cookieConsent.ToEventConsent()
	acc := telemetry.NewAccumulator()
	resp := batchResponse{Success: true}

	for i, item := range events {
		raw, ok := item.(map[string]interface{})
		if !ok {
			resp.Errors = append(resp.Errors, batchError{Index: i, Code: "invalid_schema", Detail: "event must be an object"})
			metrics.EventsRejected.WithLabelValues("invalid_schema").Inc()
			continue
		}

		c := event.Translate(raw, fallback)
		if !c.Validate() {
			resp.Errors = append(resp.Errors, batchError{Index: i, Code: "invalid_schema"})
			metrics.EventsRejected.WithLabelValues("invalid_schema").Inc()
			s.logIntake("batch", c, "invalid_schema")
			continue
		}
		metrics.EventsReceived.WithLabelValues("batch").Inc()

		// Ingest-level dedup is keyed separately from the dispatcher's
		// per-destination ledger so replayed batches are caught before
		// any destination work happens.
		dup, derr := s.dedup.CheckAndMark("ingest:"+s.dispatcher.Destination(), c.EventName, c.EventID, s.cfg.Dedup.TTL)
		if derr != nil {
			logging.Err(derr).Str("event_name", c.EventName).Msg("ingest dedup check failed")
		}
		if dup {
			resp.Duplicates++
			s.logIntake("batch", c, "duplicate")
			continue
		}

		s.attachIdentity(r, raw, c)

		result := s.dispatcher.DispatchFromV2(c, acc)
		if result.Skipped {
			resp.Skipped++
			s.logIntake("batch", c, "skipped")
		} else {
			resp.Accepted++
			s.appendEventLog(r, c)
			s.logIntake("batch", c, "accepted")
		}
	}

	acc.Flush(s.telemetryStore)

	resp.Success = len(resp.Errors) == 0
	respondJSON(w, http.StatusOK, resp)
}

// attachIdentity resolves hashed identity material from the raw event
// and merges it into the canonical event, without overwriting anything
// the client already supplied.
func (s *Server) attachIdentity(r *http.Request, raw map[string]interface{}, c *event.Canonical) {
	if s.resolver == nil || c.Consent == nil {
		return
	}
	lead := mapField(raw, "lead_context")
	in := identity.Input{
		Email:     stringField(lead, "email"),
		Phone:     stringField(lead, "phone"),
		IPAddress: clientIPFromContext(r),
		UserAgent: r.UserAgent(),
	}
	decision := consent.Decision{
		Marketing: c.Consent.Marketing,
		Analytics: c.Consent.Analytics,
		Granted:   true,
	}
	opts := identity.Options{IncludeNetwork: boolField(raw, "include_network")}
	resolved := s.resolver.Resolve(in, decision, opts)
	if len(resolved) == 0 {
		return
	}
	if c.Identity == nil {
		c.Identity = make(map[string]string, len(resolved))
	}
	for k, v := range resolved {
		if _, exists := c.Identity[k]; !exists {
			c.Identity[k] = v
		}
	}
}

// logIntake records the event in the raw-intake debug ring buffer while
// the time-boxed debug flag is active.
func (s *Server) logIntake(source string, c *event.Canonical, outcome string) {
	if s.recorder == nil || !s.recorder.DebugActive() {
		return
	}
	s.recorder.LogIntake(dispatch.IntakeLogEntry{
		Source:    source,
		EventName: c.EventName,
		EventID:   c.EventID,
		Outcome:   outcome,
	})
}

// appendEventLog records an accepted event in the operational event
// log. Append failures are logged, never surfaced to the caller.
func (s *Server) appendEventLog(r *http.Request, c *event.Canonical) {
	if s.eventLog == nil {
		return
	}
	if err := s.eventLog.Append(r.Context(), c.EventName, c.ToLegacy()); err != nil {
		logging.Debug().Err(err).Str("event_name", c.EventName).Msg("event log append failed")
	}
}

// handleMintToken issues a short-lived intake token bound to the
// requesting host. Page templates fetch one before posting events.
func (s *Server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		respondError(w, http.StatusServiceUnavailable, "token_minting_disabled", "no token secret configured")
		return
	}
	blog := r.URL.Query().Get("blog")
	token, err := s.tokens.Mint(r.Host, blog, uuid.New().String())
	if err != nil {
		logging.Err(err).Msg("token mint failed")
		respondError(w, http.StatusInternalServerError, "token_mint_failed", "could not mint token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   token,
		"ttl":     int(s.cfg.Security.TokenTTL.Seconds()),
	})
}

// extractEvents pulls the event list out of the request body. A body
// without an "events" key is treated as a single bare event.
func extractEvents(body map[string]interface{}) []interface{} {
	if list, ok := body["events"].([]interface{}); ok {
		return list
	}
	if _, hasEvents := body["events"]; hasEvents {
		return nil
	}
	single := make(map[string]interface{}, len(body))
	for k, v := range body {
		if k == "token" || k == "blog" {
			continue
		}
		single[k] = v
	}
	if len(single) == 0 {
		return nil
	}
	return []interface{}{single}
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]interface{}, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}

func mapField(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]interface{})
	return v
}
