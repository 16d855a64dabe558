// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/clicutcl/clicutcl/internal/auth"
	"github.com/clicutcl/clicutcl/internal/event"
	"github.com/clicutcl/clicutcl/internal/identity"
	"github.com/clicutcl/clicutcl/internal/metrics"
	"github.com/clicutcl/clicutcl/internal/telemetry"
	"github.com/clicutcl/clicutcl/internal/validation"
)

type lifecycleRequest struct {
	Stage   string                 `json:"stage" validate:"required,oneof=lead book_appointment qualified_lead client_won"`
	LeadID  string                 `json:"lead_id" validate:"omitempty,max=191"`
	EventID string                 `json:"event_id" validate:"omitempty,max=191"`
	Payload map[string]interface{} `json:"payload"`
}

// handleLifecycle ingests CRM stage transitions (lead won, appointment
// booked) as funnel events. Callers authenticate with either the admin
// credentials or the shared lifecycle token. Omitted event IDs are
// derived deterministically from the stage and lead, so a CRM that
// replays its callback does not double-count the conversion.
func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Features.LifecycleIngestion {
		respondError(w, http.StatusForbidden, "lifecycle_disabled", "lifecycle intake is disabled")
		return
	}
	if !s.lifecycleAuthorized(r) {
		metrics.EventsRejected.WithLabelValues("auth").Inc()
		respondError(w, http.StatusUnauthorized, "lifecycle_auth_required", "missing or invalid credentials")
		return
	}

	var req lifecycleRequest
	tooLarge, err := decodeJSONBody(w, r, s.cfg.Security.MaxBodyBytes, &req)
	if tooLarge {
		respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds limit")
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		metrics.EventsRejected.WithLabelValues("invalid_schema").Inc()
		respondError(w, http.StatusBadRequest, "invalid_stage", verr.Error())
		return
	}

	eventID := event.SanitizeToken(req.EventID)
	if eventID == "" {
		payloadJSON, _ := json.Marshal(req.Payload)
		eventID = "lc-" + identity.HashFor(req.Stage, req.LeadID, string(payloadJSON))
	}

	raw := map[string]interface{}{
		"event_name":     req.Stage,
		"event_id":       eventID,
		"source_channel": "crm",
		"consent":        map[string]interface{}{"marketing": true, "analytics": true},
	}
	if len(req.Payload) > 0 {
		raw["lead_context"] = req.Payload
	}
	if req.LeadID != "" {
		lead, _ := raw["lead_context"].(map[string]interface{})
		if lead == nil {
			lead = map[string]interface{}{}
			raw["lead_context"] = lead
		}
		lead["lead_id"] = req.LeadID
	}

	c := event.Translate(raw, nil)
	if !c.Validate() {
		respondError(w, http.StatusBadRequest, "invalid_schema", "lifecycle event is invalid")
		return
	}
	metrics.EventsReceived.WithLabelValues("lifecycle").Inc()

	acc := telemetry.NewAccumulator()
	result := s.dispatcher.DispatchFromV2(c, acc)
	acc.Flush(s.telemetryStore)

	if result.Failed() {
		respondError(w, http.StatusInternalServerError, "dispatch_failed", "event could not be delivered")
		return
	}
	if !result.Skipped {
		s.appendEventLog(r, c)
	}
	s.logIntake("lifecycle", c, "accepted")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"event_id":   c.EventID,
		"event_name": c.EventName,
	})
}

func (s *Server) lifecycleAuthorized(r *http.Request) bool {
	if user, pass, ok := r.BasicAuth(); ok && s.admin != nil && s.admin.Check(user, pass) {
		return true
	}
	return auth.VerifySharedToken(s.cfg.Lifecycle.Token, r.Header.Get("X-Clicutcl-Token"))
}
