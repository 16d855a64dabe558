// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package adapters

import (
	"net/http"
)

// metaCAPI sends to the Meta Conversions API. Without an endpoint and
// access token it degrades to a skipping stub rather than an error, so
// a half-configured destination never pollutes failure telemetry.
type metaCAPI struct {
	cfg    Config
	client *http.Client
}

func newMetaCAPI(cfg Config) *metaCAPI {
	return &metaCAPI{cfg: cfg, client: cfg.client()}
}

func (a *metaCAPI) Name() string { return KindMetaCAPI }

func (a *metaCAPI) Send(payload map[string]interface{}) Result {
	if a.cfg.Endpoint == "" || a.cfg.APIKey == "" {
		return SkippedResult("adapter_not_configured")
	}
	body := map[string]interface{}{
		"data":         []interface{}{capiEvent(payload)},
		"access_token": a.cfg.APIKey,
	}
	return postJSON(a.client, Config{Timeout: a.cfg.Timeout}, a.cfg.Endpoint, body)
}

func (a *metaCAPI) HealthCheck() Result {
	if a.cfg.Endpoint == "" || a.cfg.APIKey == "" {
		return SkippedResult("adapter_not_configured")
	}
	return healthCheck(a.client, a.cfg.Endpoint)
}

// capiEvent reshapes the flattened internal event into the CAPI event
// schema: event identity at the top level, hashed identifiers under
// user_data, everything else under custom_data.
func capiEvent(payload map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"event_name":    payload["event_name"],
		"event_id":      payload["event_id"],
		"event_time":    payload["event_time"],
		"action_source": "website",
	}

	if meta, ok := payload["meta"].(map[string]interface{}); ok {
		if identity, ok := meta["identity"].(map[string]interface{}); ok {
			userData := map[string]interface{}{}
			if v, ok := identity["hashed_email"]; ok {
				userData["em"] = []interface{}{v}
			}
			if v, ok := identity["hashed_phone"]; ok {
				userData["ph"] = []interface{}{v}
			}
			if v, ok := identity["ip_address"]; ok {
				userData["client_ip_address"] = v
			}
			if v, ok := identity["user_agent"]; ok {
				userData["client_user_agent"] = v
			}
			if len(userData) > 0 {
				out["user_data"] = userData
			}
		}
	}

	custom := map[string]interface{}{}
	if commerce, ok := payload["commerce"].(map[string]interface{}); ok {
		if v, ok := commerce["value"]; ok {
			custom["value"] = v
		}
		if v, ok := commerce["currency"]; ok {
			custom["currency"] = v
		}
	}
	if attribution, ok := payload["attribution"].(map[string]interface{}); ok {
		if v, ok := attribution["fbclid"]; ok {
			custom["fbclid"] = v
		}
	}
	if len(custom) > 0 {
		out["custom_data"] = custom
	}
	return out
}
