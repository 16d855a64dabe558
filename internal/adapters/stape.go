// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package adapters

import (
	"net/http"
)

// stape sends to a Stape-style server-side tag manager container. The
// container speaks the same JSON-over-POST dialect as the generic
// collector but expects the event wrapped in a client envelope.
type stape struct {
	cfg    Config
	client *http.Client
}

func newStape(cfg Config) *stape {
	return &stape{cfg: cfg, client: cfg.client()}
}

func (a *stape) Name() string { return KindStape }

func (a *stape) Send(payload map[string]interface{}) Result {
	if a.cfg.Endpoint == "" {
		return SkippedResult("adapter_not_configured")
	}
	envelope := map[string]interface{}{
		"client_name": "clicutcl",
		"event":       stampSchema(payload),
	}
	return postJSON(a.client, a.cfg, a.cfg.Endpoint, envelope)
}

func (a *stape) HealthCheck() Result {
	return healthCheck(a.client, a.cfg.Endpoint)
}
