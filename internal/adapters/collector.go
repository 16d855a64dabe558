// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package adapters

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// collector POSTs the full event JSON to a generic HTTP collector
// endpoint, such as a self-hosted ingestion bridge.
type collector struct {
	cfg    Config
	client *http.Client
}

func newCollector(cfg Config) *collector {
	return &collector{cfg: cfg, client: cfg.client()}
}

func (a *collector) Name() string { return KindCollector }

func (a *collector) Send(payload map[string]interface{}) Result {
	if a.cfg.Endpoint == "" {
		return SkippedResult("adapter_not_configured")
	}
	return postJSON(a.client, a.cfg, a.cfg.Endpoint, stampSchema(payload))
}

func (a *collector) HealthCheck() Result {
	return healthCheck(a.client, a.cfg.Endpoint)
}

// stampSchema copies the payload and stamps the schema version so the
// receiving collector can branch on shape.
func stampSchema(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["schema_version"] = 2
	return out
}

// postJSON performs the shared adapter send: JSON body, bounded
// timeout, 2xx success. Transport-level failures report HTTP status 0.
func postJSON(client *http.Client, cfg Config, endpoint string, body interface{}) Result {
	data, err := json.Marshal(body)
	if err != nil {
		return FailureResult("encode_failed", 0, err.Error())
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return FailureResult("bad_endpoint", 0, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("X-Clicutcl-Key", cfg.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return FailureResult("transport_error", 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return SuccessResult(resp.StatusCode)
	}
	return FailureResult(fmt.Sprintf("http_%d", resp.StatusCode), resp.StatusCode,
		fmt.Sprintf("destination returned %s", resp.Status))
}

// healthCheck performs a lightweight GET against the endpoint. Any
// response below 400 counts as reachable; auth walls and server errors
// do not.
func healthCheck(client *http.Client, endpoint string) Result {
	if endpoint == "" {
		return SkippedResult("adapter_not_configured")
	}
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return FailureResult("bad_endpoint", 0, err.Error())
	}
	resp, err := client.Do(req)
	if err != nil {
		return FailureResult("unreachable", 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 400 {
		return Result{Success: true, Status: "reachable", HTTPStatus: resp.StatusCode}
	}
	return FailureResult(fmt.Sprintf("http_%d", resp.StatusCode), resp.StatusCode, "health check failed")
}
