// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

// Package adapters implements the destination senders. Every adapter
// satisfies the same Send/HealthCheck contract so the dispatcher and
// retry queue stay adapter-agnostic; adding a destination means adding
// one kind constant and one implementation.
package adapters

import (
	"errors"
	"net/http"
	"time"
)

// Destination kinds.
const (
	KindCollector = "collector"
	KindStape     = "stape"
	KindMetaCAPI  = "meta_capi"
)

// Adapter timeout bounds.
const (
	DefaultTimeout = 5 * time.Second
	MinTimeout     = 1 * time.Second
	MaxTimeout     = 15 * time.Second
)

// ErrUnknownKind is returned by New for an unrecognized destination kind.
var ErrUnknownKind = errors.New("unknown destination kind")

// Result is the uniform outcome of a send or health check. Transport
// failures carry HTTPStatus 0 and are indistinguishable from timeouts
// on purpose; both feed the same retry path.
type Result struct {
	Success    bool                   `json:"success"`
	Skipped    bool                   `json:"skipped"`
	Status     string                 `json:"status"`
	HTTPStatus int                    `json:"http_status"`
	Message    string                 `json:"message,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// Failed reports whether the result is a real delivery failure, as
// opposed to a success or an intentional skip.
func (r Result) Failed() bool {
	return !r.Success && !r.Skipped
}

// SuccessResult builds a delivered result.
func SuccessResult(httpStatus int) Result {
	return Result{Success: true, Status: "sent", HTTPStatus: httpStatus}
}

// SkippedResult builds an intentional no-op result. Skips are never
// retried and never counted as failures.
func SkippedResult(reason string) Result {
	return Result{Skipped: true, Status: reason}
}

// FailureResult builds a delivery failure with a normalized code.
func FailureResult(code string, httpStatus int, message string) Result {
	return Result{Status: code, HTTPStatus: httpStatus, Message: message}
}

// Adapter is the uniform destination contract.
type Adapter interface {
	Name() string
	Send(payload map[string]interface{}) Result
	HealthCheck() Result
}

// Config carries everything an adapter needs to reach its destination.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// normalize applies the timeout default and clamp.
func (c Config) normalize() Config {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Timeout < MinTimeout {
		c.Timeout = MinTimeout
	}
	if c.Timeout > MaxTimeout {
		c.Timeout = MaxTimeout
	}
	return c
}

// client builds the bounded-timeout HTTP client an adapter sends with.
func (c Config) client() *http.Client {
	return &http.Client{Timeout: c.Timeout}
}

// New builds the adapter for a destination kind. Unknown kinds return
// ErrUnknownKind so the dispatcher can surface missing_adapter.
func New(kind string, cfg Config) (Adapter, error) {
	cfg = cfg.normalize()
	switch kind {
	case KindCollector:
		return newCollector(cfg), nil
	case KindStape:
		return newStape(cfg), nil
	case KindMetaCAPI:
		return newMetaCAPI(cfg), nil
	default:
		return nil, ErrUnknownKind
	}
}
