// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

// Package consent reads the visitor's consent decision from request
// state. The decision is snapshotted once per request and passed down
// the pipeline explicitly; nothing below the intake boundary touches
// cookies directly.
package consent

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/clicutcl/clicutcl/internal/event"
)

// CookieName is the consent cookie written by the browser-side banner.
const CookieName = "clicutcl_consent"

// Decision is a point-in-time consent snapshot for one request.
// Granted reports whether any explicit decision was found at all;
// absent a decision, both purposes deny.
type Decision struct {
	Marketing bool
	Analytics bool
	Granted   bool
}

// cookiePayload is the JSON shape stored in the consent cookie.
type cookiePayload struct {
	Marketing *bool `json:"marketing"`
	Analytics *bool `json:"analytics"`
}

// FromRequest snapshots the consent decision carried by the request.
// The cookie value is URL-encoded JSON; the historical plain values
// "accepted" and "denied" are still honored. A missing or unreadable
// cookie denies both purposes.
func FromRequest(r *http.Request) Decision {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return Decision{}
	}
	return Parse(cookie.Value)
}

// Parse decodes a raw consent cookie value into a decision.
func Parse(value string) Decision {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		decoded = value
	}
	decoded = strings.TrimSpace(decoded)

	switch strings.ToLower(decoded) {
	case "accepted", "all":
		return Decision{Marketing: true, Analytics: true, Granted: true}
	case "denied", "none":
		return Decision{Granted: true}
	}

	var payload cookiePayload
	if err := json.Unmarshal([]byte(decoded), &payload); err != nil {
		return Decision{}
	}
	if payload.Marketing == nil && payload.Analytics == nil {
		return Decision{}
	}
	d := Decision{Granted: true}
	if payload.Marketing != nil {
		d.Marketing = *payload.Marketing
	}
	if payload.Analytics != nil {
		d.Analytics = *payload.Analytics
	}
	return d
}

// ToEventConsent converts the decision into the canonical event consent
// block. Returns nil when no explicit decision exists, which leaves the
// event without a consent block and therefore invalid until the caller
// supplies one.
func (d Decision) ToEventConsent() *event.Consent {
	if !d.Granted {
		return nil
	}
	return &event.Consent{Marketing: d.Marketing, Analytics: d.Analytics}
}
