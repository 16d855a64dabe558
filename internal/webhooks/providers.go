// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

// Package webhooks maps third-party provider payloads onto the
// canonical event shape. Routing is explicit by provider slug in the
// URL path; Supports is a sanity check on the payload shape for the
// routed provider, never a cross-provider sniffing mechanism.
package webhooks

import (
	"errors"
	"fmt"

	"github.com/clicutcl/clicutcl/internal/event"
	"github.com/clicutcl/clicutcl/internal/identity"
)

// ErrUnsupportedPayload marks a payload the routed provider cannot map.
var ErrUnsupportedPayload = errors.New("unsupported webhook payload")

// Provider maps one external service's webhook payloads.
type Provider interface {
	Slug() string
	Supports(payload map[string]interface{}) bool
	MapToCanonical(payload map[string]interface{}) (map[string]interface{}, error)
}

// Registry routes provider slugs to their mapper.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds the registry with all built-in providers.
func NewRegistry() *Registry {
	r := &Registry{providers: map[string]Provider{}}
	for _, p := range []Provider{calendly{}, hubspot{}, typeform{}} {
		r.providers[p.Slug()] = p
	}
	return r
}

// Get returns the provider for a slug, or nil.
func (r *Registry) Get(slug string) Provider {
	return r.providers[slug]
}

// Slugs lists the registered provider slugs.
func (r *Registry) Slugs() []string {
	out := make([]string, 0, len(r.providers))
	for slug := range r.providers {
		out = append(out, slug)
	}
	return out
}

// DedupDestination scopes the ingest dedup layer per provider so the
// same external event replayed by the provider is not double-delivered.
func DedupDestination(slug string) string {
	return "webhook:" + slug
}

// webhookConsent is the consent block stamped onto provider events.
// A booked meeting or submitted form is an explicit first-party
// business interaction, handled server to server.
func webhookConsent() map[string]interface{} {
	return map[string]interface{}{"marketing": true, "analytics": true}
}

// calendly maps Calendly invitee webhooks onto book_appointment events.
type calendly struct{}

func (calendly) Slug() string { return "calendly" }

func (calendly) Supports(payload map[string]interface{}) bool {
	kind, _ := payload["event"].(string)
	return kind == "invitee.created" || kind == "invitee.canceled"
}

func (calendly) MapToCanonical(payload map[string]interface{}) (map[string]interface{}, error) {
	kind, _ := payload["event"].(string)
	if kind != "invitee.created" {
		return nil, fmt.Errorf("%w: calendly %q", ErrUnsupportedPayload, kind)
	}
	inner, _ := payload["payload"].(map[string]interface{})
	if inner == nil {
		return nil, fmt.Errorf("%w: calendly payload missing", ErrUnsupportedPayload)
	}

	eventID, _ := inner["uri"].(string)
	if eventID == "" {
		eventID = identity.HashFor("calendly", fmt.Sprintf("%v", inner["email"]), fmt.Sprintf("%v", inner["created_at"]))
	}

	lead := map[string]interface{}{"provider": "calendly"}
	if v, ok := inner["event_type"].(string); ok {
		lead["meeting_type"] = v
	}

	return map[string]interface{}{
		"event_name":     "book_appointment",
		"event_id":       event.SanitizeToken(eventID),
		"source_channel": event.SourceWebhook,
		"consent":        webhookConsent(),
		"lead_context":   lead,
	}, nil
}

// hubspot maps HubSpot contact webhooks onto lead events.
type hubspot struct{}

func (hubspot) Slug() string { return "hubspot" }

func (hubspot) Supports(payload map[string]interface{}) bool {
	kind, _ := payload["subscriptionType"].(string)
	return kind != ""
}

func (hubspot) MapToCanonical(payload map[string]interface{}) (map[string]interface{}, error) {
	kind, _ := payload["subscriptionType"].(string)
	if kind != "contact.creation" {
		return nil, fmt.Errorf("%w: hubspot %q", ErrUnsupportedPayload, kind)
	}

	eventID := fmt.Sprintf("hs-%v-%v", payload["eventId"], payload["objectId"])
	lead := map[string]interface{}{"provider": "hubspot"}
	if v, ok := payload["changeSource"].(string); ok {
		lead["change_source"] = v
	}

	return map[string]interface{}{
		"event_name":     "lead",
		"event_id":       event.SanitizeToken(eventID),
		"source_channel": event.SourceWebhook,
		"consent":        webhookConsent(),
		"lead_context":   lead,
	}, nil
}

// typeform maps Typeform form responses onto lead events.
type typeform struct{}

func (typeform) Slug() string { return "typeform" }

func (typeform) Supports(payload map[string]interface{}) bool {
	kind, _ := payload["event_type"].(string)
	return kind == "form_response"
}

func (typeform) MapToCanonical(payload map[string]interface{}) (map[string]interface{}, error) {
	kind, _ := payload["event_type"].(string)
	if kind != "form_response" {
		return nil, fmt.Errorf("%w: typeform %q", ErrUnsupportedPayload, kind)
	}
	response, _ := payload["form_response"].(map[string]interface{})
	if response == nil {
		return nil, fmt.Errorf("%w: typeform form_response missing", ErrUnsupportedPayload)
	}

	eventID, _ := response["token"].(string)
	if eventID == "" {
		return nil, fmt.Errorf("%w: typeform response token missing", ErrUnsupportedPayload)
	}

	lead := map[string]interface{}{"provider": "typeform"}
	if v, ok := response["form_id"].(string); ok {
		lead["form_id"] = v
	}

	return map[string]interface{}{
		"event_name":     "lead",
		"event_id":       event.SanitizeToken("tf-" + eventID),
		"source_channel": event.SourceWebhook,
		"consent":        webhookConsent(),
		"lead_context":   lead,
	}, nil
}
