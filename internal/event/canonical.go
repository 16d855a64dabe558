// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

// Package event defines the canonical event model (schema v2) and the
// translator that converts heterogeneous inbound payloads into it.
//
// A canonical event is immutable once validated. Every pipeline stage
// after translation operates on this shape; nothing downstream accepts
// raw inbound maps.
package event

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// SchemaVersion is the canonical event schema version stamped into meta.
const SchemaVersion = 2

// Funnel stage values inferred from the event name.
const (
	StageTop     = "top"
	StageMid     = "mid"
	StageBottom  = "bottom"
	StageUnknown = "unknown"
)

// Source channel values for the origin of an event.
const (
	SourceWeb     = "web"
	SourceWebhook = "webhook"
	SourceCRM     = "crm"
	SourceServer  = "server"
)

// InvalidEventName is the placeholder name substituted when construction
// receives input too malformed to resolve a real event name. Placeholder
// events never pass Validate.
const InvalidEventName = "invalid_event"

// maxStringLen caps individual string values inside map-typed fields.
const maxStringLen = 1024

// maxMapDepth bounds sanitization recursion into nested maps.
const maxMapDepth = 5

// clickIDKeys are the attribution click identifiers that get promoted
// from their lt_/ft_ prefixed forms to the bare key.
var clickIDKeys = []string{"gclid", "fbclid", "msclkid", "ttclid", "wbraid", "gbraid"}

// Consent is the per-event consent decision. Both keys are required on
// a valid event; absence of either marks the event invalid.
type Consent struct {
	Marketing bool `json:"marketing"`
	Analytics bool `json:"analytics"`
}

// Canonical is a schema v2 canonical event. Map-typed fields hold only
// sanitized scalars and sub-maps, never arbitrary object graphs.
type Canonical struct {
	EventName       string                 `json:"event_name"`
	EventID         string                 `json:"event_id"`
	EventTime       int64                  `json:"event_time"`
	FunnelStage     string                 `json:"funnel_stage"`
	SessionID       string                 `json:"session_id"`
	SourceChannel   string                 `json:"source_channel"`
	PageContext     map[string]interface{} `json:"page_context"`
	Attribution     map[string]interface{} `json:"attribution"`
	Consent         *Consent               `json:"consent"`
	LeadContext     map[string]interface{} `json:"lead_context,omitempty"`
	CommerceContext map[string]interface{} `json:"commerce_context,omitempty"`
	Identity        map[string]string      `json:"identity,omitempty"`
	DeliveryContext map[string]interface{} `json:"delivery_context,omitempty"`
	Meta            map[string]interface{} `json:"meta"`
}

// Normalize fills every required field of a raw inbound map with a sane
// default and sanitizes all scalar values. It is a pure transform except
// for defaulting event_time and session_id from ambient time/randomness
// when absent. Normalize never fails; Validate is the gate.
func Normalize(raw map[string]interface{}) *Canonical {
	if raw == nil {
		raw = map[string]interface{}{}
	}

	c := &Canonical{
		EventName:       SanitizeSlug(asString(raw["event_name"])),
		EventID:         SanitizeToken(asString(raw["event_id"])),
		EventTime:       asInt64(raw["event_time"]),
		FunnelStage:     SanitizeSlug(asString(raw["funnel_stage"])),
		SessionID:       SanitizeToken(asString(raw["session_id"])),
		SourceChannel:   SanitizeSlug(asString(raw["source_channel"])),
		PageContext:     sanitizeMap(asMap(raw["page_context"]), 0),
		Attribution:     sanitizeMap(asMap(raw["attribution"]), 0),
		LeadContext:     sanitizeMap(asMap(raw["lead_context"]), 0),
		CommerceContext: sanitizeMap(asMap(raw["commerce_context"]), 0),
		DeliveryContext: sanitizeMap(asMap(raw["delivery_context"]), 0),
		Meta:            sanitizeMap(asMap(raw["meta"]), 0),
	}

	c.Consent = parseConsent(raw["consent"])
	c.Identity = sanitizeStringMap(asMap(raw["identity"]))

	if c.EventTime <= 0 {
		c.EventTime = time.Now().Unix()
	}
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}
	if c.FunnelStage == "" {
		c.FunnelStage = StageUnknown
	}
	if c.SourceChannel == "" {
		c.SourceChannel = SourceWeb
	}
	if c.Meta == nil {
		c.Meta = map[string]interface{}{}
	}
	c.Meta["schema_version"] = SchemaVersion

	promoteClickIDs(c.Attribution)

	return c
}

// NewInvalid returns the minimal placeholder event substituted when
// construction input is unusable. The placeholder carries enough shape
// to be logged but never passes Validate.
func NewInvalid() *Canonical {
	return &Canonical{
		EventName:     InvalidEventName,
		EventTime:     time.Now().Unix(),
		FunnelStage:   StageUnknown,
		SourceChannel: SourceWeb,
		Meta:          map[string]interface{}{"schema_version": SchemaVersion},
	}
}

// Validate reports whether the event satisfies the schema v2 invariants:
// all required scalars non-empty, event_time positive, and both consent
// keys present. It returns a boolean so callers can branch into an
// invalid_schema error path without exception-style control flow.
func (c *Canonical) Validate() bool {
	if c == nil {
		return false
	}
	if c.EventName == "" || c.EventName == InvalidEventName {
		return false
	}
	if c.EventID == "" || c.SessionID == "" {
		return false
	}
	if c.EventTime < 1 {
		return false
	}
	if c.FunnelStage == "" || c.SourceChannel == "" {
		return false
	}
	if c.Consent == nil {
		return false
	}
	return true
}

// HasMarketingConsent reports whether the event grants marketing consent.
// A missing consent block denies.
func (c *Canonical) HasMarketingConsent() bool {
	return c != nil && c.Consent != nil && c.Consent.Marketing
}

// parseConsent extracts a consent struct from a raw value. Both keys
// must be present as booleans; otherwise nil is returned and the event
// fails validation.
func parseConsent(raw interface{}) *Consent {
	m := asMap(raw)
	if m == nil {
		return nil
	}
	marketing, okM := asBoolStrict(m["marketing"])
	analytics, okA := asBoolStrict(m["analytics"])
	if !okM || !okA {
		return nil
	}
	return &Consent{Marketing: marketing, Analytics: analytics}
}

// promoteClickIDs copies lt_<id> (preferred) or ft_<id> attribution
// values onto the bare click-id key when the bare key is absent.
func promoteClickIDs(attribution map[string]interface{}) {
	if attribution == nil {
		return
	}
	for _, key := range clickIDKeys {
		if existing, ok := attribution[key]; ok && asString(existing) != "" {
			continue
		}
		if v, ok := attribution["lt_"+key]; ok && asString(v) != "" {
			attribution[key] = v
			continue
		}
		if v, ok := attribution["ft_"+key]; ok && asString(v) != "" {
			attribution[key] = v
		}
	}
}

// sanitizeMap recursively sanitizes a string-keyed map: scalars are
// cleaned and length-capped, sub-maps are recursed up to maxMapDepth,
// slices are reduced to their scalar elements, anything else is dropped.
func sanitizeMap(m map[string]interface{}, depth int) map[string]interface{} {
	if m == nil {
		return nil
	}
	if depth >= maxMapDepth {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		key := SanitizeKey(k)
		if key == "" {
			continue
		}
		if sv, ok := sanitizeValue(v, depth); ok {
			out[key] = sv
		}
	}
	return out
}

// sanitizeValue cleans a single value. The second return reports whether
// the value survived sanitization.
func sanitizeValue(v interface{}, depth int) (interface{}, bool) {
	switch t := v.(type) {
	case string:
		return SanitizeString(t), true
	case bool:
		return t, true
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return t, true
	case map[string]interface{}:
		return sanitizeMap(t, depth+1), true
	case []interface{}:
		out := make([]interface{}, 0, len(t))
		for _, item := range t {
			switch item.(type) {
			case string, bool, float64, float32, int, int32, int64:
				if sv, ok := sanitizeValue(item, depth); ok {
					out = append(out, sv)
				}
			}
		}
		return out, true
	case nil:
		return nil, false
	default:
		return nil, false
	}
}

// sanitizeStringMap flattens a raw map to string values only, used for
// the identity field where sub-structure is never legitimate.
func sanitizeStringMap(m map[string]interface{}) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		key := SanitizeKey(k)
		if key == "" {
			continue
		}
		if s := SanitizeString(asString(v)); s != "" {
			out[key] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SanitizeString strips control characters and caps length.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if len(s) > maxStringLen {
		// cut on a rune boundary so the tail never becomes invalid UTF-8
		cut := maxStringLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

// SanitizeSlug lowercases and keeps only [a-z0-9_-].
func SanitizeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 128 {
		out = out[:128]
	}
	return out
}

// SanitizeToken keeps printable token characters for opaque identifiers
// such as event_id and session_id.
func SanitizeToken(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '_' || r == '-' || r == '.' || r == ':' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 191 {
		out = out[:191]
	}
	return out
}

// SanitizeKey cleans a map key to a safe identifier.
func SanitizeKey(s string) string {
	return SanitizeSlug(s)
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case float32:
		return int64(t)
	}
	return 0
}

func asMap(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return nil
}

// asBoolStrict accepts booleans and the common JSON encodings of them
// (0/1, "true"/"false"). The second return reports key presence with a
// usable value.
func asBoolStrict(v interface{}) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		if t == 0 || t == 1 {
			return t == 1, true
		}
	case int:
		if t == 0 || t == 1 {
			return t == 1, true
		}
	case string:
		switch strings.ToLower(t) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	}
	return false, false
}
