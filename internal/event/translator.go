// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package event

import (
	"github.com/google/uuid"
)

// funnelStages maps event names to their funnel stage. Names absent
// from the table resolve to StageUnknown.
var funnelStages = map[string]string{
	"page_view":              StageTop,
	"key_page_view":          StageTop,
	"view_content":           StageTop,
	"search":                 StageTop,
	"video_view":             StageTop,
	"scroll_depth":           StageTop,
	"cta_click":              StageMid,
	"form_start":             StageMid,
	"form_submit_attempt":    StageMid,
	"contact_call_click":     StageMid,
	"contact_whatsapp_start": StageMid,
	"contact_chat_start":     StageMid,
	"lead":                   StageBottom,
	"book_appointment":       StageBottom,
	"qualified_lead":         StageBottom,
	"client_won":             StageBottom,
	"purchase":               StageBottom,
}

// intentLevels maps event names to an intent segment written into
// meta.segments.intent_level. Bottom-funnel events are "converted",
// mid-funnel interactions are "high", engaged top-funnel views are
// "mid", and everything else is "low".
var intentLevels = map[string]string{
	"lead":                   "converted",
	"book_appointment":       "converted",
	"qualified_lead":         "converted",
	"client_won":             "converted",
	"purchase":               "converted",
	"cta_click":              "high",
	"form_start":             "high",
	"form_submit_attempt":    "high",
	"contact_call_click":     "high",
	"contact_whatsapp_start": "high",
	"contact_chat_start":     "high",
	"key_page_view":          "mid",
	"view_content":           "mid",
	"search":                 "mid",
	"video_view":             "mid",
}

// FunnelStageFor returns the funnel stage for an event name.
func FunnelStageFor(name string) string {
	if stage, ok := funnelStages[name]; ok {
		return stage
	}
	return StageUnknown
}

// IntentLevelFor returns the intent segment for an event name.
func IntentLevelFor(name string) string {
	if level, ok := intentLevels[name]; ok {
		return level
	}
	return "low"
}

// Translate converts an inbound payload of any supported shape (v1 flat
// event, v2-shaped event, or a bare {"event": name}) into a canonical
// v2 event. The fallback consent is applied only when the input carries
// no usable consent block of its own; callers pass the ambient consent
// snapshot for the request. Translating an already-canonical event
// reproduces it, regenerating only fields that were truly absent.
func Translate(input map[string]interface{}, fallback *Consent) *Canonical {
	if input == nil {
		return NewInvalid()
	}

	raw := make(map[string]interface{}, len(input)+4)
	for k, v := range input {
		raw[k] = v
	}

	name := SanitizeSlug(asString(raw["event_name"]))
	if name == "" {
		name = SanitizeSlug(asString(raw["event"]))
	}
	if name == "" {
		return NewInvalid()
	}
	raw["event_name"] = name

	explicitTime := resolveEventTime(raw)
	if explicitTime > 0 {
		raw["event_time"] = explicitTime
	} else {
		delete(raw, "event_time")
	}

	if asString(raw["event_id"]) == "" {
		raw["event_id"] = uuid.NewString()
	}

	if _, ok := raw["page_context"]; !ok {
		raw["page_context"] = resolvePageContext(raw)
	}

	c := Normalize(raw)

	if c.Consent == nil && fallback != nil {
		copied := *fallback
		c.Consent = &copied
	}

	c.FunnelStage = FunnelStageFor(c.EventName)

	segments, _ := c.Meta["segments"].(map[string]interface{})
	if segments == nil {
		segments = map[string]interface{}{}
	}
	segments["intent_level"] = IntentLevelFor(c.EventName)
	c.Meta["segments"] = segments

	if explicitTime <= 0 {
		c.Meta["migrated_from_v1"] = true
	}

	return c
}

// resolveEventTime reads the event timestamp from any of the historical
// keys. Returns 0 when absent or unusable.
func resolveEventTime(raw map[string]interface{}) int64 {
	for _, key := range []string{"event_time", "timestamp", "ts"} {
		if t := asInt64(raw[key]); t > 0 {
			return t
		}
	}
	return 0
}

// resolvePageContext builds a page context from the legacy page keys.
func resolvePageContext(raw map[string]interface{}) map[string]interface{} {
	if m := asMap(raw["page"]); m != nil {
		return m
	}
	if path := asString(raw["page_path"]); path != "" {
		return map[string]interface{}{"path": path}
	}
	return map[string]interface{}{}
}
