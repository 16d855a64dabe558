// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package event

import (
	"testing"
)

func grantAll() *Consent {
	return &Consent{Marketing: true, Analytics: true}
}

func TestTranslateBareEventShape(t *testing.T) {
	c := Translate(map[string]interface{}{"event": "page_view"}, grantAll())
	if !c.Validate() {
		t.Fatal("expected bare event shape to translate into a valid event")
	}
	if c.EventName != "page_view" {
		t.Errorf("expected page_view, got %s", c.EventName)
	}
	if c.EventID == "" {
		t.Error("expected generated event_id")
	}
	if c.FunnelStage != StageTop {
		t.Errorf("expected top stage, got %s", c.FunnelStage)
	}
}

func TestTranslateLegacyV1Shape(t *testing.T) {
	c := Translate(map[string]interface{}{
		"event":     "form_submit_attempt",
		"timestamp": float64(1755000000),
		"page_path": "/contact",
	}, grantAll())
	if !c.Validate() {
		t.Fatal("expected valid translation")
	}
	if c.EventTime != 1755000000 {
		t.Errorf("expected timestamp resolved, got %d", c.EventTime)
	}
	if c.PageContext["path"] != "/contact" {
		t.Errorf("expected page_path promoted, got %v", c.PageContext)
	}
	if c.FunnelStage != StageMid {
		t.Errorf("expected mid stage, got %s", c.FunnelStage)
	}
	if v, ok := c.Meta["migrated_from_v1"]; ok && v == true {
		t.Error("explicit timestamp should not be tagged migrated_from_v1")
	}
}

func TestTranslateTagsMigratedWhenNoTimestamp(t *testing.T) {
	c := Translate(map[string]interface{}{"event": "cta_click"}, grantAll())
	if v, ok := c.Meta["migrated_from_v1"]; !ok || v != true {
		t.Error("expected migrated_from_v1 tag when input carried no timestamp")
	}
}

func TestTranslateIdempotentOnCanonicalInput(t *testing.T) {
	first := Translate(map[string]interface{}{
		"event_name":     "lead",
		"event_id":       "evt-9",
		"event_time":     float64(1760000000),
		"session_id":     "sess-9",
		"source_channel": "web",
		"consent":        map[string]interface{}{"marketing": true, "analytics": false},
		"attribution":    map[string]interface{}{"gclid": "g-1"},
	}, nil)
	if !first.Validate() {
		t.Fatal("expected first translation valid")
	}

	// feed the canonical output back through as a raw map
	again := Translate(map[string]interface{}{
		"event_name":     first.EventName,
		"event_id":       first.EventID,
		"event_time":     first.EventTime,
		"session_id":     first.SessionID,
		"source_channel": first.SourceChannel,
		"consent": map[string]interface{}{
			"marketing": first.Consent.Marketing,
			"analytics": first.Consent.Analytics,
		},
		"attribution": first.Attribution,
		"meta":        first.Meta,
	}, nil)

	if again.EventName != first.EventName || again.EventID != first.EventID {
		t.Error("translation changed event identity")
	}
	if again.EventTime != first.EventTime {
		t.Errorf("translation changed event_time: %d vs %d", again.EventTime, first.EventTime)
	}
	if again.SessionID != first.SessionID {
		t.Error("translation changed session_id")
	}
	if again.FunnelStage != first.FunnelStage {
		t.Error("translation changed funnel stage")
	}
	if again.Consent == nil || *again.Consent != *first.Consent {
		t.Error("translation changed consent")
	}
	if again.Attribution["gclid"] != "g-1" {
		t.Error("translation changed attribution")
	}
}

func TestTranslateConsentFallback(t *testing.T) {
	c := Translate(map[string]interface{}{"event": "lead"}, &Consent{Marketing: false, Analytics: true})
	if c.Consent == nil {
		t.Fatal("expected fallback consent applied")
	}
	if c.Consent.Marketing || !c.Consent.Analytics {
		t.Errorf("unexpected fallback consent: %+v", c.Consent)
	}
}

func TestTranslateExplicitConsentWinsOverFallback(t *testing.T) {
	c := Translate(map[string]interface{}{
		"event":   "lead",
		"consent": map[string]interface{}{"marketing": true, "analytics": true},
	}, &Consent{Marketing: false, Analytics: false})
	if !c.Consent.Marketing {
		t.Error("expected explicit consent to win over fallback")
	}
}

func TestTranslateUnresolvableName(t *testing.T) {
	c := Translate(map[string]interface{}{"foo": "bar"}, grantAll())
	if c.EventName != InvalidEventName {
		t.Errorf("expected invalid_event placeholder, got %s", c.EventName)
	}
	if c.Validate() {
		t.Error("placeholder must not validate")
	}
}

func TestFunnelStageTable(t *testing.T) {
	cases := map[string]string{
		"page_view":        StageTop,
		"scroll_depth":     StageTop,
		"cta_click":        StageMid,
		"form_start":       StageMid,
		"lead":             StageBottom,
		"purchase":         StageBottom,
		"book_appointment": StageBottom,
		"mystery_event":    StageUnknown,
	}
	for name, want := range cases {
		if got := FunnelStageFor(name); got != want {
			t.Errorf("FunnelStageFor(%s) = %s, want %s", name, got, want)
		}
	}
}

func TestIntentLevelTable(t *testing.T) {
	cases := map[string]string{
		"purchase":      "converted",
		"cta_click":     "high",
		"view_content":  "mid",
		"page_view":     "low",
		"mystery_event": "low",
	}
	for name, want := range cases {
		if got := IntentLevelFor(name); got != want {
			t.Errorf("IntentLevelFor(%s) = %s, want %s", name, got, want)
		}
	}
}

func TestIntentLevelWrittenIntoMeta(t *testing.T) {
	c := Translate(map[string]interface{}{"event": "lead"}, grantAll())
	segments, ok := c.Meta["segments"].(map[string]interface{})
	if !ok {
		t.Fatal("expected meta.segments map")
	}
	if segments["intent_level"] != "converted" {
		t.Errorf("expected converted intent, got %v", segments["intent_level"])
	}
}

func TestToLegacyFlattening(t *testing.T) {
	c := Translate(map[string]interface{}{
		"event_name":       "purchase",
		"event_id":         "evt-44",
		"event_time":       float64(1760000000),
		"session_id":       "sess-44",
		"consent":          map[string]interface{}{"marketing": true, "analytics": true},
		"lead_context":     map[string]interface{}{"form_id": "f-1"},
		"commerce_context": map[string]interface{}{"value": float64(99.5), "currency": "EUR"},
		"identity":         map[string]interface{}{"hashed_email": "abc"},
	}, nil)

	legacy := c.ToLegacy()
	if legacy["event_name"] != "purchase" || legacy["event_id"] != "evt-44" {
		t.Error("legacy shape lost event identity")
	}
	form, ok := legacy["form"].(map[string]interface{})
	if !ok || form["form_id"] != "f-1" {
		t.Errorf("expected lead_context flattened to form, got %v", legacy["form"])
	}
	commerce, ok := legacy["commerce"].(map[string]interface{})
	if !ok || commerce["currency"] != "EUR" {
		t.Errorf("expected commerce_context flattened, got %v", legacy["commerce"])
	}
	meta, ok := legacy["meta"].(map[string]interface{})
	if !ok {
		t.Fatal("expected meta map")
	}
	if meta["session_id"] != "sess-44" || meta["funnel_stage"] != StageBottom {
		t.Error("expected session and funnel stage nested under meta")
	}
	identity, ok := meta["identity"].(map[string]interface{})
	if !ok || identity["hashed_email"] != "abc" {
		t.Error("expected identity nested under meta")
	}
}
