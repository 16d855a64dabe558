// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package event

// ToLegacy losslessly maps a canonical v2 event into the flattened
// internal shape the delivery path and retry queue serialize. Lead and
// commerce contexts move to the historical "form" and "commerce" keys;
// identity, delivery context, session and funnel stage nest under meta.
// Keeping one delivery shape means one code path regardless of which
// schema produced the event.
func (c *Canonical) ToLegacy() map[string]interface{} {
	if c == nil {
		return nil
	}

	meta := make(map[string]interface{}, len(c.Meta)+4)
	for k, v := range c.Meta {
		meta[k] = v
	}
	meta["session_id"] = c.SessionID
	meta["funnel_stage"] = c.FunnelStage
	if len(c.Identity) > 0 {
		identity := make(map[string]interface{}, len(c.Identity))
		for k, v := range c.Identity {
			identity[k] = v
		}
		meta["identity"] = identity
	}
	if len(c.DeliveryContext) > 0 {
		meta["delivery"] = c.DeliveryContext
	}

	legacy := map[string]interface{}{
		"event_name":     c.EventName,
		"event_id":       c.EventID,
		"event_time":     c.EventTime,
		"source_channel": c.SourceChannel,
		"page":           c.PageContext,
		"attribution":    c.Attribution,
		"meta":           meta,
	}
	if c.Consent != nil {
		legacy["consent"] = map[string]interface{}{
			"marketing": c.Consent.Marketing,
			"analytics": c.Consent.Analytics,
		}
	}
	if len(c.LeadContext) > 0 {
		legacy["form"] = c.LeadContext
	}
	if len(c.CommerceContext) > 0 {
		legacy["commerce"] = c.CommerceContext
	}
	return legacy
}
