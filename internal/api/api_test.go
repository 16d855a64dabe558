// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goccy/go-json"

	"github.com/clicutcl/clicutcl/internal/auth"
	"github.com/clicutcl/clicutcl/internal/config"
	"github.com/clicutcl/clicutcl/internal/dedup"
	"github.com/clicutcl/clicutcl/internal/dispatch"
	"github.com/clicutcl/clicutcl/internal/identity"
	"github.com/clicutcl/clicutcl/internal/queue"
	"github.com/clicutcl/clicutcl/internal/storage"
	"github.com/clicutcl/clicutcl/internal/telemetry"
	"github.com/clicutcl/clicutcl/internal/webhooks"
)

const (
	testSite    = "example.com"
	testSecret  = "0123456789abcdef0123456789abcdef"
	testWHKey   = "whsec-test"
	testLCToken = "lifecycle-shared-token"
)

type testEnv struct {
	server    *Server
	router    http.Handler
	mock      sqlmock.Sqlmock
	collector *httptest.Server
	hits      *int64
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	var hits int64
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			atomic.AddInt64(&hits, 1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(collector.Close)

	kv, err := storage.OpenBadger("")
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hash, err := auth.HashPassword("admin-pass")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Site: testSite},
		Features: config.FeaturesConfig{
			EventV2:            true,
			ExternalWebhooks:   true,
			DiagnosticsV2:      true,
			LifecycleIngestion: true,
		},
		Security: config.SecurityConfig{
			TokenSecret:       testSecret,
			TokenTTL:          10 * time.Minute,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			MaxBodyBytes:      128 << 10,
			MaxBatchEvents:    5,
			AdminUsername:     "admin",
			AdminPasswordHash: hash,
		},
		Destinations: config.DestinationsConfig{
			Enabled: true,
			Primary: config.DestinationConfig{
				Enabled:        true,
				Kind:           "collector",
				Endpoint:       collector.URL,
				Timeout:        2 * time.Second,
				RequireConsent: true,
			},
		},
		Webhooks: config.WebhooksConfig{
			ReplayWindow: 5 * time.Minute,
			Providers: map[string]config.WebhookProviderConfig{
				"calendly": {Enabled: true, Secret: testWHKey},
			},
		},
		Lifecycle: config.LifecycleConfig{Token: testLCToken},
		Identity:  config.IdentityConfig{Policy: identity.PolicyConsentGatedMinimal},
		Dedup:     config.DedupConfig{TTL: 24 * time.Hour},
		Diagnostics: config.DiagnosticsConfig{
			FlushInterval:   time.Millisecond,
			DebugBufferSize: 10,
			DebugWindow:     time.Minute,
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	dedupStore := dedup.NewStore(kv, cfg.Dedup.TTL)
	recorder := dispatch.NewRecorder(kv, cfg.Diagnostics.DebugBufferSize)
	telemetryStore := telemetry.NewStore(kv, telemetry.StoreOptions{
		FlushInterval: cfg.Diagnostics.FlushInterval,
		Site:          cfg.Server.Site,
	})
	q := queue.New(db, kv, queue.Options{}, recorder)
	dispatcher := dispatch.New(cfg.Destinations, dedupStore, q, recorder, cfg.Dedup.TTL)

	srv := NewServer(Deps{
		Config:          cfg,
		Dispatcher:      dispatcher,
		Dedup:           dedupStore,
		Telemetry:       telemetryStore,
		Recorder:        recorder,
		Tokens:          auth.NewTokenVerifier(cfg.Security.TokenSecret, cfg.Server.Site, cfg.Server.AllowedTokenHosts, cfg.Security.NonceReplayLimit, cfg.Security.TokenTTL, kv),
		WebhookVerifier: auth.NewWebhookVerifier(cfg.Webhooks.ReplayWindow),
		Providers:       webhooks.NewRegistry(),
		Resolver:        identity.NewResolver(cfg.Identity.Policy),
		Queue:           q,
		EventLog:        queue.NewEventLog(db),
		Admin:           auth.NewAdminCredentials(cfg.Security.AdminUsername, cfg.Security.AdminPasswordHash),
	})

	return &testEnv{
		server:    srv,
		router:    srv.Router(),
		mock:      mock,
		collector: collector,
		hits:      &hits,
	}
}

func (e *testEnv) collectorHits() int64 {
	return atomic.LoadInt64(e.hits)
}

func (e *testEnv) mintToken(t *testing.T) string {
	t.Helper()
	token, err := e.server.tokens.Mint(testSite, "", "nonce-"+strconv.FormatInt(time.Now().UnixNano(), 10))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}, configure func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Host = testSite
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Clicutcl-Token", token)
	}
	if configure != nil {
		configure(req)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func rawEvent(id string) map[string]interface{} {
	return map[string]interface{}{
		"event_name": "page_view",
		"event_id":   id,
		"consent":    map[string]interface{}{"marketing": true, "analytics": true},
	}
}

func batchBody(events ...map[string]interface{}) map[string]interface{} {
	list := make([]interface{}, 0, len(events))
	for _, e := range events {
		list = append(list, e)
	}
	return map[string]interface{}{"events": list}
}

func TestBatchEventsFeatureDisabled(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Features.EventV2 = false })

	rec := env.do(t, http.MethodPost, "/api/v1/events", "", batchBody(rawEvent("e1")), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "event_v2_disabled" {
		t.Errorf("expected event_v2_disabled, got %v", body["code"])
	}
}

func TestBatchEventsMissingToken(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/events", "", batchBody(rawEvent("e1")), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if env.collectorHits() != 0 {
		t.Errorf("no events should have been dispatched")
	}
}

func TestBatchEventsTokenHostMismatch(t *testing.T) {
	env := newTestEnv(t, nil)

	kv, err := storage.OpenBadger("")
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	defer kv.Close()
	other := auth.NewTokenVerifier(testSecret, "other.example.net", nil, 0, 10*time.Minute, kv)
	token, err := other.Mint("other.example.net", "", "n1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/events", token, batchBody(rawEvent("e1")), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "token_site_mismatch" {
		t.Errorf("expected token_site_mismatch, got %v", body["code"])
	}
}

func TestBatchEventsAccepted(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/events", env.mintToken(t), batchBody(rawEvent("e1"), rawEvent("e2")), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["accepted"] != float64(2) {
		t.Errorf("expected accepted=2, got %v", body["accepted"])
	}
	if env.collectorHits() != 2 {
		t.Errorf("expected 2 collector hits, got %d", env.collectorHits())
	}
}

func TestBatchEventsSingleBareEvent(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/events", env.mintToken(t), rawEvent("bare-1"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["accepted"] != float64(1) {
		t.Errorf("expected accepted=1, got %v", body["accepted"])
	}
}

func TestBatchEventsPartialInvalid(t *testing.T) {
	env := newTestEnv(t, nil)

	invalid := map[string]interface{}{"event_name": "page_view"} // no consent
	rec := env.do(t, http.MethodPost, "/api/v1/events", env.mintToken(t), batchBody(rawEvent("e1"), invalid, rawEvent("e2")), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != false {
		t.Errorf("expected success=false with per-index errors")
	}
	if body["accepted"] != float64(2) {
		t.Errorf("expected accepted=2, got %v", body["accepted"])
	}
	errs, _ := body["errors"].([]interface{})
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", body["errors"])
	}
	first, _ := errs[0].(map[string]interface{})
	if first["index"] != float64(1) || first["code"] != "invalid_schema" {
		t.Errorf("unexpected error entry: %v", first)
	}
	if env.collectorHits() != 2 {
		t.Errorf("valid events around the invalid one must still dispatch, got %d hits", env.collectorHits())
	}
}

func TestBatchEventsBatchTooLarge(t *testing.T) {
	env := newTestEnv(t, nil)

	events := make([]map[string]interface{}, 6)
	for i := range events {
		events[i] = rawEvent(fmt.Sprintf("e%d", i))
	}
	rec := env.do(t, http.MethodPost, "/api/v1/events", env.mintToken(t), batchBody(events...), nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "batch_too_large" {
		t.Errorf("expected batch_too_large, got %v", body["code"])
	}
}

func TestBatchEventsBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Security.MaxBodyBytes = 64 })

	rec := env.do(t, http.MethodPost, "/api/v1/events", "", batchBody(rawEvent("e1"), rawEvent("e2")), nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "body_too_large" {
		t.Errorf("expected body_too_large, got %v", body["code"])
	}
}

func TestBatchEventsDuplicateSuppressed(t *testing.T) {
	env := newTestEnv(t, nil)

	first := env.do(t, http.MethodPost, "/api/v1/events", env.mintToken(t), batchBody(rawEvent("dup-1")), nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first post: expected 200, got %d", first.Code)
	}
	second := env.do(t, http.MethodPost, "/api/v1/events", env.mintToken(t), batchBody(rawEvent("dup-1")), nil)
	if second.Code != http.StatusOK {
		t.Fatalf("second post: expected 200, got %d", second.Code)
	}
	body := decodeBody(t, second)
	if body["duplicates"] != float64(1) {
		t.Errorf("expected duplicates=1, got %v", body["duplicates"])
	}
	if body["accepted"] != float64(0) {
		t.Errorf("expected accepted=0, got %v", body["accepted"])
	}
	if env.collectorHits() != 1 {
		t.Errorf("expected exactly 1 collector hit, got %d", env.collectorHits())
	}
}

func TestBatchEventsRateLimited(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Security.RateLimitRequests = 1 })

	env.do(t, http.MethodPost, "/api/v1/events", "", batchBody(rawEvent("e1")), nil)
	rec := env.do(t, http.MethodPost, "/api/v1/events", "", batchBody(rawEvent("e2")), nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "rate_limited" {
		t.Errorf("expected rate_limited, got %v", body["code"])
	}
}

func TestMintTokenRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/token", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	token, _ := decodeBody(t, rec)["token"].(string)
	if token == "" {
		t.Fatal("expected a token in the response")
	}

	post := env.do(t, http.MethodPost, "/api/v1/events", token, batchBody(rawEvent("minted-1")), nil)
	if post.Code != http.StatusOK {
		t.Fatalf("expected 200 using minted token, got %d: %s", post.Code, post.Body.String())
	}
}

func signWebhook(req *http.Request, secret string, ts int64, body []byte) {
	req.Header.Set("X-Clicutcl-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Clicutcl-Signature", auth.ComputeSignature(secret, ts, body))
}

func calendlyPayload() map[string]interface{} {
	return map[string]interface{}{
		"event": "invitee.created",
		"payload": map[string]interface{}{
			"uri":        "cal-evt-1001",
			"email":      "lead@example.com",
			"event_type": "intro-call",
		},
	}
}

func (e *testEnv) postWebhook(t *testing.T, provider string, payload map[string]interface{}, sign func(*http.Request, []byte)) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/"+provider, bytes.NewReader(body))
	req.Host = testSite
	req.Header.Set("Content-Type", "application/json")
	if sign != nil {
		sign(req, body)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookDelivered(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.postWebhook(t, "calendly", calendlyPayload(), func(req *http.Request, body []byte) {
		signWebhook(req, testWHKey, time.Now().Unix(), body)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["duplicate"] != false {
		t.Errorf("expected duplicate=false, got %v", body["duplicate"])
	}
	if body["event_name"] != "book_appointment" {
		t.Errorf("expected book_appointment, got %v", body["event_name"])
	}
	if env.collectorHits() != 1 {
		t.Errorf("expected 1 collector hit, got %d", env.collectorHits())
	}
}

func TestWebhookReplayIsDuplicate(t *testing.T) {
	env := newTestEnv(t, nil)

	sign := func(req *http.Request, body []byte) {
		signWebhook(req, testWHKey, time.Now().Unix(), body)
	}
	env.postWebhook(t, "calendly", calendlyPayload(), sign)
	rec := env.postWebhook(t, "calendly", calendlyPayload(), sign)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["duplicate"] != true {
		t.Errorf("expected duplicate=true on replay, got %v", body["duplicate"])
	}
	if env.collectorHits() != 1 {
		t.Errorf("replay must not dispatch again, got %d hits", env.collectorHits())
	}
}

func TestWebhookTamperedBodyRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.postWebhook(t, "calendly", calendlyPayload(), func(req *http.Request, body []byte) {
		tampered := append([]byte{}, body...)
		tampered[len(tampered)-2] ^= 0xff
		signWebhook(req, testWHKey, time.Now().Unix(), tampered)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if env.collectorHits() != 0 {
		t.Errorf("tampered webhook must not dispatch")
	}
}

func TestWebhookStaleTimestampRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.postWebhook(t, "calendly", calendlyPayload(), func(req *http.Request, body []byte) {
		signWebhook(req, testWHKey, time.Now().Add(-time.Hour).Unix(), body)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "webhook_timestamp_expired" {
		t.Errorf("expected webhook_timestamp_expired, got %v", body["code"])
	}
}

func TestWebhookProviderDisabled(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.postWebhook(t, "hubspot", map[string]interface{}{"subscriptionType": "contact.creation"}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unconfigured provider, got %d", rec.Code)
	}
}

func TestLifecycleRequiresAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/lifecycle", "", map[string]interface{}{"stage": "lead"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLifecycleInvalidStage(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/lifecycle", testLCToken, map[string]interface{}{"stage": "looked_at_website"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "invalid_stage" {
		t.Errorf("expected invalid_stage, got %v", body["code"])
	}
}

func TestLifecycleDeterministicReplay(t *testing.T) {
	env := newTestEnv(t, nil)

	payload := map[string]interface{}{
		"stage":   "client_won",
		"lead_id": "crm-4711",
		"payload": map[string]interface{}{"value": 1200},
	}
	first := env.do(t, http.MethodPost, "/api/v1/lifecycle", testLCToken, payload, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first: expected 200, got %d: %s", first.Code, first.Body.String())
	}
	second := env.do(t, http.MethodPost, "/api/v1/lifecycle", testLCToken, payload, nil)
	if second.Code != http.StatusOK {
		t.Fatalf("second: expected 200, got %d", second.Code)
	}
	if decodeBody(t, first)["event_id"] != decodeBody(t, second)["event_id"] {
		t.Errorf("replayed callback must derive the same event id")
	}
	if env.collectorHits() != 1 {
		t.Errorf("replay must not dispatch twice, got %d hits", env.collectorHits())
	}
}

func TestLifecycleAdminBasicAuthAccepted(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/lifecycle", "", map[string]interface{}{"stage": "lead", "lead_id": "crm-1"}, func(req *http.Request) {
		req.SetBasicAuth("admin", "admin-pass")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with admin credentials, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDiagnosticsRequireAdmin(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/diagnostics/dedup", "", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Errorf("expected a WWW-Authenticate challenge")
	}
}

func TestDiagnosticsDelivery(t *testing.T) {
	env := newTestEnv(t, nil)

	env.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM retry_queue")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	rec := env.do(t, http.MethodGet, "/api/v1/diagnostics/delivery", "", nil, func(req *http.Request) {
		req.SetBasicAuth("admin", "admin-pass")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["queue_depth"] != float64(3) {
		t.Errorf("expected queue_depth=3, got %v", body["queue_depth"])
	}
	if body["destination"] != "collector" {
		t.Errorf("expected destination collector, got %v", body["destination"])
	}
}

func TestDiagnosticsEnableDebug(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/diagnostics/debug", "", nil, func(req *http.Request) {
		req.SetBasicAuth("admin", "admin-pass")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !env.server.recorder.DebugActive() {
		t.Errorf("debug mode should be active after enabling")
	}
}

func TestDiagnosticsDisabledFeatureForbidsAllHandlers(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Features.DiagnosticsV2 = false
	})

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/diagnostics/delivery"},
		{http.MethodGet, "/api/v1/diagnostics/dedup"},
		{http.MethodGet, "/api/v1/diagnostics/events"},
		{http.MethodPost, "/api/v1/diagnostics/debug"},
	} {
		rec := env.do(t, route.method, route.path, "", nil, func(req *http.Request) {
			req.SetBasicAuth("admin", "admin-pass")
		})
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s %s: expected 403 with diagnostics disabled, got %d", route.method, route.path, rec.Code)
		}
		if code := decodeBody(t, rec)["code"]; code != "diagnostics_disabled" {
			t.Errorf("%s %s: expected diagnostics_disabled, got %v", route.method, route.path, code)
		}
	}
	if env.server.recorder.DebugActive() {
		t.Errorf("debug mode must stay off when diagnostics are disabled")
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/health", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
