package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	gshttp "github.com/Dexploarer/ghostspeak-go/internal/adapter/http"
	"github.com/Dexploarer/ghostspeak-go/internal/adapter/memstore"
	"github.com/Dexploarer/ghostspeak-go/internal/adapter/ws"
	"github.com/Dexploarer/ghostspeak-go/internal/config"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/reputation"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/staking"
	"github.com/Dexploarer/ghostspeak-go/internal/guard"
	"github.com/Dexploarer/ghostspeak-go/internal/middleware"
	"github.com/Dexploarer/ghostspeak-go/internal/service"
)

const (
	testAdminKey      = "admin-secret"
	testArbitratorKey = "arbitrator-secret"
	testFeedKey       = "feed-secret"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	store := memstore.New()
	guards := service.NewGuards(guard.NewLimiter(10_000, time.Minute))
	params := reputation.DefaultParams()

	registry := service.NewRegistryService(store, guards, &params)
	registry.SetEventStore(store)

	stakingSvc := service.NewStakingService(store, guards)
	stakingSvc.SetEventStore(store)
	if err := stakingSvc.EnsureConfig(t.Context(), staking.DefaultConfig()); err != nil {
		t.Fatalf("seed staking config: %v", err)
	}

	repSvc := service.NewReputationService(store, guards, stakingSvc, &params)
	repSvc.SetEventStore(store)

	escrowSvc := service.NewEscrowService(store, guards, repSvc)
	escrowSvc.SetEventStore(store)

	admin := service.NewAdminService(store, guards)
	admin.SetEventStore(store)

	h := &gshttp.Handlers{
		Registry:   registry,
		Staking:    stakingSvc,
		Escrow:     escrowSvc,
		Reputation: repSvc,
		Admin:      admin,
		Hub:        ws.NewHub(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Caller)
	gshttp.MountRoutes(r, h, config.Auth{
		AdminKey:      testAdminKey,
		ArbitratorKey: testArbitratorKey,
		FeedKey:       testFeedKey,
	})
	return r
}

// doRequest issues a JSON request against the router. An empty caller omits
// the X-Caller header; a non-empty bearer sets an Authorization header.
func doRequest(t *testing.T, r chi.Router, method, path, caller, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func registerAgent(t *testing.T, r chi.Router, owner, name string) {
	t.Helper()
	rec := doRequest(t, r, http.MethodPost, "/api/v1/agents", owner, "", map[string]any{
		"name": name,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", owner, rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(t, r, http.MethodGet, "/healthz", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRegisterAndGetAgent(t *testing.T) {
	r := newTestRouter(t)
	registerAgent(t, r, "alice", "translator")

	rec := doRequest(t, r, http.MethodGet, "/api/v1/agents/alice", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["owner"] != "alice" || body["name"] != "translator" {
		t.Errorf("unexpected agent body: %v", body)
	}

	rec = doRequest(t, r, http.MethodGet, "/api/v1/agents/nobody", "", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown agent: expected 404, got %d", rec.Code)
	}
}

func TestRegisterRequiresCaller(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(t, r, http.MethodPost, "/api/v1/agents", "", "", map[string]any{"name": "x"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRegisterDuplicateOwner(t *testing.T) {
	r := newTestRouter(t)
	registerAgent(t, r, "alice", "translator")

	rec := doRequest(t, r, http.MethodPost, "/api/v1/agents", "alice", "", map[string]any{"name": "again"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterValidationError(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(t, r, http.MethodPost, "/api/v1/agents", "alice", "", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpdateAndDeactivateAgent(t *testing.T) {
	r := newTestRouter(t)
	registerAgent(t, r, "alice", "translator")

	rec := doRequest(t, r, http.MethodPut, "/api/v1/agents", "alice", "", map[string]any{
		"description": "fast and accurate",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[map[string]any](t, rec)
	if body["description"] != "fast and accurate" {
		t.Errorf("description not updated: %v", body)
	}

	rec = doRequest(t, r, http.MethodDelete, "/api/v1/agents", "alice", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deactivate: expected 204, got %d", rec.Code)
	}

	// Second deactivation hits the already-inactive state.
	rec = doRequest(t, r, http.MethodDelete, "/api/v1/agents", "alice", "", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("double deactivate: expected 409, got %d", rec.Code)
	}
}

func TestStakeLifecycle(t *testing.T) {
	r := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/api/v1/staking/stake", "bob", "", map[string]any{
		"amount":        10_000,
		"lock_duration": 24 * time.Hour,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("stake: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	acct := decodeBody[map[string]any](t, rec)
	if acct["tier"] != "silver" {
		t.Errorf("expected silver tier, got %v", acct["tier"])
	}

	rec = doRequest(t, r, http.MethodGet, "/api/v1/staking/bob", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get account: expected 200, got %d", rec.Code)
	}

	// Still locked.
	rec = doRequest(t, r, http.MethodPost, "/api/v1/staking/unstake", "bob", "", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("locked unstake: expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStakeBelowMinimum(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(t, r, http.MethodPost, "/api/v1/staking/stake", "bob", "", map[string]any{
		"amount":        1,
		"lock_duration": 24 * time.Hour,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetStakingConfig(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(t, r, http.MethodGet, "/api/v1/staking/config", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func createEscrow(t *testing.T, r chi.Router, buyer, provider, id string, amount uint64) {
	t.Helper()
	rec := doRequest(t, r, http.MethodPost, "/api/v1/escrows", buyer, "", map[string]any{
		"id":       id,
		"provider": provider,
		"amount":   amount,
		"deadline": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create escrow: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestEscrowHappyPath(t *testing.T) {
	r := newTestRouter(t)
	registerAgent(t, r, "bob", "provider")
	createEscrow(t, r, "alice", "bob", "job-1", 1_000_000)

	rec := doRequest(t, r, http.MethodPost, "/api/v1/escrows/alice/job-1/deliver", "bob", "", map[string]any{
		"proof": "ipfs://deliverable",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("deliver: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, r, http.MethodPost, "/api/v1/escrows/alice/job-1/approve", "alice", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[map[string]any](t, rec)
	if body["status"] != "released" {
		t.Errorf("expected released, got %v", body["status"])
	}

	// Settlement fed the provider's reputation.
	rec = doRequest(t, r, http.MethodGet, "/api/v1/reputation/bob", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reputation: expected 200, got %d", rec.Code)
	}
	rep := decodeBody[map[string]any](t, rec)
	if score, _ := rep["score"].(float64); score <= 5_000 {
		t.Errorf("expected score above midpoint after release, got %v", rep["score"])
	}
}

func TestEscrowRoleEnforcement(t *testing.T) {
	r := newTestRouter(t)
	registerAgent(t, r, "bob", "provider")
	createEscrow(t, r, "alice", "bob", "job-1", 1_000_000)

	// Buyer cannot submit delivery.
	rec := doRequest(t, r, http.MethodPost, "/api/v1/escrows/alice/job-1/deliver", "alice", "", map[string]any{
		"proof": "x",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("buyer deliver: expected 403, got %d: %s", rec.Code, rec.Body.String())
	}

	// Approving before delivery is a state error.
	rec = doRequest(t, r, http.MethodPost, "/api/v1/escrows/alice/job-1/approve", "alice", "", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("early approve: expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestEscrowListByParticipant(t *testing.T) {
	r := newTestRouter(t)
	registerAgent(t, r, "bob", "provider")
	createEscrow(t, r, "alice", "bob", "job-1", 1_000_000)
	createEscrow(t, r, "alice", "bob", "job-2", 2_000_000)

	for _, caller := range []string{"alice", "bob"} {
		rec := doRequest(t, r, http.MethodGet, "/api/v1/escrows", caller, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("list as %s: expected 200, got %d", caller, rec.Code)
		}
		records := decodeBody[[]map[string]any](t, rec)
		if len(records) != 2 {
			t.Errorf("list as %s: expected 2 escrows, got %d", caller, len(records))
		}
	}
}

func TestArbitrationRequiresKey(t *testing.T) {
	r := newTestRouter(t)
	registerAgent(t, r, "bob", "provider")
	createEscrow(t, r, "alice", "bob", "job-1", 1_000_000)

	doRequest(t, r, http.MethodPost, "/api/v1/escrows/alice/job-1/deliver", "bob", "", map[string]any{"proof": "x"})
	rec := doRequest(t, r, http.MethodPost, "/api/v1/escrows/alice/job-1/dispute", "alice", "", map[string]any{
		"reason": "wrong deliverable",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("dispute: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := map[string]any{"release_bps": 5_000}

	rec = doRequest(t, r, http.MethodPost, "/api/v1/arbitration/escrows/alice/job-1", "", "", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no key: expected 401, got %d", rec.Code)
	}

	rec = doRequest(t, r, http.MethodPost, "/api/v1/arbitration/escrows/alice/job-1", "", testArbitratorKey, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("with key: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	out := decodeBody[map[string]any](t, rec)
	if out["status"] != "partially_refunded" {
		t.Errorf("expected partially_refunded, got %v", out["status"])
	}
}

func TestRecordPaymentEndpoint(t *testing.T) {
	r := newTestRouter(t)
	registerAgent(t, r, "merchant", "api-seller")

	pay := map[string]any{
		"id":            "pay-1",
		"payer":         "client",
		"merchant":      "merchant",
		"amount":        1_000_000,
		"success":       true,
		"response_time": 300 * time.Millisecond,
		"timestamp":     time.Now().Format(time.RFC3339),
	}

	// Ingestion is restricted to the feed role.
	rec := doRequest(t, r, http.MethodPost, "/api/v1/payments", "", "", pay)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no feed key: expected 401, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, r, http.MethodPost, "/api/v1/payments", "", testFeedKey, pay)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	// Replays are rejected by payment ID.
	rec = doRequest(t, r, http.MethodPost, "/api/v1/payments", "", testFeedKey, pay)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminBreakerRoutes(t *testing.T) {
	r := newTestRouter(t)
	registerAgent(t, r, "bob", "provider")

	pause := map[string]any{"class": "escrow"}

	rec := doRequest(t, r, http.MethodPost, "/api/v1/admin/breaker/pause", "", "", pause)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no key: expected 401, got %d", rec.Code)
	}

	rec = doRequest(t, r, http.MethodPost, "/api/v1/admin/breaker/pause", "", testAdminKey, pause)
	if rec.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Escrow operations now refuse.
	rec = doRequest(t, r, http.MethodPost, "/api/v1/escrows", "alice", "", map[string]any{
		"id":       "job-1",
		"provider": "bob",
		"amount":   1_000_000,
		"deadline": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("paused create: expected 503, got %d: %s", rec.Code, rec.Body.String())
	}

	// Registry is a different class and stays live.
	registerAgent(t, r, "carol", "untouched")

	rec = doRequest(t, r, http.MethodPost, "/api/v1/admin/breaker/unpause", "", testAdminKey, pause)
	if rec.Code != http.StatusOK {
		t.Fatalf("unpause: expected 200, got %d", rec.Code)
	}
	createEscrow(t, r, "alice", "bob", "job-1", 1_000_000)

	rec = doRequest(t, r, http.MethodGet, "/api/v1/admin/breaker", "", testAdminKey, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("state: expected 200, got %d", rec.Code)
	}
	state := decodeBody[map[string]bool](t, rec)
	if state["escrow"] {
		t.Errorf("escrow should be unpaused: %v", state)
	}
}

func TestAdminSlash(t *testing.T) {
	r := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/api/v1/staking/stake", "bob", "", map[string]any{
		"amount":        10_000,
		"lock_duration": 24 * time.Hour,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("stake: expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, r, http.MethodPost, "/api/v1/admin/slash", "", testAdminKey, map[string]any{
		"owner":  "bob",
		"amount": 4_000,
		"reason": "missed deliverables",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("slash: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	out := decodeBody[map[string]uint64](t, rec)
	if out["slashed"] != 4_000 {
		t.Errorf("expected 4000 slashed, got %d", out["slashed"])
	}

	// Reason is mandatory.
	rec = doRequest(t, r, http.MethodPost, "/api/v1/admin/slash", "", testAdminKey, map[string]any{
		"owner":  "bob",
		"amount": 100,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing reason: expected 400, got %d", rec.Code)
	}
}

func TestAgentEventsEndpoint(t *testing.T) {
	r := newTestRouter(t)
	registerAgent(t, r, "alice", "translator")

	rec := doRequest(t, r, http.MethodGet, "/api/v1/agents/alice/events?limit=10", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	events := decodeBody[[]map[string]any](t, rec)
	if len(events) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(events))
	}
	if events[0]["type"] != "agent.registered" {
		t.Errorf("unexpected event type: %v", events[0]["type"])
	}
}

func TestAgentEventsIncludeSettlements(t *testing.T) {
	r := newTestRouter(t)
	registerAgent(t, r, "bob", "provider")
	createEscrow(t, r, "alice", "bob", "job-1", 1_000_000)

	doRequest(t, r, http.MethodPost, "/api/v1/escrows/alice/job-1/deliver", "bob", "", map[string]any{"proof": "x"})
	rec := doRequest(t, r, http.MethodPost, "/api/v1/escrows/alice/job-1/approve", "alice", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, r, http.MethodGet, "/api/v1/agents/bob/events?limit=10", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	events := decodeBody[[]map[string]any](t, rec)
	var settled bool
	for _, ev := range events {
		if ev["type"] == "escrow.settled" {
			settled = true
		}
	}
	if !settled {
		t.Fatalf("expected escrow.settled in bob's events, got %v", events)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/agents", bytes.NewBufferString("{not json"))
	req.Header.Set("X-Caller", "alice")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRateLimitSurfacesAs429(t *testing.T) {
	store := memstore.New()
	guards := service.NewGuards(guard.NewLimiter(2, time.Minute))
	params := reputation.DefaultParams()
	registry := service.NewRegistryService(store, guards, &params)
	registry.SetEventStore(store)

	h := &gshttp.Handlers{Registry: registry}
	r := chi.NewRouter()
	r.Use(middleware.Caller)
	gshttp.MountRoutes(r, h, config.Auth{})

	// The window is keyed per caller, and admission is counted before
	// business validation, so the duplicate registration still burns quota.
	rec := doRequest(t, r, http.MethodPost, "/api/v1/agents", "spammer", "", map[string]any{"name": "agent"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("first request: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, r, http.MethodPost, "/api/v1/agents", "spammer", "", map[string]any{"name": "agent"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second request: expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, r, http.MethodPost, "/api/v1/agents", "spammer", "", map[string]any{"name": "agent"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rec.Code, rec.Body.String())
	}

	// A different caller is untouched.
	rec = doRequest(t, r, http.MethodPost, "/api/v1/agents", "honest", "", map[string]any{"name": "agent"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("other caller: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}
