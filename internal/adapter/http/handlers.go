package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Dexploarer/ghostspeak-go/internal/adapter/ws"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/agent"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/payment"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/staking"
	"github.com/Dexploarer/ghostspeak-go/internal/guard"
	"github.com/Dexploarer/ghostspeak-go/internal/keys"
	"github.com/Dexploarer/ghostspeak-go/internal/port/messagequeue"
	"github.com/Dexploarer/ghostspeak-go/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Registry   *service.RegistryService
	Staking    *service.StakingService
	Escrow     *service.EscrowService
	Reputation *service.ReputationService
	Admin      *service.AdminService
	Queue      messagequeue.Queue
	Hub        *ws.Hub
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{"status": "ok"}
	if h.Queue != nil {
		status["nats_connected"] = h.Queue.IsConnected()
	}
	if h.Hub != nil {
		status["ws_connections"] = h.Hub.ConnectionCount()
	}
	writeJSON(w, http.StatusOK, status)
}

// --- Agents ---

func (h *Handlers) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[agent.RegisterRequest](w, r)
	if !ok {
		return
	}
	req.Owner = caller

	a, err := h.Registry.Register(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Registry.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "agents not found")
		return
	}
	if agents == nil {
		agents = []agent.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := h.Registry.Get(r.Context(), urlParam(r, "owner"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[agent.UpdateRequest](w, r)
	if !ok {
		return
	}

	a, err := h.Registry.Update(r.Context(), caller, req)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) DeactivateAgent(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.Registry.Deactivate(r.Context(), caller); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListAgentEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	address := keys.Derive(keys.PurposeAgent, urlParam(r, "owner"))

	events, err := h.Admin.Events(r.Context(), address, limit)
	if err != nil {
		writeDomainError(w, err, "events not found")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// --- Staking ---

type stakeRequest struct {
	Amount       uint64        `json:"amount"`
	LockDuration time.Duration `json:"lock_duration"`
}

func (h *Handlers) Stake(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[stakeRequest](w, r)
	if !ok {
		return
	}

	acct, err := h.Staking.Stake(r.Context(), caller, req.Amount, req.LockDuration)
	if err != nil {
		writeDomainError(w, err, "staking account not found")
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *Handlers) Unstake(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	returned, acct, err := h.Staking.Unstake(r.Context(), caller)
	if err != nil {
		writeDomainError(w, err, "staking account not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"returned": returned,
		"account":  acct,
	})
}

func (h *Handlers) GetStakingAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.Staking.Get(r.Context(), urlParam(r, "owner"))
	if err != nil {
		writeDomainError(w, err, "staking account not found")
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *Handlers) GetStakingConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Staking.GetConfig(r.Context())
	if err != nil {
		writeDomainError(w, err, "staking config not found")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handlers) UpdateStakingConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := readJSON[staking.Config](w, r)
	if !ok {
		return
	}
	if err := h.Staking.UpdateConfig(r.Context(), cfg); err != nil {
		writeDomainError(w, err, "staking config not found")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type slashRequest struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"`
	Reason string `json:"reason"`
}

func (h *Handlers) Slash(w http.ResponseWriter, r *http.Request) {
	caller := callerOr(r, "admin")
	req, ok := readJSON[slashRequest](w, r)
	if !ok {
		return
	}

	slashed, err := h.Staking.Slash(r.Context(), caller, req.Owner, req.Amount, req.Reason)
	if err != nil {
		writeDomainError(w, err, "staking account not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"slashed": slashed})
}

// --- Reputation ---

func (h *Handlers) GetReputation(w http.ResponseWriter, r *http.Request) {
	m, err := h.Reputation.Get(r.Context(), urlParam(r, "owner"))
	if err != nil {
		writeDomainError(w, err, "reputation not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// RecordPayment ingests one x402 attestation over HTTP, mirroring the NATS
// feed for environments without a broker. The route is gated by the feed
// bearer key, and the limiter is keyed on the feed identity: the attestation
// body never supplies a caller.
func (h *Handlers) RecordPayment(w http.ResponseWriter, r *http.Request) {
	rec, ok := readJSON[payment.Record](w, r)
	if !ok {
		return
	}
	if err := h.Reputation.RecordPayment(r.Context(), service.PaymentFeedCaller, rec); err != nil {
		writeDomainError(w, err, "payment not recorded")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// --- Admin ---

type breakerRequest struct {
	Class string `json:"class"`
}

func (h *Handlers) PauseClass(w http.ResponseWriter, r *http.Request) {
	caller := callerOr(r, "admin")
	req, ok := readJSON[breakerRequest](w, r)
	if !ok {
		return
	}
	if err := h.Admin.Pause(r.Context(), caller, guard.Class(req.Class)); err != nil {
		writeDomainError(w, err, "unknown instruction class")
		return
	}
	writeJSON(w, http.StatusOK, h.Admin.BreakerState())
}

func (h *Handlers) UnpauseClass(w http.ResponseWriter, r *http.Request) {
	caller := callerOr(r, "admin")
	req, ok := readJSON[breakerRequest](w, r)
	if !ok {
		return
	}
	if err := h.Admin.Unpause(r.Context(), caller, guard.Class(req.Class)); err != nil {
		writeDomainError(w, err, "unknown instruction class")
		return
	}
	writeJSON(w, http.StatusOK, h.Admin.BreakerState())
}

func (h *Handlers) BreakerState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Admin.BreakerState())
}
