package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Dexploarer/ghostspeak-go/internal/adapter/ws"
	"github.com/Dexploarer/ghostspeak-go/internal/domain"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/agent"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/event"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/reputation"
	"github.com/Dexploarer/ghostspeak-go/internal/guard"
	"github.com/Dexploarer/ghostspeak-go/internal/keys"
	"github.com/Dexploarer/ghostspeak-go/internal/port/broadcast"
	"github.com/Dexploarer/ghostspeak-go/internal/port/database"
	"github.com/Dexploarer/ghostspeak-go/internal/port/eventstore"
)

// RegistryService handles agent identity records. Registering an agent also
// creates its reputation record at score midpoint.
type RegistryService struct {
	store     database.Store
	guards    *Guards
	hub       broadcast.Broadcaster
	events    eventstore.Store
	repParams *reputation.Params
	now       func() time.Time
}

// NewRegistryService creates a new RegistryService.
func NewRegistryService(store database.Store, guards *Guards, repParams *reputation.Params) *RegistryService {
	return &RegistryService{
		store:     store,
		guards:    guards,
		repParams: repParams,
		now:       time.Now,
	}
}

// SetEventStore attaches the settlement journal.
func (s *RegistryService) SetEventStore(es eventstore.Store) { s.events = es }

// SetHub attaches the websocket broadcaster.
func (s *RegistryService) SetHub(hub broadcast.Broadcaster) { s.hub = hub }

// Register creates the Agent record and its ReputationMetrics in one atomic
// store write. One agent per owner: the record address is derived from the
// owner.
func (s *RegistryService) Register(ctx context.Context, req agent.RegisterRequest) (*agent.Agent, error) {
	if err := s.guards.admit(req.Owner, guard.ClassRegistry); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	address := keys.Derive(keys.PurposeAgent, req.Owner)
	release, err := s.guards.Locks.Acquire(address)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.now()
	a := &agent.Agent{
		Address:      address,
		Owner:        req.Owner,
		Name:         req.Name,
		Description:  req.Description,
		Capabilities: req.Capabilities,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m := reputation.NewMetrics(keys.Derive(keys.PurposeReputation, req.Owner), req.Owner, s.repParams, now)
	if err := s.store.Register(ctx, a, m); err != nil {
		return nil, fmt.Errorf("register agent: %w", err)
	}

	s.appendEvent(ctx, event.TypeAgentRegistered, address, map[string]string{
		"owner": req.Owner,
		"name":  req.Name,
	})
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventAgentStatus, ws.AgentStatusEvent{
			Agent:  address,
			Owner:  req.Owner,
			Active: true,
		})
	}

	slog.Info("agent registered", "owner", req.Owner, "address", address)
	return a, nil
}

// Get returns the agent owned by the given address.
func (s *RegistryService) Get(ctx context.Context, owner string) (*agent.Agent, error) {
	return s.store.GetAgent(ctx, keys.Derive(keys.PurposeAgent, owner))
}

// List returns all registered agents.
func (s *RegistryService) List(ctx context.Context) ([]agent.Agent, error) {
	return s.store.ListAgents(ctx)
}

// Update applies metadata changes to the caller's own agent.
func (s *RegistryService) Update(ctx context.Context, caller string, req agent.UpdateRequest) (*agent.Agent, error) {
	if err := s.guards.admit(caller, guard.ClassRegistry); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	address := keys.Derive(keys.PurposeAgent, caller)
	release, err := s.guards.Locks.Acquire(address)
	if err != nil {
		return nil, err
	}
	defer release()

	a, err := s.store.GetAgent(ctx, address)
	if err != nil {
		return nil, err
	}
	if a.Owner != caller {
		return nil, fmt.Errorf("%w: only the owner may update agent metadata", domain.ErrUnauthorized)
	}

	a.Apply(req, s.now())
	if err := s.store.UpdateAgent(ctx, a); err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}

	s.appendEvent(ctx, event.TypeAgentUpdated, address, map[string]string{"owner": caller})
	return a, nil
}

// Deactivate marks the caller's agent inactive. Agents are never deleted.
func (s *RegistryService) Deactivate(ctx context.Context, caller string) error {
	if err := s.guards.admit(caller, guard.ClassRegistry); err != nil {
		return err
	}

	address := keys.Derive(keys.PurposeAgent, caller)
	release, err := s.guards.Locks.Acquire(address)
	if err != nil {
		return err
	}
	defer release()

	a, err := s.store.GetAgent(ctx, address)
	if err != nil {
		return err
	}
	if a.Owner != caller {
		return fmt.Errorf("%w: only the owner may deactivate an agent", domain.ErrUnauthorized)
	}
	if !a.Active {
		return fmt.Errorf("%w: agent already inactive", domain.ErrState)
	}

	a.Active = false
	a.UpdatedAt = s.now()
	if err := s.store.UpdateAgent(ctx, a); err != nil {
		return fmt.Errorf("deactivate agent: %w", err)
	}

	s.appendEvent(ctx, event.TypeAgentDeactivated, address, map[string]string{"owner": caller})
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventAgentStatus, ws.AgentStatusEvent{
			Agent:  address,
			Owner:  caller,
			Active: false,
		})
	}
	return nil
}

func (s *RegistryService) appendEvent(ctx context.Context, t event.Type, agentAddr string, payload map[string]string) {
	if s.events == nil {
		return
	}
	data, _ := json.Marshal(payload)
	ev := &event.LedgerEvent{
		ID:        uuid.NewString(),
		Agent:     agentAddr,
		Type:      t,
		Payload:   data,
		CreatedAt: s.now(),
	}
	if err := s.events.Append(ctx, ev); err != nil {
		slog.Error("append event failed", "type", t, "error", err)
	}
}
