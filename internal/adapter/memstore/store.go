// Package memstore implements the database and eventstore ports with
// in-memory maps keyed by derived record addresses. It backs dev mode and
// the service-level tests; semantics (optimistic locking, duplicate
// detection, atomic settle) mirror the postgres adapter.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/Dexploarer/ghostspeak-go/internal/domain"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/agent"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/escrow"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/event"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/reputation"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/staking"
)

// Store holds every record type behind one lock. Operations are atomic with
// respect to each other, matching the single-writer-per-record model.
type Store struct {
	mu          sync.RWMutex
	agents      map[string]agent.Agent
	stakingCfg  *staking.Config
	stakes      map[string]staking.Account
	escrows     map[string]escrow.Record
	reputations map[string]reputation.Metrics
	payments    map[string]struct{}
	breaker     map[string]bool
	events      []event.LedgerEvent
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		agents:      make(map[string]agent.Agent),
		stakes:      make(map[string]staking.Account),
		escrows:     make(map[string]escrow.Record),
		reputations: make(map[string]reputation.Metrics),
		payments:    make(map[string]struct{}),
		breaker:     make(map[string]bool),
	}
}

// --- Agents ---

// Register checks both addresses before writing either, so a conflict on the
// reputation side leaves no agent row behind.
func (s *Store) Register(_ context.Context, a *agent.Agent, m *reputation.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.agents[a.Address]; exists {
		return fmt.Errorf("create agent %s: %w", a.Address, domain.ErrConflict)
	}
	if _, exists := s.reputations[m.Address]; exists {
		return fmt.Errorf("create reputation %s: %w", m.Agent, domain.ErrConflict)
	}
	s.agents[a.Address] = *a
	s.reputations[m.Address] = *m
	return nil
}

func (s *Store) GetAgent(_ context.Context, address string) (*agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[address]
	if !ok {
		return nil, fmt.Errorf("get agent %s: %w", address, domain.ErrNotFound)
	}
	return &a, nil
}

func (s *Store) ListAgents(_ context.Context) ([]agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]agent.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) UpdateAgent(_ context.Context, a *agent.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateAgentLocked(a)
}

func (s *Store) updateAgentLocked(a *agent.Agent) error {
	cur, ok := s.agents[a.Address]
	if !ok {
		return fmt.Errorf("update agent %s: %w", a.Address, domain.ErrNotFound)
	}
	if cur.Version != a.Version {
		return fmt.Errorf("update agent %s: %w", a.Address, domain.ErrConflict)
	}
	a.Version++
	s.agents[a.Address] = *a
	return nil
}

// --- Staking ---

func (s *Store) GetStakingConfig(_ context.Context) (*staking.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stakingCfg == nil {
		return nil, fmt.Errorf("staking config: %w", domain.ErrNotFound)
	}
	cfg := *s.stakingCfg
	return &cfg, nil
}

func (s *Store) PutStakingConfig(_ context.Context, cfg *staking.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *cfg
	s.stakingCfg = &c
	return nil
}

func (s *Store) CreateStakingAccount(_ context.Context, acct *staking.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.stakes[acct.Address]; exists {
		return fmt.Errorf("create staking account %s: %w", acct.Address, domain.ErrConflict)
	}
	s.stakes[acct.Address] = *acct
	return nil
}

func (s *Store) GetStakingAccount(_ context.Context, address string) (*staking.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.stakes[address]
	if !ok {
		return nil, fmt.Errorf("get staking account %s: %w", address, domain.ErrNotFound)
	}
	return &acct, nil
}

func (s *Store) UpdateStakingAccount(_ context.Context, acct *staking.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.stakes[acct.Address]
	if !ok {
		return fmt.Errorf("update staking account %s: %w", acct.Address, domain.ErrNotFound)
	}
	if cur.Version != acct.Version {
		return fmt.Errorf("update staking account %s: %w", acct.Address, domain.ErrConflict)
	}
	acct.Version++
	s.stakes[acct.Address] = *acct
	return nil
}

// --- Escrows ---

func (s *Store) CreateEscrow(_ context.Context, e *escrow.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.escrows[e.Address]; exists {
		return fmt.Errorf("create escrow %s: %w", e.ID, domain.ErrConflict)
	}
	s.escrows[e.Address] = *e
	return nil
}

func (s *Store) GetEscrow(_ context.Context, address string) (*escrow.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.escrows[address]
	if !ok {
		return nil, fmt.Errorf("get escrow %s: %w", address, domain.ErrNotFound)
	}
	return &e, nil
}

func (s *Store) ListEscrowsByParticipant(_ context.Context, participant string) ([]escrow.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []escrow.Record
	for _, e := range s.escrows {
		if e.Buyer == participant || e.Provider == participant {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) UpdateEscrow(_ context.Context, e *escrow.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateEscrowLocked(e)
}

func (s *Store) updateEscrowLocked(e *escrow.Record) error {
	cur, ok := s.escrows[e.Address]
	if !ok {
		return fmt.Errorf("update escrow %s: %w", e.ID, domain.ErrNotFound)
	}
	if cur.Version != e.Version {
		return fmt.Errorf("update escrow %s: %w", e.ID, domain.ErrConflict)
	}
	e.Version++
	s.escrows[e.Address] = *e
	return nil
}

// --- Reputation ---

func (s *Store) CreateReputation(_ context.Context, m *reputation.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reputations[m.Address]; exists {
		return fmt.Errorf("create reputation %s: %w", m.Agent, domain.ErrConflict)
	}
	s.reputations[m.Address] = *m
	return nil
}

func (s *Store) GetReputation(_ context.Context, address string) (*reputation.Metrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.reputations[address]
	if !ok {
		return nil, fmt.Errorf("get reputation %s: %w", address, domain.ErrNotFound)
	}
	return &m, nil
}

func (s *Store) UpdateReputation(_ context.Context, m *reputation.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateReputationLocked(m)
}

func (s *Store) updateReputationLocked(m *reputation.Metrics) error {
	cur, ok := s.reputations[m.Address]
	if !ok {
		return fmt.Errorf("update reputation %s: %w", m.Agent, domain.ErrNotFound)
	}
	if cur.Version != m.Version {
		return fmt.Errorf("update reputation %s: %w", m.Agent, domain.ErrConflict)
	}
	m.Version++
	s.reputations[m.Address] = *m
	return nil
}

// --- Atomic cross-record operations ---

func (s *Store) Settle(_ context.Context, e *escrow.Record, a *agent.Agent, m *reputation.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate all versions before writing anything.
	if cur, ok := s.escrows[e.Address]; !ok || cur.Version != e.Version {
		return fmt.Errorf("settle escrow %s: %w", e.ID, versionErr(ok))
	}
	if a != nil {
		if cur, ok := s.agents[a.Address]; !ok || cur.Version != a.Version {
			return fmt.Errorf("settle agent %s: %w", a.Address, versionErr(ok))
		}
	}
	if m != nil {
		if cur, ok := s.reputations[m.Address]; !ok || cur.Version != m.Version {
			return fmt.Errorf("settle reputation %s: %w", m.Agent, versionErr(ok))
		}
	}

	if err := s.updateEscrowLocked(e); err != nil {
		return err
	}
	if a != nil {
		if err := s.updateAgentLocked(a); err != nil {
			return err
		}
	}
	if m != nil {
		if err := s.updateReputationLocked(m); err != nil {
			return err
		}
	}
	return nil
}

func versionErr(found bool) error {
	if !found {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func (s *Store) RecordPayment(_ context.Context, paymentID string, m *reputation.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.payments[paymentID]; dup {
		return fmt.Errorf("payment %s: %w", paymentID, domain.ErrDuplicateEvent)
	}
	if err := s.updateReputationLocked(m); err != nil {
		return err
	}
	s.payments[paymentID] = struct{}{}
	return nil
}

// --- Circuit breaker ---

func (s *Store) SaveBreakerState(_ context.Context, paused map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breaker = make(map[string]bool, len(paused))
	for k, v := range paused {
		s.breaker[k] = v
	}
	return nil
}

func (s *Store) LoadBreakerState(_ context.Context) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.breaker))
	for k, v := range s.breaker {
		out[k] = v
	}
	return out, nil
}

// --- Event journal ---

func (s *Store) Append(_ context.Context, ev *event.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *ev)
	return nil
}

func (s *Store) LoadByAgent(_ context.Context, agentAddr string, limit int) ([]event.LedgerEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []event.LedgerEvent
	for i := len(s.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.events[i].Agent == agentAddr {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}
