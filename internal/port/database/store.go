// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Dexploarer/ghostspeak-go/internal/domain/agent"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/escrow"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/reputation"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/staking"
)

// Store is the port interface for record storage. Records are addressed by
// their derived keys (see internal/keys); updates use optimistic locking on
// the record version and return domain.ErrConflict on a lost race.
type Store interface {
	// Register atomically persists a new agent together with its reputation
	// record seeded at the score midpoint, so an agent row never exists
	// without a score for settlements to land on.
	Register(ctx context.Context, a *agent.Agent, m *reputation.Metrics) error
	GetAgent(ctx context.Context, address string) (*agent.Agent, error)
	ListAgents(ctx context.Context) ([]agent.Agent, error)
	UpdateAgent(ctx context.Context, a *agent.Agent) error

	// Staking
	GetStakingConfig(ctx context.Context) (*staking.Config, error)
	PutStakingConfig(ctx context.Context, cfg *staking.Config) error
	CreateStakingAccount(ctx context.Context, acct *staking.Account) error
	GetStakingAccount(ctx context.Context, address string) (*staking.Account, error)
	UpdateStakingAccount(ctx context.Context, acct *staking.Account) error

	// Escrows
	CreateEscrow(ctx context.Context, e *escrow.Record) error
	GetEscrow(ctx context.Context, address string) (*escrow.Record, error)
	ListEscrowsByParticipant(ctx context.Context, participant string) ([]escrow.Record, error)
	UpdateEscrow(ctx context.Context, e *escrow.Record) error

	// Reputation
	GetReputation(ctx context.Context, address string) (*reputation.Metrics, error)
	UpdateReputation(ctx context.Context, m *reputation.Metrics) error

	// Settle atomically persists a terminal escrow together with the
	// reputation update and agent counters it produced, so a reader never
	// observes a released escrow without the matching score change. agent
	// may be nil when the provider never registered.
	Settle(ctx context.Context, e *escrow.Record, a *agent.Agent, m *reputation.Metrics) error

	// RecordPayment atomically marks the payment identifier as processed
	// and persists the reputation update. Returns domain.ErrDuplicateEvent
	// when the identifier was already consumed, without touching the score.
	RecordPayment(ctx context.Context, paymentID string, m *reputation.Metrics) error

	// Circuit breaker persistence (named singleton).
	SaveBreakerState(ctx context.Context, paused map[string]bool) error
	LoadBreakerState(ctx context.Context) (map[string]bool, error)
}
