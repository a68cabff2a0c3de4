package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dexploarer/ghostspeak-go/internal/domain/agent"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/reputation"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so versioned updates
// can run standalone or inside a settlement transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// --- Agents ---

const agentColumns = `address, owner, name, description, capabilities, jobs_completed, total_earnings, active, verified, version, created_at, updated_at`

// Register inserts the agent and its seeded reputation row in one
// transaction; neither survives if the other insert fails.
func (s *Store) Register(ctx context.Context, a *agent.Agent, m *reputation.Metrics) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := insertAgent(ctx, tx, a); err != nil {
			return err
		}
		return insertReputation(ctx, tx, m)
	})
}

func insertAgent(ctx context.Context, q querier, a *agent.Agent) error {
	_, err := q.Exec(ctx,
		`INSERT INTO agents (`+agentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.Address, a.Owner, a.Name, a.Description, pgTextArray(a.Capabilities),
		a.JobsCompleted, a.TotalEarnings, a.Active, a.Verified, a.Version,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return conflictWrap(err, "create agent %s", a.Address)
	}
	return nil
}

func (s *Store) GetAgent(ctx context.Context, address string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE address = $1`, address)

	a, err := scanAgent(row)
	if err != nil {
		return nil, notFoundWrap(err, "get agent %s", address)
	}
	return &a, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]agent.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []agent.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *Store) UpdateAgent(ctx context.Context, a *agent.Agent) error {
	return updateAgent(ctx, s.pool, a)
}

func updateAgent(ctx context.Context, q querier, a *agent.Agent) error {
	tag, err := q.Exec(ctx,
		`UPDATE agents SET name = $2, description = $3, capabilities = $4,
		        jobs_completed = $5, total_earnings = $6, active = $7, verified = $8,
		        version = version + 1, updated_at = $9
		 WHERE address = $1 AND version = $10`,
		a.Address, a.Name, a.Description, pgTextArray(a.Capabilities),
		a.JobsCompleted, a.TotalEarnings, a.Active, a.Verified, a.UpdatedAt, a.Version)
	if err := execExpectVersioned(tag, err, "update agent %s", a.Address); err != nil {
		return err
	}
	a.Version++
	return nil
}

func scanAgent(row scannable) (agent.Agent, error) {
	var a agent.Agent
	err := row.Scan(&a.Address, &a.Owner, &a.Name, &a.Description, &a.Capabilities,
		&a.JobsCompleted, &a.TotalEarnings, &a.Active, &a.Verified, &a.Version,
		&a.CreatedAt, &a.UpdatedAt)
	return a, err
}
