package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Dexploarer/ghostspeak-go/internal/domain"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/agent"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/escrow"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/reputation"
)

const reputationColumns = `address, agent, score, band, total_success, total_failed, avg_response_ms, version, created_at, updated_at`

func insertReputation(ctx context.Context, q querier, m *reputation.Metrics) error {
	_, err := q.Exec(ctx,
		`INSERT INTO reputations (`+reputationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.Address, m.Agent, m.Score, string(m.Band), m.TotalSuccess, m.TotalFailed,
		m.AvgResponseMs, m.Version, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return conflictWrap(err, "create reputation %s", m.Agent)
	}
	return nil
}

func (s *Store) GetReputation(ctx context.Context, address string) (*reputation.Metrics, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reputationColumns+` FROM reputations WHERE address = $1`, address)

	m, err := scanReputation(row)
	if err != nil {
		return nil, notFoundWrap(err, "get reputation %s", address)
	}
	return &m, nil
}

func (s *Store) UpdateReputation(ctx context.Context, m *reputation.Metrics) error {
	return updateReputation(ctx, s.pool, m)
}

func updateReputation(ctx context.Context, q querier, m *reputation.Metrics) error {
	tag, err := q.Exec(ctx,
		`UPDATE reputations SET score = $2, band = $3, total_success = $4, total_failed = $5,
		        avg_response_ms = $6, version = version + 1, updated_at = $7
		 WHERE address = $1 AND version = $8`,
		m.Address, m.Score, string(m.Band), m.TotalSuccess, m.TotalFailed,
		m.AvgResponseMs, m.UpdatedAt, m.Version)
	if err := execExpectVersioned(tag, err, "update reputation %s", m.Agent); err != nil {
		return err
	}
	m.Version++
	return nil
}

func scanReputation(row scannable) (reputation.Metrics, error) {
	var (
		m    reputation.Metrics
		band string
	)
	err := row.Scan(&m.Address, &m.Agent, &m.Score, &band, &m.TotalSuccess,
		&m.TotalFailed, &m.AvgResponseMs, &m.Version, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return m, err
	}
	m.Band = reputation.Band(band)
	return m, nil
}

// --- Atomic cross-record operations ---

// Settle persists a terminal escrow, the provider's counters, and the
// reputation update in one transaction. Any version conflict rolls back the
// whole settlement.
func (s *Store) Settle(ctx context.Context, e *escrow.Record, a *agent.Agent, m *reputation.Metrics) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := updateEscrow(ctx, tx, e); err != nil {
			return err
		}
		if a != nil {
			if err := updateAgent(ctx, tx, a); err != nil {
				return err
			}
		}
		if m != nil {
			if err := updateReputation(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordPayment marks the payment identifier processed and persists the score
// update atomically. The primary key on processed_payments is the idempotency
// guard.
func (s *Store) RecordPayment(ctx context.Context, paymentID string, m *reputation.Metrics) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO processed_payments (payment_id) VALUES ($1)
			 ON CONFLICT (payment_id) DO NOTHING`, paymentID)
		if err != nil {
			return fmt.Errorf("mark payment %s: %w", paymentID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("payment %s: %w", paymentID, domain.ErrDuplicateEvent)
		}
		return updateReputation(ctx, tx, m)
	})
}

// --- Circuit breaker persistence ---

func (s *Store) SaveBreakerState(ctx context.Context, paused map[string]bool) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM breaker_state`); err != nil {
			return fmt.Errorf("clear breaker state: %w", err)
		}
		for class, p := range paused {
			if _, err := tx.Exec(ctx,
				`INSERT INTO breaker_state (class, paused) VALUES ($1, $2)`, class, p); err != nil {
				return fmt.Errorf("save breaker state %s: %w", class, err)
			}
		}
		return nil
	})
}

func (s *Store) LoadBreakerState(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT class, paused FROM breaker_state`)
	if err != nil {
		return nil, fmt.Errorf("load breaker state: %w", err)
	}
	defer rows.Close()

	state := make(map[string]bool)
	for rows.Next() {
		var (
			class  string
			paused bool
		)
		if err := rows.Scan(&class, &paused); err != nil {
			return nil, fmt.Errorf("scan breaker state: %w", err)
		}
		state[class] = paused
	}
	return state, rows.Err()
}
