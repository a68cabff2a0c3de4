package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dexploarer/ghostspeak-go/internal/domain/event"
)

// EventStore implements eventstore.Store using the ledger_events table.
// Entries are append-only; nothing in the engine updates or deletes them.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

func (s *EventStore) Append(ctx context.Context, ev *event.LedgerEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ledger_events (id, agent, type, payload, request_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.Agent, string(ev.Type), ev.Payload, ev.RequestID, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event %s: %w", ev.Type, err)
	}
	return nil
}

func (s *EventStore) LoadByAgent(ctx context.Context, agent string, limit int) ([]event.LedgerEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, agent, type, payload, request_id, created_at
		 FROM ledger_events WHERE agent = $1
		 ORDER BY created_at DESC LIMIT $2`, agent, limit)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", agent, err)
	}
	defer rows.Close()

	var events []event.LedgerEvent
	for rows.Next() {
		var (
			ev  event.LedgerEvent
			typ string
		)
		if err := rows.Scan(&ev.ID, &ev.Agent, &typ, &ev.Payload, &ev.RequestID, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = event.Type(typ)
		events = append(events, ev)
	}
	return events, rows.Err()
}
