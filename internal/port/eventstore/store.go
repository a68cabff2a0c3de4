// Package eventstore defines the append-only settlement journal port.
package eventstore

import (
	"context"

	"github.com/Dexploarer/ghostspeak-go/internal/domain/event"
)

// Store is the port interface for the ledger event journal.
type Store interface {
	// Append inserts an immutable event. Events are never updated or deleted.
	Append(ctx context.Context, ev *event.LedgerEvent) error

	// LoadByAgent returns the most recent events for an agent, newest first,
	// capped at limit.
	LoadByAgent(ctx context.Context, agent string, limit int) ([]event.LedgerEvent, error)
}
