package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Dexploarer/ghostspeak-go/internal/domain/event"
	"github.com/Dexploarer/ghostspeak-go/internal/guard"
	"github.com/Dexploarer/ghostspeak-go/internal/port/database"
	"github.com/Dexploarer/ghostspeak-go/internal/port/eventstore"
)

// AdminService controls the circuit breaker and serves the journal. Breaker
// flags are persisted so a restart comes back up still paused.
type AdminService struct {
	store  database.Store
	guards *Guards
	events eventstore.Store
	now    func() time.Time
}

// NewAdminService creates a new AdminService.
func NewAdminService(store database.Store, guards *Guards) *AdminService {
	return &AdminService{
		store:  store,
		guards: guards,
		now:    time.Now,
	}
}

// SetEventStore attaches the settlement journal.
func (s *AdminService) SetEventStore(es eventstore.Store) { s.events = es }

// RestoreBreaker reloads persisted pause flags on startup.
func (s *AdminService) RestoreBreaker(ctx context.Context) error {
	state, err := s.store.LoadBreakerState(ctx)
	if err != nil {
		return fmt.Errorf("load breaker state: %w", err)
	}
	restored := make(map[guard.Class]bool, len(state))
	for c, p := range state {
		restored[guard.Class(c)] = p
	}
	s.guards.Breaker.Restore(restored)
	for c, p := range restored {
		if p {
			slog.Warn("instruction class restored paused", "class", c)
		}
	}
	return nil
}

// Pause latches the kill switch for one instruction class.
func (s *AdminService) Pause(ctx context.Context, caller string, class guard.Class) error {
	if err := s.guards.Breaker.Pause(class); err != nil {
		return err
	}
	if err := s.persistBreaker(ctx); err != nil {
		return err
	}
	s.appendEvent(ctx, event.TypeBreakerPaused, map[string]string{
		"class": string(class),
		"by":    caller,
	})
	slog.Warn("instruction class paused", "class", class, "by", caller)
	return nil
}

// Unpause clears the kill switch for one instruction class.
func (s *AdminService) Unpause(ctx context.Context, caller string, class guard.Class) error {
	if err := s.guards.Breaker.Unpause(class); err != nil {
		return err
	}
	if err := s.persistBreaker(ctx); err != nil {
		return err
	}
	s.appendEvent(ctx, event.TypeBreakerUnpaused, map[string]string{
		"class": string(class),
		"by":    caller,
	})
	slog.Info("instruction class unpaused", "class", class, "by", caller)
	return nil
}

// BreakerState returns the current pause flags.
func (s *AdminService) BreakerState() map[string]bool {
	state := s.guards.Breaker.State()
	out := make(map[string]bool, len(state))
	for c, p := range state {
		out[string(c)] = p
	}
	return out
}

// Events returns the newest journal entries for a record address.
func (s *AdminService) Events(ctx context.Context, address string, limit int) ([]event.LedgerEvent, error) {
	if s.events == nil {
		return nil, fmt.Errorf("journal not attached")
	}
	return s.events.LoadByAgent(ctx, address, limit)
}

func (s *AdminService) persistBreaker(ctx context.Context) error {
	if err := s.store.SaveBreakerState(ctx, s.BreakerState()); err != nil {
		return fmt.Errorf("persist breaker state: %w", err)
	}
	return nil
}

func (s *AdminService) appendEvent(ctx context.Context, t event.Type, payload map[string]string) {
	if s.events == nil {
		return
	}
	data, _ := json.Marshal(payload)
	ev := &event.LedgerEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   data,
		CreatedAt: s.now(),
	}
	if err := s.events.Append(ctx, ev); err != nil {
		slog.Error("append event failed", "type", t, "error", err)
	}
}
