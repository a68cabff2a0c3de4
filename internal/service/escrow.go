package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	otelad "github.com/Dexploarer/ghostspeak-go/internal/adapter/otel"
	"github.com/Dexploarer/ghostspeak-go/internal/adapter/ws"
	"github.com/Dexploarer/ghostspeak-go/internal/domain"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/agent"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/escrow"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/event"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/reputation"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/safemath"
	"github.com/Dexploarer/ghostspeak-go/internal/guard"
	"github.com/Dexploarer/ghostspeak-go/internal/keys"
	"github.com/Dexploarer/ghostspeak-go/internal/port/broadcast"
	"github.com/Dexploarer/ghostspeak-go/internal/port/database"
	"github.com/Dexploarer/ghostspeak-go/internal/port/eventstore"
	"github.com/Dexploarer/ghostspeak-go/internal/port/messagequeue"
)

// EscrowService drives the custody state machine. Payment-completing
// transitions persist the escrow, the provider's counters, and the reputation
// update in one store call so readers never observe a half-settled job.
type EscrowService struct {
	store      database.Store
	guards     *Guards
	reputation *ReputationService
	events     eventstore.Store
	queue      messagequeue.Queue
	hub        broadcast.Broadcaster
	metrics    *otelad.Metrics
	now        func() time.Time
}

// NewEscrowService creates a new EscrowService.
func NewEscrowService(store database.Store, guards *Guards, reputation *ReputationService) *EscrowService {
	return &EscrowService{
		store:      store,
		guards:     guards,
		reputation: reputation,
		now:        time.Now,
	}
}

// SetEventStore attaches the settlement journal.
func (s *EscrowService) SetEventStore(es eventstore.Store) { s.events = es }

// SetQueue attaches the message queue for settlement outcomes.
func (s *EscrowService) SetQueue(q messagequeue.Queue) { s.queue = q }

// SetHub attaches the websocket broadcaster.
func (s *EscrowService) SetHub(hub broadcast.Broadcaster) { s.hub = hub }

// SetMetrics attaches the engine metric instruments.
func (s *EscrowService) SetMetrics(m *otelad.Metrics) { s.metrics = m }

// Create opens an escrow holding the buyer's funds. The record address is
// derived from buyer and id, so one buyer cannot reuse an id.
func (s *EscrowService) Create(ctx context.Context, req escrow.CreateRequest) (*escrow.Record, error) {
	if err := s.guards.admit(req.Buyer, guard.ClassEscrow); err != nil {
		return nil, err
	}

	address := keys.DeriveEscrow(req.Buyer, req.ID)
	release, err := s.guards.Locks.Acquire(address)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := escrow.New(req, address, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateEscrow(ctx, rec); err != nil {
		return nil, fmt.Errorf("create escrow: %w", err)
	}

	s.appendEvent(ctx, event.TypeEscrowCreated, address, map[string]string{
		"escrow":   rec.ID,
		"buyer":    rec.Buyer,
		"provider": rec.Provider,
		"amount":   strconv.FormatUint(rec.Amount, 10),
	})
	s.broadcastStatus(ctx, rec)
	if s.metrics != nil {
		s.metrics.EscrowsCreated.Add(ctx, 1)
	}
	slog.Info("escrow created", "escrow", rec.ID, "buyer", rec.Buyer, "provider", rec.Provider, "amount", rec.Amount)
	return rec, nil
}

// Get returns one escrow by buyer and id.
func (s *EscrowService) Get(ctx context.Context, buyer, id string) (*escrow.Record, error) {
	return s.store.GetEscrow(ctx, keys.DeriveEscrow(buyer, id))
}

// ListByParticipant returns every escrow the address buys or provides in.
func (s *EscrowService) ListByParticipant(ctx context.Context, participant string) ([]escrow.Record, error) {
	return s.store.ListEscrowsByParticipant(ctx, participant)
}

// SubmitDelivery records the provider's proof of work.
func (s *EscrowService) SubmitDelivery(ctx context.Context, caller, buyer, id, proof string) (*escrow.Record, error) {
	rec, release, err := s.admitAndLoad(ctx, caller, buyer, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := rec.SubmitDelivery(caller, proof, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateEscrow(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist delivery: %w", err)
	}

	s.appendEvent(ctx, event.TypeEscrowDelivered, rec.Address, map[string]string{
		"escrow":   rec.ID,
		"provider": rec.Provider,
	})
	s.broadcastStatus(ctx, rec)
	return rec, nil
}

// ApproveDelivery releases the full held amount to the provider and settles.
func (s *EscrowService) ApproveDelivery(ctx context.Context, caller, buyer, id string) (*escrow.Record, error) {
	rec, release, err := s.admitAndLoad(ctx, caller, buyer, id)
	if err != nil {
		return nil, err
	}
	defer release()

	settlement, err := rec.ApproveDelivery(caller, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.finalize(ctx, rec, settlement); err != nil {
		return nil, err
	}
	return rec, nil
}

// FileDispute freezes the escrow pending arbitration.
func (s *EscrowService) FileDispute(ctx context.Context, caller, buyer, id, reason string) (*escrow.Record, error) {
	rec, release, err := s.admitAndLoad(ctx, caller, buyer, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := rec.FileDispute(caller, reason, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateEscrow(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist dispute: %w", err)
	}

	s.appendEvent(ctx, event.TypeEscrowDisputed, rec.Address, map[string]string{
		"escrow": rec.ID,
		"buyer":  rec.Buyer,
		"reason": reason,
	})
	s.broadcastStatus(ctx, rec)
	if s.metrics != nil {
		s.metrics.EscrowsDisputed.Add(ctx, 1)
	}
	slog.Info("escrow disputed", "escrow", rec.ID, "buyer", rec.Buyer)
	return rec, nil
}

// Arbitrate resolves a disputed escrow with a basis-point split. Arbitrator
// authorization is enforced by middleware; caller is the arbitrator identity.
func (s *EscrowService) Arbitrate(ctx context.Context, caller, buyer, id string, releaseBps uint64) (*escrow.Record, error) {
	rec, release, err := s.admitAndLoad(ctx, caller, buyer, id)
	if err != nil {
		return nil, err
	}
	defer release()

	settlement, err := rec.Arbitrate(releaseBps, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.finalize(ctx, rec, settlement); err != nil {
		return nil, err
	}
	slog.Info("escrow arbitrated", "escrow", rec.ID, "release_bps", releaseBps,
		"released", settlement.Released, "refunded", settlement.Refunded)
	return rec, nil
}

// RefundExpired returns the held amount to the buyer once the deadline has
// passed. Callable by anyone; no reputation event is produced because expiry
// assigns no blame.
func (s *EscrowService) RefundExpired(ctx context.Context, caller, buyer, id string) (*escrow.Record, error) {
	rec, release, err := s.admitAndLoad(ctx, caller, buyer, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := rec.RefundExpired(s.now()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateEscrow(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist expiry refund: %w", err)
	}

	s.appendEvent(ctx, event.TypeEscrowSettled, keys.Derive(keys.PurposeAgent, rec.Provider), map[string]string{
		"escrow":   rec.ID,
		"status":   string(rec.Status),
		"refunded": strconv.FormatUint(rec.RefundedAmount, 10),
	})
	s.broadcastStatus(ctx, rec)
	return rec, nil
}

// admitAndLoad runs the guards, acquires the record lock, and loads the
// escrow. The caller must release the returned func.
func (s *EscrowService) admitAndLoad(ctx context.Context, caller, buyer, id string) (*escrow.Record, func(), error) {
	if err := s.guards.admit(caller, guard.ClassEscrow); err != nil {
		return nil, nil, err
	}
	address := keys.DeriveEscrow(buyer, id)
	release, err := s.guards.Locks.Acquire(address)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.store.GetEscrow(ctx, address)
	if err != nil {
		release()
		return nil, nil, err
	}
	return rec, release, nil
}

// finalize persists a payment-completing transition: escrow, agent counters,
// and reputation in one atomic store call, then emits the outcome.
func (s *EscrowService) finalize(ctx context.Context, rec *escrow.Record, settlement escrow.Settlement) error {
	ctx, span := otelad.StartSettleSpan(ctx, rec.ID, settlement.Agent)
	defer span.End()
	start := time.Now()

	if err := rec.CheckConservation(); err != nil {
		return err
	}

	m, bandChanged, err := s.reputation.Weigh(ctx, settlement.Agent, reputation.Event{
		Agent:        settlement.Agent,
		Success:      settlement.Success,
		Amount:       settlement.Released,
		ResponseTime: settlement.ResponseTime,
	})
	if err != nil {
		return err
	}

	var a *agent.Agent
	if settlement.Success {
		a, err = s.store.GetAgent(ctx, keys.Derive(keys.PurposeAgent, settlement.Agent))
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a = nil
		case err != nil:
			return err
		default:
			earnings, err := safemath.Add(a.TotalEarnings, settlement.Released)
			if err != nil {
				return err
			}
			a.JobsCompleted++
			a.TotalEarnings = earnings
			a.UpdatedAt = s.now()
		}
	}

	if err := s.store.Settle(ctx, rec, a, m); err != nil {
		return fmt.Errorf("settle escrow %s: %w", rec.ID, err)
	}

	// Journaled under the provider's agent address so the per-agent event
	// feed surfaces settlements, not just registry changes.
	s.appendEvent(ctx, event.TypeEscrowSettled, keys.Derive(keys.PurposeAgent, settlement.Agent), map[string]string{
		"escrow":   rec.ID,
		"status":   string(rec.Status),
		"released": strconv.FormatUint(settlement.Released, 10),
		"refunded": strconv.FormatUint(settlement.Refunded, 10),
	})
	if s.queue != nil {
		if data, err := json.Marshal(settlement); err == nil {
			if err := s.queue.Publish(ctx, messagequeue.SubjectSettlements, data); err != nil {
				slog.Error("publish settlement failed", "escrow", rec.ID, "error", err)
			}
		}
	}
	s.broadcastStatus(ctx, rec)
	if m != nil {
		s.reputation.Notify(ctx, settlement.Agent, m, bandChanged)
	}
	if s.metrics != nil {
		s.metrics.EscrowsSettled.Add(ctx, 1)
		s.metrics.SettleDuration.Record(ctx, time.Since(start).Seconds())
	}
	slog.Info("escrow settled", "escrow", rec.ID, "status", rec.Status,
		"released", settlement.Released, "refunded", settlement.Refunded)
	return nil
}

func (s *EscrowService) broadcastStatus(ctx context.Context, rec *escrow.Record) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastEvent(ctx, ws.EventEscrowStatus, ws.EscrowStatusEvent{
		Escrow:   rec.ID,
		Buyer:    rec.Buyer,
		Provider: rec.Provider,
		Status:   string(rec.Status),
	})
}

func (s *EscrowService) appendEvent(ctx context.Context, t event.Type, addr string, payload map[string]string) {
	if s.events == nil {
		return
	}
	data, _ := json.Marshal(payload)
	ev := &event.LedgerEvent{
		ID:        uuid.NewString(),
		Agent:     addr,
		Type:      t,
		Payload:   data,
		CreatedAt: s.now(),
	}
	if err := s.events.Append(ctx, ev); err != nil {
		slog.Error("append event failed", "type", t, "error", err)
	}
}
