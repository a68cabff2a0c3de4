package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	otelad "github.com/Dexploarer/ghostspeak-go/internal/adapter/otel"
	"github.com/Dexploarer/ghostspeak-go/internal/adapter/ws"
	"github.com/Dexploarer/ghostspeak-go/internal/domain"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/event"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/payment"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/reputation"
	"github.com/Dexploarer/ghostspeak-go/internal/guard"
	"github.com/Dexploarer/ghostspeak-go/internal/keys"
	"github.com/Dexploarer/ghostspeak-go/internal/port/broadcast"
	"github.com/Dexploarer/ghostspeak-go/internal/port/cache"
	"github.com/Dexploarer/ghostspeak-go/internal/port/database"
	"github.com/Dexploarer/ghostspeak-go/internal/port/eventstore"
	"github.com/Dexploarer/ghostspeak-go/internal/port/messagequeue"
)

// ReputationService maintains per-agent trust scores. Settlement outcomes
// arrive in-process from the escrow service; x402 payment attestations arrive
// over the message queue.
type ReputationService struct {
	store    database.Store
	guards   *Guards
	staking  *StakingService
	params   *reputation.Params
	cache    cache.Cache
	cacheTTL time.Duration
	events   eventstore.Store
	queue    messagequeue.Queue
	hub      broadcast.Broadcaster
	metrics  *otelad.Metrics
	now      func() time.Time
}

// NewReputationService creates a new ReputationService.
func NewReputationService(store database.Store, guards *Guards, staking *StakingService, params *reputation.Params) *ReputationService {
	return &ReputationService{
		store:   store,
		guards:  guards,
		staking: staking,
		params:  params,
		now:     time.Now,
	}
}

// SetEventStore attaches the settlement journal.
func (s *ReputationService) SetEventStore(es eventstore.Store) { s.events = es }

// SetQueue attaches the message queue for band-change notifications.
func (s *ReputationService) SetQueue(q messagequeue.Queue) { s.queue = q }

// SetHub attaches the websocket broadcaster.
func (s *ReputationService) SetHub(hub broadcast.Broadcaster) { s.hub = hub }

// SetMetrics attaches the engine metric instruments.
func (s *ReputationService) SetMetrics(m *otelad.Metrics) { s.metrics = m }

// SetCache attaches the read cache for score lookups.
func (s *ReputationService) SetCache(c cache.Cache, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

// Get returns the owner's reputation, served from cache when fresh.
func (s *ReputationService) Get(ctx context.Context, owner string) (*reputation.Metrics, error) {
	key := "reputation:" + owner
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var m reputation.Metrics
			if err := json.Unmarshal(data, &m); err == nil {
				return &m, nil
			}
		}
	}

	m, err := s.store.GetReputation(ctx, keys.Derive(keys.PurposeReputation, owner))
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if data, err := json.Marshal(m); err == nil {
			_ = s.cache.Set(ctx, key, data, s.cacheTTL)
		}
	}
	return m, nil
}

// Weigh folds one outcome into the owner's metrics without persisting.
// The caller persists the returned record atomically with whatever else the
// outcome changed. A nil record means the owner never registered.
func (s *ReputationService) Weigh(ctx context.Context, owner string, ev reputation.Event) (*reputation.Metrics, bool, error) {
	m, err := s.store.GetReputation(ctx, keys.Derive(keys.PurposeReputation, owner))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	stakeBps := s.staking.Multiplier(ctx, owner)
	bandChanged := m.Apply(ev, stakeBps, s.params, s.now())
	return m, bandChanged, nil
}

// Notify publishes the side effects of a persisted score change: cache
// invalidation, the journal entry, the band-change subject, and the live feed.
func (s *ReputationService) Notify(ctx context.Context, owner string, m *reputation.Metrics, bandChanged bool) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "reputation:"+owner)
	}
	if !bandChanged {
		return
	}

	s.appendEvent(ctx, event.TypeReputationChanged, keys.Derive(keys.PurposeAgent, owner), map[string]string{
		"owner": owner,
		"band":  string(m.Band),
		"score": fmt.Sprintf("%d", m.Score),
	})
	if s.queue != nil {
		data, err := json.Marshal(m)
		if err == nil {
			if err := s.queue.Publish(ctx, messagequeue.SubjectReputation, data); err != nil {
				slog.Error("publish band change failed", "owner", owner, "error", err)
			}
		}
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventReputationChanged, ws.ReputationEvent{
			Agent: owner,
			Score: m.Score,
			Band:  string(m.Band),
		})
	}
	slog.Info("reputation band changed", "owner", owner, "band", m.Band, "score", m.Score)
}

// PaymentFeedCaller is the identity the x402 attestation feed is admitted
// under. The feed authenticates with a bearer key rather than an X-Caller
// header, so its rate-limit window is keyed on this fixed identity.
const PaymentFeedCaller = "x402-feed"

// RecordPayment folds one x402 attestation into the merchant's score.
// caller is the authenticated feed identity; every field of the attestation,
// payer included, is untrusted data and never keys the limiter. Duplicate
// identifiers return domain.ErrDuplicateEvent without a score change;
// attestations for unregistered merchants are dropped.
func (s *ReputationService) RecordPayment(ctx context.Context, caller string, rec payment.Record) error {
	ctx, span := otelad.StartPaymentSpan(ctx, rec.ID, rec.Merchant)
	defer span.End()

	if err := s.guards.admit(caller, guard.ClassPayments); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	address := keys.Derive(keys.PurposeReputation, rec.Merchant)
	release, err := s.guards.Locks.Acquire(address)
	if err != nil {
		return err
	}
	defer release()

	m, bandChanged, err := s.Weigh(ctx, rec.Merchant, reputation.Event{
		Agent:        rec.Merchant,
		Success:      rec.Success,
		Amount:       rec.Amount,
		ResponseTime: rec.ResponseTime,
	})
	if err != nil {
		return err
	}
	if m == nil {
		slog.Debug("payment for unregistered merchant dropped", "payment", rec.ID, "merchant", rec.Merchant)
		if s.metrics != nil {
			s.metrics.PaymentsDropped.Add(ctx, 1)
		}
		return nil
	}

	if err := s.store.RecordPayment(ctx, rec.ID, m); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) && s.metrics != nil {
			s.metrics.PaymentsDropped.Add(ctx, 1)
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.PaymentsRecorded.Add(ctx, 1)
	}

	s.appendEvent(ctx, event.TypePaymentRecorded, keys.Derive(keys.PurposeAgent, rec.Merchant), map[string]string{
		"payment":  rec.ID,
		"merchant": rec.Merchant,
		"payer":    rec.Payer,
	})
	s.Notify(ctx, rec.Merchant, m, bandChanged)
	return nil
}

// StartPaymentSubscriber consumes the x402 payment feed. Duplicates and
// malformed attestations are acknowledged so redelivery cannot wedge the
// consumer; transient failures propagate for redelivery.
func (s *ReputationService) StartPaymentSubscriber(ctx context.Context) (cancel func(), err error) {
	if s.queue == nil {
		return nil, fmt.Errorf("payment subscriber: no queue attached")
	}
	return s.queue.Subscribe(ctx, messagequeue.SubjectPayments, func(ctx context.Context, subject string, data []byte) error {
		var rec payment.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			slog.Error("malformed payment attestation dropped", "subject", subject, "error", err)
			return nil
		}
		err := s.RecordPayment(ctx, PaymentFeedCaller, rec)
		switch {
		case errors.Is(err, domain.ErrDuplicateEvent):
			slog.Debug("duplicate payment attestation acked", "payment", rec.ID)
			return nil
		case errors.Is(err, domain.ErrValidation):
			slog.Error("invalid payment attestation dropped", "payment", rec.ID, "error", err)
			return nil
		}
		return err
	})
}

func (s *ReputationService) appendEvent(ctx context.Context, t event.Type, addr string, payload map[string]string) {
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
