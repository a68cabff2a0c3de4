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

	"github.com/Dexploarer/ghostspeak-go/internal/domain"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/event"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/staking"
	"github.com/Dexploarer/ghostspeak-go/internal/guard"
	"github.com/Dexploarer/ghostspeak-go/internal/keys"
	"github.com/Dexploarer/ghostspeak-go/internal/port/database"
	"github.com/Dexploarer/ghostspeak-go/internal/port/eventstore"
)

// baseMultiplierBps is the trust multiplier for agents with no stake.
const baseMultiplierBps = 10_000

// StakingService manages collateral accounts and the singleton tier table.
type StakingService struct {
	store  database.Store
	guards *Guards
	events eventstore.Store
	now    func() time.Time
}

// NewStakingService creates a new StakingService.
func NewStakingService(store database.Store, guards *Guards) *StakingService {
	return &StakingService{
		store:  store,
		guards: guards,
		now:    time.Now,
	}
}

// SetEventStore attaches the settlement journal.
func (s *StakingService) SetEventStore(es eventstore.Store) { s.events = es }

// EnsureConfig seeds the tier table on first boot. An existing table wins so
// restarts never clobber admin changes.
func (s *StakingService) EnsureConfig(ctx context.Context, cfg staking.Config) error {
	if _, err := s.store.GetStakingConfig(ctx); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.store.PutStakingConfig(ctx, &cfg); err != nil {
		return fmt.Errorf("seed staking config: %w", err)
	}
	slog.Info("staking config seeded", "tiers", len(cfg.Thresholds), "min_stake", cfg.MinStake)
	return nil
}

// GetConfig returns the current tier table.
func (s *StakingService) GetConfig(ctx context.Context) (*staking.Config, error) {
	return s.store.GetStakingConfig(ctx)
}

// UpdateConfig replaces the tier table. Admin authorization is enforced by
// middleware; existing accounts keep their tier until their next operation.
func (s *StakingService) UpdateConfig(ctx context.Context, cfg staking.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.store.PutStakingConfig(ctx, &cfg); err != nil {
		return fmt.Errorf("update staking config: %w", err)
	}
	return nil
}

// Stake locks collateral for the caller, creating the account on first use.
// Restaking adds to the balance and restarts the lock clock.
func (s *StakingService) Stake(ctx context.Context, caller string, amount uint64, lockDuration time.Duration) (*staking.Account, error) {
	if err := s.guards.admit(caller, guard.ClassStaking); err != nil {
		return nil, err
	}
	cfg, err := s.store.GetStakingConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load staking config: %w", err)
	}

	address := keys.Derive(keys.PurposeStake, caller)
	release, err := s.guards.Locks.Acquire(address)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.now()
	acct, err := s.store.GetStakingAccount(ctx, address)
	created := false
	switch {
	case errors.Is(err, domain.ErrNotFound):
		created = true
		acct = &staking.Account{
			Address:   address,
			Owner:     caller,
			Tier:      cfg.Thresholds[0].Tier,
			CreatedAt: now,
		}
	case err != nil:
		return nil, err
	}

	prevTier := acct.Tier
	if err := acct.Stake(cfg, amount, lockDuration, now); err != nil {
		return nil, err
	}

	if created {
		err = s.store.CreateStakingAccount(ctx, acct)
	} else {
		err = s.store.UpdateStakingAccount(ctx, acct)
	}
	if err != nil {
		return nil, fmt.Errorf("persist stake: %w", err)
	}

	s.appendEvent(ctx, event.TypeStakeDeposited, keys.Derive(keys.PurposeAgent, caller), map[string]string{
		"owner":  caller,
		"amount": strconv.FormatUint(amount, 10),
		"staked": strconv.FormatUint(acct.Staked, 10),
		"tier":   acct.Tier.String(),
	})
	if acct.Tier != prevTier {
		slog.Info("staking tier changed", "owner", caller, "from", prevTier.String(), "to", acct.Tier.String())
	}
	return acct, nil
}

// Unstake returns the full collateral after the lock expires and drops the
// account to the lowest tier. The account itself is kept.
func (s *StakingService) Unstake(ctx context.Context, caller string) (uint64, *staking.Account, error) {
	if err := s.guards.admit(caller, guard.ClassStaking); err != nil {
		return 0, nil, err
	}
	cfg, err := s.store.GetStakingConfig(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("load staking config: %w", err)
	}

	address := keys.Derive(keys.PurposeStake, caller)
	release, err := s.guards.Locks.Acquire(address)
	if err != nil {
		return 0, nil, err
	}
	defer release()

	acct, err := s.store.GetStakingAccount(ctx, address)
	if err != nil {
		return 0, nil, err
	}
	returned, err := acct.Unstake(cfg, s.now())
	if err != nil {
		return 0, nil, err
	}
	if err := s.store.UpdateStakingAccount(ctx, acct); err != nil {
		return 0, nil, fmt.Errorf("persist unstake: %w", err)
	}

	s.appendEvent(ctx, event.TypeStakeWithdrawn, keys.Derive(keys.PurposeAgent, caller), map[string]string{
		"owner":    caller,
		"returned": strconv.FormatUint(returned, 10),
	})
	return returned, acct, nil
}

// Slash confiscates up to amount from the owner's collateral and routes it to
// the treasury target. Admin authorization is enforced by middleware; the
// caller here is the admin identity for rate limiting and audit.
func (s *StakingService) Slash(ctx context.Context, caller, owner string, amount uint64, reason string) (uint64, error) {
	if err := s.guards.admit(caller, guard.ClassStaking); err != nil {
		return 0, err
	}
	if reason == "" {
		return 0, fmt.Errorf("%w: slash reason is required", domain.ErrValidation)
	}
	cfg, err := s.store.GetStakingConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("load staking config: %w", err)
	}

	address := keys.Derive(keys.PurposeStake, owner)
	release, err := s.guards.Locks.Acquire(address)
	if err != nil {
		return 0, err
	}
	defer release()

	acct, err := s.store.GetStakingAccount(ctx, address)
	if err != nil {
		return 0, err
	}
	slashed, err := acct.Slash(cfg, amount, s.now())
	if err != nil {
		return 0, err
	}
	if err := s.store.UpdateStakingAccount(ctx, acct); err != nil {
		return 0, fmt.Errorf("persist slash: %w", err)
	}

	s.appendEvent(ctx, event.TypeStakeSlashed, keys.Derive(keys.PurposeAgent, owner), map[string]string{
		"owner":    owner,
		"slashed":  strconv.FormatUint(slashed, 10),
		"treasury": cfg.Treasury,
		"reason":   reason,
		"by":       caller,
	})
	slog.Warn("stake slashed", "owner", owner, "amount", slashed, "treasury", cfg.Treasury, "reason", reason)
	return slashed, nil
}

// Get returns the caller's staking account.
func (s *StakingService) Get(ctx context.Context, owner string) (*staking.Account, error) {
	return s.store.GetStakingAccount(ctx, keys.Derive(keys.PurposeStake, owner))
}

// Multiplier returns the trust multiplier in basis points for the owner's
// current stake. Owners with no account get the base 1.0x.
func (s *StakingService) Multiplier(ctx context.Context, owner string) uint64 {
	cfg, err := s.store.GetStakingConfig(ctx)
	if err != nil {
		return baseMultiplierBps
	}
	acct, err := s.store.GetStakingAccount(ctx, keys.Derive(keys.PurposeStake, owner))
	if err != nil {
		return baseMultiplierBps
	}
	return cfg.TierFor(acct.Staked).MultiplierBps
}

func (s *StakingService) appendEvent(ctx context.Context, t event.Type, addr string, payload map[string]string) {
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
