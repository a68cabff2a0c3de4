package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dexploarer/ghostspeak-go/internal/domain/staking"
)

// --- Staking config (named singleton) ---

func (s *Store) GetStakingConfig(ctx context.Context) (*staking.Config, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT config FROM staking_config WHERE id = 1`).Scan(&raw)
	if err != nil {
		return nil, notFoundWrap(err, "get staking config")
	}

	var cfg staking.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal staking config: %w", err)
	}
	return &cfg, nil
}

func (s *Store) PutStakingConfig(ctx context.Context, cfg *staking.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal staking config: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO staking_config (id, config, updated_at) VALUES (1, $1, now())
		 ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, updated_at = now()`, raw)
	if err != nil {
		return fmt.Errorf("put staking config: %w", err)
	}
	return nil
}

// --- Staking accounts ---

const stakingColumns = `address, owner, staked, lock_start, lock_duration_ns, tier, slashed, version, created_at, updated_at`

func (s *Store) CreateStakingAccount(ctx context.Context, acct *staking.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO staking_accounts (`+stakingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		acct.Address, acct.Owner, acct.Staked, nullTime(acct.LockStart),
		acct.LockDuration.Nanoseconds(), int(acct.Tier), acct.Slashed,
		acct.Version, acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		return conflictWrap(err, "create staking account %s", acct.Address)
	}
	return nil
}

func (s *Store) GetStakingAccount(ctx context.Context, address string) (*staking.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+stakingColumns+` FROM staking_accounts WHERE address = $1`, address)

	acct, err := scanStakingAccount(row)
	if err != nil {
		return nil, notFoundWrap(err, "get staking account %s", address)
	}
	return &acct, nil
}

func (s *Store) UpdateStakingAccount(ctx context.Context, acct *staking.Account) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE staking_accounts SET staked = $2, lock_start = $3, lock_duration_ns = $4,
		        tier = $5, slashed = $6, version = version + 1, updated_at = $7
		 WHERE address = $1 AND version = $8`,
		acct.Address, acct.Staked, nullTime(acct.LockStart), acct.LockDuration.Nanoseconds(),
		int(acct.Tier), acct.Slashed, acct.UpdatedAt, acct.Version)
	if err := execExpectVersioned(tag, err, "update staking account %s", acct.Address); err != nil {
		return err
	}
	acct.Version++
	return nil
}

func scanStakingAccount(row scannable) (staking.Account, error) {
	var (
		acct      staking.Account
		lockStart *time.Time
		lockNs    int64
		tier      int
	)
	err := row.Scan(&acct.Address, &acct.Owner, &acct.Staked, &lockStart, &lockNs,
		&tier, &acct.Slashed, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		return acct, err
	}
	acct.LockStart = timeOrZero(lockStart)
	acct.LockDuration = time.Duration(lockNs)
	acct.Tier = staking.Tier(tier)
	return acct, nil
}
