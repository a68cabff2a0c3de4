// Package staking defines collateral accounts and the trust tier table.
// Tier lookup is a pure step function over cumulative staked amount: higher
// stake never yields a lower tier, and the same stake always yields the same
// tier.
package staking

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Dexploarer/ghostspeak-go/internal/domain"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/safemath"
)

// Tier is a discrete trust level derived from staked collateral.
type Tier int

const (
	TierNone Tier = iota
	TierBronze
	TierSilver
	TierGold
	TierPlatinum
)

var tierNames = map[Tier]string{
	TierNone:     "none",
	TierBronze:   "bronze",
	TierSilver:   "silver",
	TierGold:     "gold",
	TierPlatinum: "platinum",
}

func (t Tier) String() string {
	if n, ok := tierNames[t]; ok {
		return n
	}
	return "unknown"
}

// MarshalJSON renders tiers by name so API responses and the persisted
// config stay readable.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for tier, n := range tierNames {
		if n == name {
			*t = tier
			return nil
		}
	}
	return fmt.Errorf("%w: unknown tier %q", domain.ErrValidation, name)
}

// Threshold maps a minimum cumulative stake to a tier and its trust
// multiplier in basis points (10_000 = 1.0x).
type Threshold struct {
	MinStake      uint64 `json:"min_stake" yaml:"min_stake"`
	Tier          Tier   `json:"tier" yaml:"tier"`
	MultiplierBps uint64 `json:"multiplier_bps" yaml:"multiplier_bps"`
}

// Config is the singleton staking configuration, created once by an
// administrator and read by every staking operation.
type Config struct {
	MinStake        uint64        `json:"min_stake" yaml:"min_stake"`
	MinLockDuration time.Duration `json:"min_lock_duration" yaml:"min_lock_duration"`
	Thresholds      []Threshold   `json:"thresholds" yaml:"thresholds"`
	Treasury        string        `json:"treasury" yaml:"treasury"`
}

// DefaultConfig returns production defaults: 6-decimal base units.
func DefaultConfig() Config {
	return Config{
		MinStake:        1_000,
		MinLockDuration: 24 * time.Hour,
		Treasury:        "treasury",
		Thresholds: []Threshold{
			{MinStake: 0, Tier: TierNone, MultiplierBps: 10_000},
			{MinStake: 1_000, Tier: TierBronze, MultiplierBps: 11_000},
			{MinStake: 10_000, Tier: TierSilver, MultiplierBps: 12_500},
			{MinStake: 100_000, Tier: TierGold, MultiplierBps: 15_000},
			{MinStake: 1_000_000, Tier: TierPlatinum, MultiplierBps: 20_000},
		},
	}
}

// Validate checks the threshold table is non-empty, starts at zero, and is
// strictly ascending in both stake and tier.
func (c *Config) Validate() error {
	if len(c.Thresholds) == 0 {
		return fmt.Errorf("%w: at least one tier threshold required", domain.ErrValidation)
	}
	if !sort.SliceIsSorted(c.Thresholds, func(i, j int) bool {
		return c.Thresholds[i].MinStake < c.Thresholds[j].MinStake
	}) {
		return fmt.Errorf("%w: tier thresholds must be sorted by min stake", domain.ErrValidation)
	}
	if c.Thresholds[0].MinStake != 0 {
		return fmt.Errorf("%w: lowest threshold must start at zero stake", domain.ErrValidation)
	}
	for i := 1; i < len(c.Thresholds); i++ {
		if c.Thresholds[i].Tier <= c.Thresholds[i-1].Tier {
			return fmt.Errorf("%w: tiers must be strictly ascending", domain.ErrValidation)
		}
		if c.Thresholds[i].MinStake == c.Thresholds[i-1].MinStake {
			return fmt.Errorf("%w: duplicate tier threshold %d", domain.ErrValidation, c.Thresholds[i].MinStake)
		}
	}
	if c.Treasury == "" {
		return fmt.Errorf("%w: treasury target is required", domain.ErrValidation)
	}
	return nil
}

// TierFor returns the highest threshold whose MinStake does not exceed the
// staked amount.
func (c *Config) TierFor(staked uint64) Threshold {
	th := c.Thresholds[0]
	for _, t := range c.Thresholds {
		if staked >= t.MinStake {
			th = t
		}
	}
	return th
}

// Account holds one agent's staked collateral. Never deleted: a zero balance
// is terminal, not absent.
type Account struct {
	Address      string        `json:"address"`
	Owner        string        `json:"owner"`
	Staked       uint64        `json:"staked"`
	LockStart    time.Time     `json:"lock_start"`
	LockDuration time.Duration `json:"lock_duration"`
	Tier         Tier          `json:"tier"`
	Slashed      uint64        `json:"slashed"`
	Version      int           `json:"version"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// LockExpiry returns when the current lock ends.
func (a *Account) LockExpiry() time.Time {
	return a.LockStart.Add(a.LockDuration)
}

// Stake locks additional collateral and recomputes the tier from the
// cumulative staked amount. Restaking restarts the lock clock.
func (a *Account) Stake(cfg *Config, amount uint64, lockDuration time.Duration, now time.Time) error {
	if amount == 0 {
		return fmt.Errorf("%w: stake amount must be positive", domain.ErrValidation)
	}
	if lockDuration < cfg.MinLockDuration {
		return fmt.Errorf("%w: lock duration below minimum %s", domain.ErrValidation, cfg.MinLockDuration)
	}
	total, err := safemath.Add(a.Staked, amount)
	if err != nil {
		return err
	}
	if total < cfg.MinStake {
		return fmt.Errorf("%w: cumulative stake below minimum %d", domain.ErrValidation, cfg.MinStake)
	}
	a.Staked = total
	a.LockStart = now
	a.LockDuration = lockDuration
	a.Tier = cfg.TierFor(total).Tier
	a.UpdatedAt = now
	return nil
}

// Unstake returns the full remaining collateral and resets the tier to the
// lowest band. Rejected before lock expiry.
func (a *Account) Unstake(cfg *Config, now time.Time) (uint64, error) {
	if a.Staked == 0 {
		return 0, fmt.Errorf("%w: nothing staked", domain.ErrState)
	}
	if now.Before(a.LockExpiry()) {
		return 0, fmt.Errorf("%w: lock expires at %s", domain.ErrState, a.LockExpiry().Format(time.RFC3339))
	}
	returned := a.Staked
	a.Staked = 0
	a.Tier = cfg.Thresholds[0].Tier
	a.UpdatedAt = now
	return returned, nil
}

// Slash reduces the staked amount by up to the current balance and
// recomputes the tier. Returns the amount actually slashed, which the
// service routes to the treasury target.
func (a *Account) Slash(cfg *Config, amount uint64, now time.Time) (uint64, error) {
	if amount == 0 {
		return 0, fmt.Errorf("%w: slash amount must be positive", domain.ErrValidation)
	}
	if amount > a.Staked {
		amount = a.Staked
	}
	remaining, err := safemath.Sub(a.Staked, amount)
	if err != nil {
		return 0, err
	}
	total, err := safemath.Add(a.Slashed, amount)
	if err != nil {
		return 0, err
	}
	a.Staked = remaining
	a.Slashed = total
	a.Tier = cfg.TierFor(remaining).Tier
	a.UpdatedAt = now
	return amount, nil
}
