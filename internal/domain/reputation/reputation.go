// Package reputation maintains the bounded per-agent trust score.
//
// Scores live in [0, 10_000] and move on every settlement or payment event:
// a base delta for success/failure, a speed adjustment from response time,
// and multiplicative weighting by payment size and staked-collateral tier.
// All score math is integer basis points; no floats touch the score.
package reputation

import (
	"time"
)

// Band is the label derived from fixed score bands.
type Band string

const (
	BandNewcomer Band = "newcomer"
	BandBronze   Band = "bronze"
	BandSilver   Band = "silver"
	BandGold     Band = "gold"
	BandPlatinum Band = "platinum"
	BandDiamond  Band = "diamond"
)

// bpsUnit is the basis-point denominator for multiplier math.
const bpsUnit = 10_000

// Params holds the scoring weights. Defaults match production; overridable
// from config for test networks.
type Params struct {
	Floor    int64 `yaml:"floor"`
	Ceiling  int64 `yaml:"ceiling"`
	Midpoint int64 `yaml:"midpoint"`

	SuccessDelta int64 `yaml:"success_delta"`
	FailureDelta int64 `yaml:"failure_delta"`

	FastThreshold  time.Duration `yaml:"fast_threshold"`
	QuickThreshold time.Duration `yaml:"quick_threshold"`
	SlowThreshold  time.Duration `yaml:"slow_threshold"`
	FastBonus      int64         `yaml:"fast_bonus"`
	QuickBonus     int64         `yaml:"quick_bonus"`
	SlowPenalty    int64         `yaml:"slow_penalty"`

	// ReferenceUnit converts base units to reference units for amount
	// weighting (default: 1e6, a 6-decimal token). Division truncates, so
	// rounding can only under-reward.
	ReferenceUnit uint64 `yaml:"reference_unit"`
	// AmountStepBps is the multiplier gain per reference unit.
	AmountStepBps uint64 `yaml:"amount_step_bps"`
	// MaxAmountBps caps the amount multiplier (default 2.0x).
	MaxAmountBps uint64 `yaml:"max_amount_bps"`
}

// DefaultParams returns the production scoring weights.
func DefaultParams() Params {
	return Params{
		Floor:          0,
		Ceiling:        10_000,
		Midpoint:       5_000,
		SuccessDelta:   100,
		FailureDelta:   -200,
		FastThreshold:  500 * time.Millisecond,
		QuickThreshold: 2000 * time.Millisecond,
		SlowThreshold:  10_000 * time.Millisecond,
		FastBonus:      50,
		QuickBonus:     25,
		SlowPenalty:    -25,
		ReferenceUnit:  1_000_000,
		AmountStepBps:  1_000,
		MaxAmountBps:   20_000,
	}
}

// Event is a settlement or payment outcome consumed by the engine.
type Event struct {
	Agent        string        `json:"agent"`
	Success      bool          `json:"success"`
	Amount       uint64        `json:"amount"`
	ResponseTime time.Duration `json:"response_time"`
}

// Metrics is the per-agent reputation record, created at score midpoint
// alongside the agent.
type Metrics struct {
	Address       string    `json:"address"`
	Agent         string    `json:"agent"`
	Score         int64     `json:"score"`
	Band          Band      `json:"band"`
	TotalSuccess  uint64    `json:"total_success"`
	TotalFailed   uint64    `json:"total_failed"`
	AvgResponseMs int64     `json:"avg_response_ms"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewMetrics creates a midpoint-scored record for a freshly registered agent.
func NewMetrics(address, agent string, p *Params, now time.Time) *Metrics {
	return &Metrics{
		Address:   address,
		Agent:     agent,
		Score:     p.Midpoint,
		Band:      BandFor(p.Midpoint),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// BandFor is a step function over fixed score bands.
func BandFor(score int64) Band {
	switch {
	case score < 1_000:
		return BandNewcomer
	case score < 2_500:
		return BandBronze
	case score < 5_000:
		return BandSilver
	case score < 7_000:
		return BandGold
	case score < 9_000:
		return BandPlatinum
	default:
		return BandDiamond
	}
}

// Apply folds one event into the metrics and reports whether the band
// changed. stakeBps is the trust multiplier from the staking tier
// (10_000 = 1.0x); like the amount multiplier it scales successful deltas
// only, so retried failures cannot inflate rewards.
func (m *Metrics) Apply(ev Event, stakeBps uint64, p *Params, now time.Time) (bandChanged bool) {
	delta := p.FailureDelta
	if ev.Success {
		delta = p.SuccessDelta
	}
	delta += speedAdjustment(ev.ResponseTime, p)

	if ev.Success && delta > 0 {
		delta = delta * int64(amountMultiplierBps(ev.Amount, p)) / bpsUnit
		if stakeBps > 0 {
			delta = delta * int64(stakeBps) / bpsUnit
		}
	}

	score := m.Score + delta
	if score < p.Floor {
		score = p.Floor
	}
	if score > p.Ceiling {
		score = p.Ceiling
	}

	oldBand := m.Band
	m.Score = score
	m.Band = BandFor(score)

	events := int64(m.TotalSuccess + m.TotalFailed)
	rtMs := ev.ResponseTime.Milliseconds()
	m.AvgResponseMs = (m.AvgResponseMs*events + rtMs) / (events + 1)

	if ev.Success {
		m.TotalSuccess++
	} else {
		m.TotalFailed++
	}
	m.UpdatedAt = now
	return m.Band != oldBand
}

func speedAdjustment(rt time.Duration, p *Params) int64 {
	switch {
	case rt < p.FastThreshold:
		return p.FastBonus
	case rt < p.QuickThreshold:
		return p.QuickBonus
	case rt > p.SlowThreshold:
		return p.SlowPenalty
	default:
		return 0
	}
}

// amountMultiplierBps returns min(MaxAmountBps, 10_000 + refUnits*step).
// Amounts below one reference unit contribute nothing; truncation biases
// the multiplier down, never up.
func amountMultiplierBps(amount uint64, p *Params) uint64 {
	if p.ReferenceUnit == 0 {
		return bpsUnit
	}
	refUnits := amount / p.ReferenceUnit
	if refUnits > (p.MaxAmountBps-bpsUnit)/p.AmountStepBps {
		return p.MaxAmountBps
	}
	mult := bpsUnit + refUnits*p.AmountStepBps
	if mult > p.MaxAmountBps {
		return p.MaxAmountBps
	}
	return mult
}
