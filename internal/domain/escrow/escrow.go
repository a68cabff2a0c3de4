// Package escrow implements the payment custody state machine.
//
// Lifecycle:
//
//	created → delivery_submitted → {released | disputed}
//	disputed → {released | refunded | partially_refunded}   (arbitration, one-shot)
//	created | delivery_submitted → refunded                 (deadline expiry)
//
// Every transition validates fully before mutating, so a rejected operation
// leaves the record unchanged. The held balance always equals the original
// amount minus released and refunded portions.
package escrow

import (
	"fmt"
	"time"

	"github.com/Dexploarer/ghostspeak-go/internal/domain"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/safemath"
)

// Status is the escrow lifecycle state.
type Status string

const (
	StatusCreated           Status = "created"
	StatusDeliverySubmitted Status = "delivery_submitted"
	StatusDisputed          Status = "disputed"
	StatusReleased          Status = "released"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// Terminal reports whether no further transitions are legal.
func (s Status) Terminal() bool {
	switch s {
	case StatusReleased, StatusRefunded, StatusPartiallyRefunded:
		return true
	}
	return false
}

// SplitDenominator is the arbitration split unit: releaseBps/10_000 of the
// held amount goes to the provider.
const SplitDenominator = 10_000

const (
	MaxIDLen     = 64
	MaxProofLen  = 256
	MaxReasonLen = 512
	MaxHashLen   = 128
)

// Record is a custody container binding a buyer's funds to a specific job
// until release, refund, or split.
type Record struct {
	Address         string    `json:"address"`
	ID              string    `json:"id"`
	Buyer           string    `json:"buyer"`
	Provider        string    `json:"provider"`
	Amount          uint64    `json:"amount"`
	Held            uint64    `json:"held"`
	ReleasedAmount  uint64    `json:"released_amount"`
	RefundedAmount  uint64    `json:"refunded_amount"`
	DescriptionHash string    `json:"description_hash"`
	Deadline        time.Time `json:"deadline"`
	Status          Status    `json:"status"`
	DeliveryProof   string    `json:"delivery_proof,omitempty"`
	DeliveredAt     time.Time `json:"delivered_at,omitzero"`
	DisputeReason   string    `json:"dispute_reason,omitempty"`
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Settlement carries the outcome of a payment-completing transition to the
// reputation engine. Success means any funds reached the provider.
type Settlement struct {
	EscrowID     string        `json:"escrow_id"`
	Agent        string        `json:"agent"`
	Buyer        string        `json:"buyer"`
	Success      bool          `json:"success"`
	Released     uint64        `json:"released"`
	Refunded     uint64        `json:"refunded"`
	ResponseTime time.Duration `json:"response_time"`
}

// CreateRequest is the buyer's input for opening an escrow.
type CreateRequest struct {
	ID              string    `json:"id"`
	Buyer           string    `json:"buyer"`
	Provider        string    `json:"provider"`
	Amount          uint64    `json:"amount"`
	DescriptionHash string    `json:"description_hash"`
	Deadline        time.Time `json:"deadline"`
}

// Validate checks the request before any funds move.
func (r *CreateRequest) Validate(now time.Time) error {
	if r.ID == "" || len(r.ID) > MaxIDLen {
		return fmt.Errorf("%w: escrow id must be 1-%d chars", domain.ErrValidation, MaxIDLen)
	}
	if r.Buyer == "" {
		return fmt.Errorf("%w: buyer is required", domain.ErrValidation)
	}
	if r.Provider == "" {
		return fmt.Errorf("%w: provider is required", domain.ErrValidation)
	}
	if r.Provider == r.Buyer {
		return fmt.Errorf("%w: buyer and provider must differ", domain.ErrValidation)
	}
	if r.Amount == 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if len(r.DescriptionHash) > MaxHashLen {
		return fmt.Errorf("%w: description hash too long", domain.ErrValidation)
	}
	if !r.Deadline.After(now) {
		return fmt.Errorf("%w: deadline must be in the future", domain.ErrValidation)
	}
	return nil
}

// New creates a record in the created state with the full amount in custody.
func New(r CreateRequest, address string, now time.Time) (*Record, error) {
	if err := r.Validate(now); err != nil {
		return nil, err
	}
	return &Record{
		Address:         address,
		ID:              r.ID,
		Buyer:           r.Buyer,
		Provider:        r.Provider,
		Amount:          r.Amount,
		Held:            r.Amount,
		DescriptionHash: r.DescriptionHash,
		Deadline:        r.Deadline,
		Status:          StatusCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// SubmitDelivery records the provider's proof of work. Legal only from
// created; moves no funds.
func (e *Record) SubmitDelivery(caller, proof string, now time.Time) error {
	if caller != e.Provider {
		return fmt.Errorf("%w: only the provider may submit delivery", domain.ErrUnauthorized)
	}
	if e.Status != StatusCreated {
		return fmt.Errorf("%w: cannot submit delivery from %s", domain.ErrState, e.Status)
	}
	if proof == "" || len(proof) > MaxProofLen {
		return fmt.Errorf("%w: delivery proof must be 1-%d chars", domain.ErrValidation, MaxProofLen)
	}
	e.Status = StatusDeliverySubmitted
	e.DeliveryProof = proof
	e.DeliveredAt = now
	e.UpdatedAt = now
	return nil
}

// ApproveDelivery releases the full held amount to the provider.
func (e *Record) ApproveDelivery(caller string, now time.Time) (Settlement, error) {
	if caller != e.Buyer {
		return Settlement{}, fmt.Errorf("%w: only the buyer may approve delivery", domain.ErrUnauthorized)
	}
	if e.Status != StatusDeliverySubmitted {
		return Settlement{}, fmt.Errorf("%w: cannot approve from %s", domain.ErrState, e.Status)
	}
	return e.settle(e.Held, StatusReleased, now)
}

// FileDispute freezes buyer/provider transitions until arbitration.
func (e *Record) FileDispute(caller, reason string, now time.Time) error {
	if caller != e.Buyer {
		return fmt.Errorf("%w: only the buyer may file a dispute", domain.ErrUnauthorized)
	}
	if e.Status != StatusDeliverySubmitted {
		return fmt.Errorf("%w: cannot dispute from %s", domain.ErrState, e.Status)
	}
	if reason == "" || len(reason) > MaxReasonLen {
		return fmt.Errorf("%w: dispute reason must be 1-%d chars", domain.ErrValidation, MaxReasonLen)
	}
	e.Status = StatusDisputed
	e.DisputeReason = reason
	e.UpdatedAt = now
	return nil
}

// Arbitrate resolves a disputed escrow. releaseBps/10_000 of the held amount
// goes to the provider; integer truncation leaves the remainder with the
// buyer. One-shot: the record is terminal afterwards. Caller authorization
// (arbitrator role) is enforced by the service layer.
func (e *Record) Arbitrate(releaseBps uint64, now time.Time) (Settlement, error) {
	if e.Status != StatusDisputed {
		return Settlement{}, fmt.Errorf("%w: cannot arbitrate from %s", domain.ErrState, e.Status)
	}
	if releaseBps > SplitDenominator {
		return Settlement{}, fmt.Errorf("%w: release fraction above %d bps", domain.ErrValidation, SplitDenominator)
	}
	release, err := safemath.MulDiv(e.Held, releaseBps, SplitDenominator)
	if err != nil {
		return Settlement{}, err
	}
	var final Status
	switch {
	case release == e.Held:
		final = StatusReleased
	case release == 0:
		final = StatusRefunded
	default:
		final = StatusPartiallyRefunded
	}
	return e.settle(release, final, now)
}

// RefundExpired refunds the buyer in full once the deadline has passed.
// Callable by anyone; legal only from created or delivery_submitted.
func (e *Record) RefundExpired(now time.Time) error {
	if e.Status != StatusCreated && e.Status != StatusDeliverySubmitted {
		return fmt.Errorf("%w: cannot expire from %s", domain.ErrState, e.Status)
	}
	if !now.After(e.Deadline) {
		return fmt.Errorf("%w: deadline has not passed", domain.ErrState)
	}
	_, err := e.settle(0, StatusRefunded, now)
	return err
}

// settle moves release to the provider and the rest of the held balance back
// to the buyer, then marks the record terminal. All arithmetic is checked
// before any field is written.
func (e *Record) settle(release uint64, final Status, now time.Time) (Settlement, error) {
	if release > e.Held {
		return Settlement{}, fmt.Errorf("%w: release %d exceeds held %d", domain.ErrState, release, e.Held)
	}
	refund, err := safemath.Sub(e.Held, release)
	if err != nil {
		return Settlement{}, err
	}
	released, err := safemath.Add(e.ReleasedAmount, release)
	if err != nil {
		return Settlement{}, err
	}
	refunded, err := safemath.Add(e.RefundedAmount, refund)
	if err != nil {
		return Settlement{}, err
	}

	e.Held = 0
	e.ReleasedAmount = released
	e.RefundedAmount = refunded
	e.Status = final
	e.UpdatedAt = now

	responseTime := time.Duration(0)
	if !e.DeliveredAt.IsZero() {
		responseTime = e.DeliveredAt.Sub(e.CreatedAt)
	}
	return Settlement{
		EscrowID:     e.ID,
		Agent:        e.Provider,
		Buyer:        e.Buyer,
		Success:      release > 0,
		Released:     release,
		Refunded:     refund,
		ResponseTime: responseTime,
	}, nil
}

// CheckConservation verifies released + refunded never exceeds the original
// amount, with equality once terminal.
func (e *Record) CheckConservation() error {
	moved, err := safemath.Add(e.ReleasedAmount, e.RefundedAmount)
	if err != nil {
		return err
	}
	if moved > e.Amount {
		return fmt.Errorf("%w: moved %d exceeds original %d", domain.ErrState, moved, e.Amount)
	}
	if e.Status.Terminal() && moved != e.Amount {
		return fmt.Errorf("%w: terminal escrow moved %d of %d", domain.ErrState, moved, e.Amount)
	}
	return nil
}
