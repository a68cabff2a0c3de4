// Package payment defines the x402 micropayment attestation consumed by the
// reputation engine. Records are events, not entities: only their identifier
// is persisted (for idempotency) beyond the score update they produce.
package payment

import (
	"fmt"
	"time"

	"github.com/Dexploarer/ghostspeak-go/internal/domain"
)

const (
	MaxIDLen       = 128
	MaxResourceLen = 256
)

// Record is one x402 payment attestation from the external feed.
type Record struct {
	ID           string        `json:"id"`
	Payer        string        `json:"payer"`
	Merchant     string        `json:"merchant"`
	Amount       uint64        `json:"amount"`
	Success      bool          `json:"success"`
	ResponseTime time.Duration `json:"response_time"`
	Resource     string        `json:"resource,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Validate checks the attestation before ingestion. The duplicate-identifier
// check happens at the store boundary, not here.
func (r *Record) Validate() error {
	if r.ID == "" || len(r.ID) > MaxIDLen {
		return fmt.Errorf("%w: payment id must be 1-%d chars", domain.ErrValidation, MaxIDLen)
	}
	if r.Payer == "" {
		return fmt.Errorf("%w: payer is required", domain.ErrValidation)
	}
	if r.Merchant == "" {
		return fmt.Errorf("%w: merchant is required", domain.ErrValidation)
	}
	if r.Amount == 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if r.ResponseTime < 0 {
		return fmt.Errorf("%w: response time cannot be negative", domain.ErrValidation)
	}
	if len(r.Resource) > MaxResourceLen {
		return fmt.Errorf("%w: resource identifier too long", domain.ErrValidation)
	}
	return nil
}
