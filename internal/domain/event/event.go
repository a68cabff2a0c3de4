// Package event defines the immutable ledger events appended to the
// settlement journal and published for off-chain indexers.
package event

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of ledger event.
type Type string

const (
	TypeAgentRegistered   Type = "agent.registered"
	TypeAgentUpdated      Type = "agent.updated"
	TypeAgentDeactivated  Type = "agent.deactivated"
	TypeStakeDeposited    Type = "stake.deposited"
	TypeStakeWithdrawn    Type = "stake.withdrawn"
	TypeStakeSlashed      Type = "stake.slashed"
	TypeEscrowCreated     Type = "escrow.created"
	TypeEscrowDelivered   Type = "escrow.delivered"
	TypeEscrowDisputed    Type = "escrow.disputed"
	TypeEscrowSettled     Type = "escrow.settled"
	TypePaymentRecorded   Type = "payment.recorded"
	TypeReputationChanged Type = "reputation.changed"
	TypeBreakerPaused     Type = "breaker.paused"
	TypeBreakerUnpaused   Type = "breaker.unpaused"
)

// LedgerEvent is a single immutable entry in the settlement journal.
type LedgerEvent struct {
	ID        string          `json:"id"`
	Agent     string          `json:"agent"`
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
