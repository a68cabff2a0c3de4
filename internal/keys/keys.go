// Package keys derives deterministic record addresses from stable inputs.
// Every record slot is addressed by a reproducible key of (purpose, owner),
// so any caller can recompute a record's location without a lookup table.
package keys

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Purpose tags. One record per (owner, purpose) slot.
const (
	PurposeAgent      = "agent"
	PurposeStake      = "stake"
	PurposeReputation = "reputation"
	PurposeEscrow     = "escrow"
)

// Derive returns the hex-encoded BLAKE2b-256 of "purpose:owner".
func Derive(purpose, owner string) string {
	sum := blake2b.Sum256([]byte(purpose + ":" + owner))
	return hex.EncodeToString(sum[:])
}

// DeriveEscrow returns the address for an escrow record, keyed by the
// buyer and a caller-chosen escrow identifier.
func DeriveEscrow(buyer, escrowID string) string {
	return Derive(PurposeEscrow, buyer+":"+escrowID)
}
