// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: record was modified by another request")

// ErrValidation indicates malformed input, such as an out-of-range amount
// or duration. Wrap with context: fmt.Errorf("%w: amount must be positive", ErrValidation).
var ErrValidation = errors.New("validation failed")

// ErrUnauthorized indicates the caller is not permitted to perform the
// attempted transition on the target record.
var ErrUnauthorized = errors.New("unauthorized")

// ErrState indicates the operation is illegal from the record's current
// status (e.g. approving a disputed escrow).
var ErrState = errors.New("illegal state transition")

// ErrArithmetic indicates an integer overflow or underflow was caught
// before any mutation was applied.
var ErrArithmetic = errors.New("arithmetic overflow")

// ErrRateLimited indicates the caller exceeded its operation window.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrReentrancy indicates a nested call re-entered a record that is
// already mid-mutation.
var ErrReentrancy = errors.New("reentrant call rejected")

// ErrPaused indicates the circuit breaker is active for the operation class.
var ErrPaused = errors.New("operations paused")

// ErrDuplicateEvent indicates a payment event identifier was already
// processed (idempotency violation).
var ErrDuplicateEvent = errors.New("duplicate payment event")
