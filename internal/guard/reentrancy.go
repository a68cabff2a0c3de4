// Package guard provides the engine's safety guards: per-record reentrancy
// locks, a per-caller sliding-window rate limiter, and a manually latched
// circuit breaker. Guards are checked before business validation and reject
// rather than queue.
package guard

import (
	"fmt"
	"sync"

	"github.com/Dexploarer/ghostspeak-go/internal/domain"
)

// Locks tracks records that are mid-mutation. A nested call into a record
// whose flag is set fails with ErrReentrancy.
type Locks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocks creates an empty lock set.
func NewLocks() *Locks {
	return &Locks{held: make(map[string]struct{})}
}

// Acquire sets the in-progress flag for the record key and returns a release
// function. Callers must defer the release so every exit path clears the
// flag; releasing twice is a no-op.
func (l *Locks) Acquire(key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, inProgress := l.held[key]; inProgress {
		return nil, fmt.Errorf("%w: record %s is mid-mutation", domain.ErrReentrancy, key)
	}
	l.held[key] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}
	return release, nil
}

// Held reports whether the record key is currently locked (for tests).
func (l *Locks) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}
