package guard

import (
	"fmt"
	"sync"

	"github.com/Dexploarer/ghostspeak-go/internal/domain"
)

// Class names an instruction class the breaker can pause independently.
// ClassGlobal pauses everything.
type Class string

const (
	ClassGlobal   Class = "global"
	ClassRegistry Class = "registry"
	ClassStaking  Class = "staking"
	ClassEscrow   Class = "escrow"
	ClassPayments Class = "payments"
)

// ValidClasses is the set of pausable instruction classes.
var ValidClasses = map[Class]bool{
	ClassGlobal:   true,
	ClassRegistry: true,
	ClassStaking:  true,
	ClassEscrow:   true,
	ClassPayments: true,
}

// Breaker is a manually toggled kill switch per instruction class. A set
// flag fails all matching operations fast, regardless of per-call validity.
// Clearing requires an explicit unpause; flags never expire on their own.
type Breaker struct {
	mu     sync.RWMutex
	paused map[Class]bool
}

// NewBreaker creates a breaker with all classes live.
func NewBreaker() *Breaker {
	return &Breaker{paused: make(map[Class]bool)}
}

// Check fails with ErrPaused when the class or the global flag is set.
func (b *Breaker) Check(class Class) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.paused[ClassGlobal] {
		return fmt.Errorf("%w: all operations", domain.ErrPaused)
	}
	if b.paused[class] {
		return fmt.Errorf("%w: %s operations", domain.ErrPaused, class)
	}
	return nil
}

// Pause sets the flag for the class.
func (b *Breaker) Pause(class Class) error {
	if !ValidClasses[class] {
		return fmt.Errorf("%w: unknown instruction class %q", domain.ErrValidation, class)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused[class] = true
	return nil
}

// Unpause clears the flag for the class.
func (b *Breaker) Unpause(class Class) error {
	if !ValidClasses[class] {
		return fmt.Errorf("%w: unknown instruction class %q", domain.ErrValidation, class)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.paused, class)
	return nil
}

// State returns a snapshot of the paused flags.
func (b *Breaker) State() map[Class]bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[Class]bool, len(b.paused))
	for c, p := range b.paused {
		out[c] = p
	}
	return out
}

// Restore sets the paused flags from a persisted snapshot.
func (b *Breaker) Restore(state map[Class]bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c, p := range state {
		if p && ValidClasses[c] {
			b.paused[c] = true
		}
	}
}
