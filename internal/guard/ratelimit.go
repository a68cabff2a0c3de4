package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Dexploarer/ghostspeak-go/internal/domain"
)

// Limiter enforces a sliding-window rate limit per (caller, operation class).
// Each key keeps a window-start timestamp and a count: when the window has
// aged out the window resets, otherwise the count increments and the call is
// rejected once it exceeds the ceiling. Bursts within a fresh window are
// fully allowed.
type Limiter struct {
	mu         sync.Mutex
	windows    map[string]*window
	limit      int
	length     time.Duration
	maxWindows int // cap on tracked keys (prevents memory exhaustion)
	now        func() time.Time
}

type window struct {
	start    time.Time
	count    int
	lastSeen time.Time
}

// NewLimiter creates a limiter allowing limit operations per window length
// for each (caller, class) pair.
func NewLimiter(limit int, length time.Duration) *Limiter {
	return &Limiter{
		windows:    make(map[string]*window),
		limit:      limit,
		length:     length,
		maxWindows: 100_000,
		now:        time.Now,
	}
}

// Allow admits or rejects one operation for the caller in the given class.
// Returns ErrRateLimited when the ceiling is exceeded.
func (l *Limiter) Allow(caller, class string) error {
	key := class + ":" + caller

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, exists := l.windows[key]
	if !exists {
		if len(l.windows) >= l.maxWindows {
			return fmt.Errorf("%w: limiter at capacity", domain.ErrRateLimited)
		}
		l.windows[key] = &window{start: now, count: 1, lastSeen: now}
		return nil
	}

	w.lastSeen = now
	if now.Sub(w.start) > l.length {
		w.start = now
		w.count = 1
		return nil
	}

	w.count++
	if w.count > l.limit {
		return fmt.Errorf("%w: %d ops per %s for %s", domain.ErrRateLimited, l.limit, l.length, class)
	}
	return nil
}

// StartCleanup spawns a goroutine that drops idle windows every interval.
// Returns a cancel function that stops the goroutine.
func (l *Limiter) StartCleanup(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.cleanup()
			}
		}
	}()
	return cancel
}

// cleanup removes windows idle for more than two window lengths.
func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-2 * l.length)
	for key, w := range l.windows {
		if w.lastSeen.Before(cutoff) {
			delete(l.windows, key)
		}
	}
}

// Len returns the number of tracked windows (for metrics and testing).
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
