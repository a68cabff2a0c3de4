package service

import (
	"context"

	otelad "github.com/Dexploarer/ghostspeak-go/internal/adapter/otel"
	"github.com/Dexploarer/ghostspeak-go/internal/guard"
)

// Guards bundles the safety guards every mutating operation passes through.
// Checked before business validation: circuit breaker first, then the
// per-caller rate limit; the per-record reentrancy lock is acquired by the
// operation once it knows its target record.
type Guards struct {
	Locks   *guard.Locks
	Limiter *guard.Limiter
	Breaker *guard.Breaker
	metrics *otelad.Metrics
}

// NewGuards creates the guard set from a configured limiter.
func NewGuards(limiter *guard.Limiter) *Guards {
	return &Guards{
		Locks:   guard.NewLocks(),
		Limiter: limiter,
		Breaker: guard.NewBreaker(),
	}
}

// SetMetrics attaches the rejection counter.
func (g *Guards) SetMetrics(m *otelad.Metrics) { g.metrics = m }

// admit runs the pre-business checks for one operation.
func (g *Guards) admit(caller string, class guard.Class) error {
	if err := g.Breaker.Check(class); err != nil {
		g.reject()
		return err
	}
	if err := g.Limiter.Allow(caller, string(class)); err != nil {
		g.reject()
		return err
	}
	return nil
}

func (g *Guards) reject() {
	if g.metrics != nil {
		g.metrics.GuardRejections.Add(context.Background(), 1)
	}
}
