package service

import (
	"sync"
	"testing"
	"time"

	"github.com/Dexploarer/ghostspeak-go/internal/adapter/memstore"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/reputation"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/staking"
	"github.com/Dexploarer/ghostspeak-go/internal/guard"
)

// fakeClock is an adjustable time source shared by every service in a fixture.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store      *memstore.Store
	guards     *Guards
	clock      *fakeClock
	registry   *RegistryService
	staking    *StakingService
	reputation *ReputationService
	escrow     *EscrowService
	admin      *AdminService
}

// newFixture wires the full service stack against the in-memory store with a
// limiter generous enough to stay out of the way unless a test lowers it.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLimit(t, 10_000)
}

func newFixtureWithLimit(t *testing.T, rateLimit int) *fixture {
	t.Helper()

	store := memstore.New()
	guards := NewGuards(guard.NewLimiter(rateLimit, time.Minute))
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	params := reputation.DefaultParams()

	registry := NewRegistryService(store, guards, &params)
	registry.now = clock.now
	registry.SetEventStore(store)

	stakingSvc := NewStakingService(store, guards)
	stakingSvc.now = clock.now
	stakingSvc.SetEventStore(store)
	if err := stakingSvc.EnsureConfig(t.Context(), staking.DefaultConfig()); err != nil {
		t.Fatalf("seed staking config: %v", err)
	}

	repSvc := NewReputationService(store, guards, stakingSvc, &params)
	repSvc.now = clock.now
	repSvc.SetEventStore(store)

	escrowSvc := NewEscrowService(store, guards, repSvc)
	escrowSvc.now = clock.now
	escrowSvc.SetEventStore(store)

	admin := NewAdminService(store, guards)
	admin.now = clock.now
	admin.SetEventStore(store)

	return &fixture{
		store:      store,
		guards:     guards,
		clock:      clock,
		registry:   registry,
		staking:    stakingSvc,
		reputation: repSvc,
		escrow:     escrowSvc,
		admin:      admin,
	}
}
