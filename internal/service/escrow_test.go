package service

import (
	"errors"
	"testing"
	"time"

	"github.com/Dexploarer/ghostspeak-go/internal/domain"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/agent"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/escrow"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/event"
	"github.com/Dexploarer/ghostspeak-go/internal/keys"
)

func (f *fixture) createEscrow(t *testing.T, id string, amount uint64) *escrow.Record {
	t.Helper()
	rec, err := f.escrow.Create(t.Context(), escrow.CreateRequest{
		ID:       id,
		Buyer:    "alice",
		Provider: "bob",
		Amount:   amount,
		Deadline: f.clock.now().Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func (f *fixture) registerProvider(t *testing.T) {
	t.Helper()
	if _, err := f.registry.Register(t.Context(), agent.RegisterRequest{Owner: "bob", Name: "worker"}); err != nil {
		t.Fatal(err)
	}
}

func TestEscrowHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.registerProvider(t)

	f.createEscrow(t, "job-1", 1_000_000)

	f.clock.advance(100 * time.Millisecond)
	if _, err := f.escrow.SubmitDelivery(ctx, "bob", "alice", "job-1", "ipfs://result"); err != nil {
		t.Fatal(err)
	}
	rec, err := f.escrow.ApproveDelivery(ctx, "alice", "alice", "job-1")
	if err != nil {
		t.Fatal(err)
	}

	if rec.Status != escrow.StatusReleased {
		t.Fatalf("expected released, got %s", rec.Status)
	}
	if rec.ReleasedAmount != 1_000_000 || rec.RefundedAmount != 0 || rec.Held != 0 {
		t.Errorf("balances wrong: released=%d refunded=%d held=%d",
			rec.ReleasedAmount, rec.RefundedAmount, rec.Held)
	}

	a, err := f.registry.Get(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if a.JobsCompleted != 1 || a.TotalEarnings != 1_000_000 {
		t.Errorf("agent counters wrong: jobs=%d earnings=%d", a.JobsCompleted, a.TotalEarnings)
	}

	// base +100, fast +50, amount 1.1x at one reference unit: 150*11000/10000.
	m, err := f.reputation.Get(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if m.Score != 5_165 {
		t.Errorf("expected score 5165, got %d", m.Score)
	}
	if m.TotalSuccess != 1 {
		t.Errorf("expected 1 success, got %d", m.TotalSuccess)
	}
}

func TestSettlementJournaledUnderProviderAgent(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.registerProvider(t)
	f.createEscrow(t, "job-1", 1_000_000)

	if _, err := f.escrow.SubmitDelivery(ctx, "bob", "alice", "job-1", "proof"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.escrow.ApproveDelivery(ctx, "alice", "alice", "job-1"); err != nil {
		t.Fatal(err)
	}

	// The per-agent event feed must surface the settlement, not just the
	// registration.
	events, err := f.admin.Events(ctx, keys.Derive(keys.PurposeAgent, "bob"), 10)
	if err != nil {
		t.Fatal(err)
	}
	var settled bool
	for _, ev := range events {
		if ev.Type == event.TypeEscrowSettled {
			settled = true
		}
	}
	if !settled {
		t.Fatalf("expected escrow.settled in bob's event feed, got %d events", len(events))
	}
}

func TestEscrowFiftyFiftySplit(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.registerProvider(t)

	f.createEscrow(t, "job-1", 1_000_000)
	if _, err := f.escrow.SubmitDelivery(ctx, "bob", "alice", "job-1", "proof"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.escrow.FileDispute(ctx, "alice", "alice", "job-1", "half the work missing"); err != nil {
		t.Fatal(err)
	}

	rec, err := f.escrow.Arbitrate(ctx, "arbitrator", "alice", "job-1", 5_000)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != escrow.StatusPartiallyRefunded {
		t.Fatalf("expected partially_refunded, got %s", rec.Status)
	}
	if rec.ReleasedAmount != 500_000 || rec.RefundedAmount != 500_000 {
		t.Errorf("split wrong: released=%d refunded=%d", rec.ReleasedAmount, rec.RefundedAmount)
	}
	if err := rec.CheckConservation(); err != nil {
		t.Errorf("conservation violated: %v", err)
	}
}

func TestArbitrateFullRefundCountsAsFailure(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.registerProvider(t)

	f.createEscrow(t, "job-1", 1_000_000)
	if _, err := f.escrow.SubmitDelivery(ctx, "bob", "alice", "job-1", "proof"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.escrow.FileDispute(ctx, "alice", "alice", "job-1", "nothing delivered"); err != nil {
		t.Fatal(err)
	}
	rec, err := f.escrow.Arbitrate(ctx, "arbitrator", "alice", "job-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != escrow.StatusRefunded {
		t.Fatalf("expected refunded, got %s", rec.Status)
	}

	m, err := f.reputation.Get(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if m.Score >= 5_000 {
		t.Errorf("failure should lower score, got %d", m.Score)
	}
	if m.TotalFailed != 1 {
		t.Errorf("expected 1 failure, got %d", m.TotalFailed)
	}

	a, err := f.registry.Get(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if a.JobsCompleted != 0 || a.TotalEarnings != 0 {
		t.Errorf("failed job must not bump counters: jobs=%d earnings=%d", a.JobsCompleted, a.TotalEarnings)
	}
}

func TestEscrowRoleEnforcement(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.registerProvider(t)
	f.createEscrow(t, "job-1", 1_000)

	if _, err := f.escrow.SubmitDelivery(ctx, "alice", "alice", "job-1", "proof"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("buyer submitting delivery should fail, got %v", err)
	}
	if _, err := f.escrow.SubmitDelivery(ctx, "bob", "alice", "job-1", "proof"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.escrow.ApproveDelivery(ctx, "bob", "alice", "job-1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("provider approving own delivery should fail, got %v", err)
	}
	if _, err := f.escrow.FileDispute(ctx, "bob", "alice", "job-1", "reason"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("provider filing dispute should fail, got %v", err)
	}
}

func TestEscrowTerminalFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.registerProvider(t)
	f.createEscrow(t, "job-1", 1_000)

	if _, err := f.escrow.SubmitDelivery(ctx, "bob", "alice", "job-1", "proof"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.escrow.ApproveDelivery(ctx, "alice", "alice", "job-1"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.escrow.SubmitDelivery(ctx, "bob", "alice", "job-1", "again"); !errors.Is(err, domain.ErrState) {
		t.Fatalf("terminal escrow must reject delivery, got %v", err)
	}
	if _, err := f.escrow.FileDispute(ctx, "alice", "alice", "job-1", "late dispute"); !errors.Is(err, domain.ErrState) {
		t.Fatalf("terminal escrow must reject dispute, got %v", err)
	}
	if _, err := f.escrow.Arbitrate(ctx, "arbitrator", "alice", "job-1", 5_000); !errors.Is(err, domain.ErrState) {
		t.Fatalf("terminal escrow must reject arbitration, got %v", err)
	}
}

func TestEscrowDuplicateIDRejected(t *testing.T) {
	f := newFixture(t)
	f.registerProvider(t)
	f.createEscrow(t, "job-1", 1_000)

	_, err := f.escrow.Create(t.Context(), escrow.CreateRequest{
		ID:       "job-1",
		Buyer:    "alice",
		Provider: "bob",
		Amount:   2_000,
		Deadline: f.clock.now().Add(time.Hour),
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for reused id, got %v", err)
	}
}

func TestRefundExpired(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.registerProvider(t)
	f.createEscrow(t, "job-1", 1_000)

	if _, err := f.escrow.RefundExpired(ctx, "anyone", "alice", "job-1"); !errors.Is(err, domain.ErrState) {
		t.Fatalf("refund before deadline should fail, got %v", err)
	}

	f.clock.advance(49 * time.Hour)
	rec, err := f.escrow.RefundExpired(ctx, "anyone", "alice", "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != escrow.StatusRefunded {
		t.Fatalf("expected refunded, got %s", rec.Status)
	}
	if rec.RefundedAmount != 1_000 {
		t.Errorf("expected full refund, got %d", rec.RefundedAmount)
	}

	// Expiry assigns no blame: the provider's record is untouched.
	m, err := f.reputation.Get(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if m.Score != 5_000 || m.TotalFailed != 0 {
		t.Errorf("expiry must not touch reputation: score=%d failed=%d", m.Score, m.TotalFailed)
	}
}

func TestArbitrateReleaseBpsBounds(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.registerProvider(t)
	f.createEscrow(t, "job-1", 1_000)

	if _, err := f.escrow.SubmitDelivery(ctx, "bob", "alice", "job-1", "proof"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.escrow.FileDispute(ctx, "alice", "alice", "job-1", "reason"); err != nil {
		t.Fatal(err)
	}
	_, err := f.escrow.Arbitrate(ctx, "arbitrator", "alice", "job-1", 10_001)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation above 10000 bps, got %v", err)
	}
}

func TestStakedProviderEarnsMore(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.registerProvider(t)

	// Gold tier: 1.5x on successful deltas.
	if _, err := f.staking.Stake(ctx, "bob", 100_000, 24*time.Hour); err != nil {
		t.Fatal(err)
	}

	f.createEscrow(t, "job-1", 1_000_000)
	f.clock.advance(100 * time.Millisecond)
	if _, err := f.escrow.SubmitDelivery(ctx, "bob", "alice", "job-1", "proof"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.escrow.ApproveDelivery(ctx, "alice", "alice", "job-1"); err != nil {
		t.Fatal(err)
	}

	// 150 * 1.1 (amount) * 1.5 (gold) = 247 after truncation.
	m, err := f.reputation.Get(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if m.Score != 5_247 {
		t.Errorf("expected score 5247, got %d", m.Score)
	}
}
