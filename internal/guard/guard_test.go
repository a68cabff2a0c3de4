package guard

import (
	"errors"
	"testing"
	"time"

	"github.com/Dexploarer/ghostspeak-go/internal/domain"
)

func TestLocksRejectNestedAcquire(t *testing.T) {
	l := NewLocks()

	release, err := l.Acquire("record-1")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := l.Acquire("record-1"); !errors.Is(err, domain.ErrReentrancy) {
		t.Fatalf("expected ErrReentrancy, got %v", err)
	}

	release()
	if l.Held("record-1") {
		t.Fatal("lock not released")
	}
	if _, err := l.Acquire("record-1"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestLocksIndependentRecords(t *testing.T) {
	l := NewLocks()
	if _, err := l.Acquire("record-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Acquire("record-2"); err != nil {
		t.Fatalf("unrelated record blocked: %v", err)
	}
}

func TestLocksDoubleReleaseNoop(t *testing.T) {
	l := NewLocks()
	release, _ := l.Acquire("record-1")
	release()
	release() // must not panic or unlock someone else's future hold

	r2, err := l.Acquire("record-1")
	if err != nil {
		t.Fatal(err)
	}
	release()
	if !l.Held("record-1") {
		t.Fatal("stale release cleared a fresh hold")
	}
	r2()
}

func TestLimiterWindowCeiling(t *testing.T) {
	l := NewLimiter(60, time.Minute)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	for i := range 60 {
		if err := l.Allow("caller-1", "payments"); err != nil {
			t.Fatalf("op %d rejected: %v", i+1, err)
		}
	}
	if err := l.Allow("caller-1", "payments"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("61st op: expected ErrRateLimited, got %v", err)
	}

	// Window rolls over: next op succeeds.
	now = now.Add(61 * time.Second)
	if err := l.Allow("caller-1", "payments"); err != nil {
		t.Fatalf("op after window rollover: %v", err)
	}
}

func TestLimiterIndependentCallersAndClasses(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	if err := l.Allow("a", "escrow"); err != nil {
		t.Fatal(err)
	}
	if err := l.Allow("a", "escrow"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Allow("b", "escrow"); err != nil {
		t.Fatalf("caller b blocked by caller a: %v", err)
	}
	if err := l.Allow("a", "staking"); err != nil {
		t.Fatalf("class staking blocked by class escrow: %v", err)
	}
}

func TestLimiterCleanup(t *testing.T) {
	l := NewLimiter(10, time.Minute)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	_ = l.Allow("a", "escrow")
	_ = l.Allow("b", "escrow")
	if l.Len() != 2 {
		t.Fatalf("expected 2 windows, got %d", l.Len())
	}

	now = now.Add(5 * time.Minute)
	l.cleanup()
	if l.Len() != 0 {
		t.Fatalf("expected idle windows dropped, got %d", l.Len())
	}
}

func TestBreakerPauseClass(t *testing.T) {
	b := NewBreaker()
	if err := b.Check(ClassEscrow); err != nil {
		t.Fatalf("fresh breaker should be live: %v", err)
	}

	if err := b.Pause(ClassEscrow); err != nil {
		t.Fatal(err)
	}
	if err := b.Check(ClassEscrow); !errors.Is(err, domain.ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if err := b.Check(ClassStaking); err != nil {
		t.Fatalf("staking should stay live: %v", err)
	}

	if err := b.Unpause(ClassEscrow); err != nil {
		t.Fatal(err)
	}
	if err := b.Check(ClassEscrow); err != nil {
		t.Fatalf("expected live after unpause: %v", err)
	}
}

func TestBreakerGlobalPausesEverything(t *testing.T) {
	b := NewBreaker()
	_ = b.Pause(ClassGlobal)
	for class := range ValidClasses {
		if err := b.Check(class); !errors.Is(err, domain.ErrPaused) {
			t.Errorf("class %s: expected ErrPaused, got %v", class, err)
		}
	}
}

func TestBreakerUnknownClass(t *testing.T) {
	b := NewBreaker()
	if err := b.Pause("bogus"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestBreakerRestore(t *testing.T) {
	b := NewBreaker()
	b.Restore(map[Class]bool{ClassPayments: true, "bogus": true})
	if err := b.Check(ClassPayments); !errors.Is(err, domain.ErrPaused) {
		t.Fatalf("expected restored pause, got %v", err)
	}
	if len(b.State()) != 1 {
		t.Fatalf("invalid class restored: %v", b.State())
	}
}
