package reputation

import (
	"testing"
	"time"
)

func params() *Params {
	p := DefaultParams()
	return &p
}

func TestNewMetricsStartsAtMidpoint(t *testing.T) {
	m := NewMetrics("addr", "agent", params(), time.Now())
	if m.Score != 5_000 {
		t.Fatalf("expected midpoint 5000, got %d", m.Score)
	}
	if m.Band != BandGold {
		t.Fatalf("expected gold band at 5000, got %s", m.Band)
	}
}

func TestApplySuccessBaseDelta(t *testing.T) {
	p := params()
	m := NewMetrics("addr", "agent", p, time.Now())
	// Slow enough for no speed bonus, small enough for no amount weighting.
	m.Apply(Event{Agent: "agent", Success: true, Amount: 1, ResponseTime: 5 * time.Second}, 10_000, p, time.Now())
	if m.Score != 5_100 {
		t.Fatalf("expected 5100, got %d", m.Score)
	}
	if m.TotalSuccess != 1 || m.TotalFailed != 0 {
		t.Fatalf("counters wrong: %d/%d", m.TotalSuccess, m.TotalFailed)
	}
}

func TestApplyFailure(t *testing.T) {
	p := params()
	m := NewMetrics("addr", "agent", p, time.Now())
	m.Apply(Event{Agent: "agent", Success: false, ResponseTime: 5 * time.Second}, 10_000, p, time.Now())
	if m.Score != 4_800 {
		t.Fatalf("expected 4800, got %d", m.Score)
	}
}

func TestSpeedAdjustments(t *testing.T) {
	cases := []struct {
		rt   time.Duration
		want int64
	}{
		{400 * time.Millisecond, 5_000 + 150}, // +100 base +50 fast
		{1500 * time.Millisecond, 5_000 + 125},
		{5 * time.Second, 5_000 + 100},
		{11 * time.Second, 5_000 + 75}, // +100 −25 slow
	}
	for _, tc := range cases {
		p := params()
		m := NewMetrics("addr", "agent", p, time.Now())
		m.Apply(Event{Success: true, Amount: 1, ResponseTime: tc.rt}, 10_000, p, time.Now())
		if m.Score != tc.want {
			t.Errorf("rt %s: expected %d, got %d", tc.rt, tc.want, m.Score)
		}
	}
}

func TestAmountWeightingSuccessOnly(t *testing.T) {
	p := params()

	// 5 reference units → 1.5x on the +100 base.
	m := NewMetrics("addr", "agent", p, time.Now())
	m.Apply(Event{Success: true, Amount: 5_000_000, ResponseTime: 5 * time.Second}, 10_000, p, time.Now())
	if m.Score != 5_150 {
		t.Fatalf("expected 5150, got %d", m.Score)
	}

	// Failures are never amount-weighted.
	m2 := NewMetrics("addr", "agent", p, time.Now())
	m2.Apply(Event{Success: false, Amount: 5_000_000, ResponseTime: 5 * time.Second}, 10_000, p, time.Now())
	if m2.Score != 4_800 {
		t.Fatalf("expected unweighted -200, got %d", m2.Score)
	}
}

func TestAmountMultiplierCapped(t *testing.T) {
	p := params()
	m := NewMetrics("addr", "agent", p, time.Now())
	// 1000 reference units would be 101x uncapped; cap is 2.0x.
	m.Apply(Event{Success: true, Amount: 1_000_000_000, ResponseTime: 5 * time.Second}, 10_000, p, time.Now())
	if m.Score != 5_200 {
		t.Fatalf("expected capped 2x → 5200, got %d", m.Score)
	}
}

func TestStakeMultiplierScalesSuccess(t *testing.T) {
	p := params()
	m := NewMetrics("addr", "agent", p, time.Now())
	// Platinum stake tier: 2.0x on the +100 base.
	m.Apply(Event{Success: true, Amount: 1, ResponseTime: 5 * time.Second}, 20_000, p, time.Now())
	if m.Score != 5_200 {
		t.Fatalf("expected 5200, got %d", m.Score)
	}
}

func TestScoreBounded(t *testing.T) {
	p := params()

	m := NewMetrics("addr", "agent", p, time.Now())
	for range 100 {
		m.Apply(Event{Success: false, ResponseTime: 20 * time.Second}, 10_000, p, time.Now())
	}
	if m.Score != p.Floor {
		t.Fatalf("expected floor %d, got %d", p.Floor, m.Score)
	}

	for range 200 {
		m.Apply(Event{Success: true, Amount: 1_000_000_000, ResponseTime: 100 * time.Millisecond}, 20_000, p, time.Now())
	}
	if m.Score != p.Ceiling {
		t.Fatalf("expected ceiling %d, got %d", p.Ceiling, m.Score)
	}
}

func TestBandSteps(t *testing.T) {
	cases := []struct {
		score int64
		want  Band
	}{
		{0, BandNewcomer},
		{999, BandNewcomer},
		{1_000, BandBronze},
		{2_500, BandSilver},
		{5_000, BandGold},
		{7_000, BandPlatinum},
		{9_000, BandDiamond},
		{10_000, BandDiamond},
	}
	for _, tc := range cases {
		if got := BandFor(tc.score); got != tc.want {
			t.Errorf("BandFor(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestBandChangeReported(t *testing.T) {
	p := params()
	m := NewMetrics("addr", "agent", p, time.Now())
	m.Score = 6_950
	m.Band = BandFor(m.Score)
	changed := m.Apply(Event{Success: true, Amount: 1, ResponseTime: 5 * time.Second}, 10_000, p, time.Now())
	if !changed || m.Band != BandPlatinum {
		t.Fatalf("expected band change to platinum, got changed=%v band=%s", changed, m.Band)
	}
}

func TestRollingAverageResponseTime(t *testing.T) {
	p := params()
	m := NewMetrics("addr", "agent", p, time.Now())
	m.Apply(Event{Success: true, ResponseTime: 100 * time.Millisecond}, 10_000, p, time.Now())
	m.Apply(Event{Success: true, ResponseTime: 300 * time.Millisecond}, 10_000, p, time.Now())
	if m.AvgResponseMs != 200 {
		t.Fatalf("expected avg 200ms, got %d", m.AvgResponseMs)
	}
}
