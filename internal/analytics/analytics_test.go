package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/arenahq/bot-arena/internal/models"
)

func TestWindowStartKnownRanges(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	cases := map[string]time.Time{
		"24h": now.Add(-24 * time.Hour),
		"7d":  now.Add(-7 * 24 * time.Hour),
		"30d": now.Add(-30 * 24 * time.Hour),
	}
	for tr, want := range cases {
		if got := WindowStart(tr, now); !got.Equal(want) {
			t.Errorf("WindowStart(%q) = %v, want %v", tr, got, want)
		}
	}
}

func TestWindowStartUnknownFallsBackToZero(t *testing.T) {
	now := time.Now()
	if got := WindowStart("all", now); !got.IsZero() {
		t.Fatalf("expected zero time for \"all\", got %v", got)
	}
	if got := WindowStart("bogus", now); !got.IsZero() {
		t.Fatalf("expected zero time for an unrecognized range, got %v", got)
	}
}

func TestSharpeRatioRequiresAtLeastTwoReturns(t *testing.T) {
	if got := sharpeRatio(nil); got != 0 {
		t.Fatalf("expected 0 for no returns, got %v", got)
	}
	if got := sharpeRatio([]float64{0.1}); got != 0 {
		t.Fatalf("expected 0 for a single return, got %v", got)
	}
}

func TestSharpeRatioZeroVarianceIsZero(t *testing.T) {
	if got := sharpeRatio([]float64{0.05, 0.05, 0.05}); got != 0 {
		t.Fatalf("expected 0 sharpe for zero-variance returns, got %v", got)
	}
}

func TestSharpeRatioPositiveMeanYieldsPositiveSharpe(t *testing.T) {
	got := sharpeRatio([]float64{0.1, 0.2, -0.05, 0.15})
	if got <= 0 {
		t.Fatalf("expected a positive sharpe for a net-positive return series, got %v", got)
	}
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("expected a finite sharpe, got %v", got)
	}
}

func TestMaxDrawdownEmptyIsZero(t *testing.T) {
	if got := maxDrawdown(nil); got != 0 {
		t.Fatalf("expected 0 for no snapshots, got %v", got)
	}
}

func TestMaxDrawdownTracksPeakToTrough(t *testing.T) {
	snaps := []models.Snapshot{
		{TotalValue: 100},
		{TotalValue: 150},
		{TotalValue: 75},
		{TotalValue: 120},
	}
	got := maxDrawdown(snaps)
	want := (150.0 - 75.0) / 150.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("maxDrawdown = %v, want %v", got, want)
	}
}

func TestComputeAggregatesTotalsAndWinRate(t *testing.T) {
	trades := []models.Trade{
		{Symbol: "BTCUSDT", Size: 100, RealizedPnL: 10},
		{Symbol: "BTCUSDT", Size: 100, RealizedPnL: -5},
	}
	snaps := []models.Snapshot{{TotalValue: 1000}, {TotalValue: 1005}}
	m := compute(trades, snaps)
	if m.tradeCount != 2 {
		t.Fatalf("expected tradeCount 2, got %d", m.tradeCount)
	}
	if m.totalPnL != 5 {
		t.Fatalf("expected totalPnL 5, got %v", m.totalPnL)
	}
	if m.winRate != 0.5 {
		t.Fatalf("expected winRate 0.5, got %v", m.winRate)
	}
	if m.lastValue != 1005 {
		t.Fatalf("expected lastValue from the final snapshot, got %v", m.lastValue)
	}
}
