package leaderboard

import (
	"testing"

	"github.com/arenahq/bot-arena/internal/models"
)

func TestComputeWinRateAndTotalPnL(t *testing.T) {
	trades := []models.Trade{
		{RealizedPnL: 100, Size: 1000},
		{RealizedPnL: -40, Size: 1000},
		{RealizedPnL: 60, Size: 1000},
	}
	m := compute(trades, nil)
	if m.tradeCount != 3 {
		t.Fatalf("tradeCount = %d, want 3", m.tradeCount)
	}
	if m.totalPnL != 120 {
		t.Fatalf("totalPnL = %v, want 120", m.totalPnL)
	}
	want := 2.0 / 3.0
	if m.winRate != want {
		t.Fatalf("winRate = %v, want %v", m.winRate, want)
	}
}

func TestMaxDrawdownFindsWorstPeakToTrough(t *testing.T) {
	snaps := []models.Snapshot{
		{TotalValue: 1000},
		{TotalValue: 1200},
		{TotalValue: 900},
		{TotalValue: 1100},
	}
	got := maxDrawdown(snaps)
	want := (1200.0 - 900.0) / 1200.0
	if got != want {
		t.Fatalf("maxDrawdown = %v, want %v", got, want)
	}
}

func TestRankOrdersByPnLThenWinRateThenBotID(t *testing.T) {
	entries := []models.LeaderboardEntry{
		{BotID: 1, TotalPnL: 50, WinRate: 0.5},
		{BotID: 2, TotalPnL: 100, WinRate: 0.4},
		{BotID: 3, TotalPnL: 100, WinRate: 0.6},
		{BotID: 4, TotalPnL: 100, WinRate: 0.6},
	}
	rank(entries)

	if entries[0].BotID != 3 || entries[0].Rank != 1 {
		t.Fatalf("expected bot 3 to rank first, got %+v", entries[0])
	}
	if entries[1].BotID != 4 || entries[1].Rank != 2 {
		t.Fatalf("expected bot 4 to rank second on bot-id tie-break, got %+v", entries[1])
	}
	if entries[3].BotID != 1 || entries[3].Rank != 4 {
		t.Fatalf("expected bot 1 to rank last, got %+v", entries[3])
	}
}

func TestSharpeRatioZeroForSingleReturn(t *testing.T) {
	if got := sharpeRatio([]float64{0.1}); got != 0 {
		t.Fatalf("sharpeRatio with one sample = %v, want 0", got)
	}
}
