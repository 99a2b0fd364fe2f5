// Package leaderboard is the Leaderboard Service (C10): a periodic
// aggregation of closed trades and balance snapshots into ranked tables,
// one per period. Grounded on the teacher's internal/trading/metrics.go
// MetricsCalculator (win rate, max drawdown, Sharpe ratio over a trade/
// snapshot series), generalized from one account's trade history to a
// cross-tenant ranking recomputed per bot per period (§4.10).
package leaderboard

import (
	"log"
	"math"
	"sort"
	"time"

	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/models"
)

// Periods lists every period the hourly cadence recomputes (§4.10).
var Periods = []string{models.PeriodDaily, models.PeriodWeekly, models.PeriodMonthly, models.PeriodAllTime}

type Service struct {
	bots        *database.BotRepository
	trades      *database.TradeRepository
	snapshots   *database.SnapshotRepository
	leaderboard *database.LeaderboardRepository
}

func New(bots *database.BotRepository, trades *database.TradeRepository, snapshots *database.SnapshotRepository, leaderboard *database.LeaderboardRepository) *Service {
	return &Service{bots: bots, trades: trades, snapshots: snapshots, leaderboard: leaderboard}
}

// RecomputeAll runs RecomputePeriod for every period, logging rather than
// aborting on a single period's failure so one bad window doesn't blank
// the other three (§4.10 "periodic... admin may force an immediate
// recalculation").
func (s *Service) RecomputeAll(now time.Time) {
	for _, period := range Periods {
		if err := s.RecomputePeriod(period, now); err != nil {
			log.Printf("[LEADERBOARD][WARN] recompute %s failed: %v", period, err)
		}
	}
}

// RecomputePeriod aggregates every active bot's closed trades and snapshot
// series within the period window, ranks them, and atomically replaces that
// period's rows (§4.10).
func (s *Service) RecomputePeriod(period string, now time.Time) error {
	since := windowStart(period, now)

	bots, err := s.bots.ListActive()
	if err != nil {
		return err
	}

	entries := make([]models.LeaderboardEntry, 0, len(bots))
	for i := range bots {
		bot := bots[i]
		trades, err := s.trades.ClosedSince(bot.ID, since)
		if err != nil {
			log.Printf("[LEADERBOARD][WARN] bot=%d: load trades: %v", bot.ID, err)
			continue
		}
		if len(trades) == 0 {
			continue
		}
		snaps, err := s.snapshots.AllSince(bot.ID, since)
		if err != nil {
			log.Printf("[LEADERBOARD][WARN] bot=%d: load snapshots: %v", bot.ID, err)
			continue
		}

		m := compute(trades, snaps)
		entries = append(entries, models.LeaderboardEntry{
			Period:      period,
			BotID:       bot.ID,
			OwnerID:     bot.OwnerID,
			TotalPnL:    m.totalPnL,
			TradeCount:  m.tradeCount,
			WinRate:     m.winRate,
			Sharpe:      m.sharpe,
			MaxDrawdown: m.maxDrawdown,
			ComputedAt:  now,
		})
	}

	rank(entries)

	return s.leaderboard.ReplacePeriod(period, entries)
}

type metrics struct {
	totalPnL    float64
	tradeCount  int
	winRate     float64
	sharpe      float64
	maxDrawdown float64
}

// compute mirrors the teacher's MetricsCalculator.Calculate: total/average
// pnl, win rate, max peak-to-trough drawdown over the snapshot series, and
// a sample Sharpe ratio over per-trade returns.
func compute(trades []models.Trade, snaps []models.Snapshot) metrics {
	var m metrics
	m.tradeCount = len(trades)

	var wins int
	var returns []float64
	for _, t := range trades {
		m.totalPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			wins++
		}
		if t.Size > 0 {
			returns = append(returns, t.RealizedPnL/t.Size)
		}
	}
	if m.tradeCount > 0 {
		m.winRate = float64(wins) / float64(m.tradeCount)
	}
	m.sharpe = sharpeRatio(returns)
	m.maxDrawdown = maxDrawdown(snaps)
	return m
}

// sharpeRatio is a naive (unannualized) Sharpe: mean return over sample
// standard deviation of per-trade returns, per spec.md §4.10 "naive Sharpe".
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0
	}
	return mean / stdDev
}

// maxDrawdown walks the snapshot series in timestamp order and returns the
// largest peak-to-trough fractional decline in total value.
func maxDrawdown(snaps []models.Snapshot) float64 {
	if len(snaps) == 0 {
		return 0
	}
	peak := snaps[0].TotalValue
	var worst float64
	for _, s := range snaps {
		if s.TotalValue > peak {
			peak = s.TotalValue
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - s.TotalValue) / peak
		if drawdown > worst {
			worst = drawdown
		}
	}
	return worst
}

// rank sorts entries by total pnl descending, ties broken by win rate
// descending then by bot id ascending (every entry in one recompute shares
// a ComputedAt, so "earlier timestamp" falls through to this deterministic
// final tie-break), and assigns the 1-based Rank field in place (§4.10).
func rank(entries []models.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalPnL != entries[j].TotalPnL {
			return entries[i].TotalPnL > entries[j].TotalPnL
		}
		if entries[i].WinRate != entries[j].WinRate {
			return entries[i].WinRate > entries[j].WinRate
		}
		return entries[i].BotID < entries[j].BotID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// windowStart returns the start of the aggregation window for period
// relative to now. all-time uses the zero time so AllSince/ClosedSince
// match every row.
func windowStart(period string, now time.Time) time.Time {
	switch period {
	case models.PeriodDaily:
		return now.Add(-24 * time.Hour)
	case models.PeriodWeekly:
		return now.Add(-7 * 24 * time.Hour)
	case models.PeriodMonthly:
		return now.Add(-30 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}
