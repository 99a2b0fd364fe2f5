// Package analytics is the owner-scoped performance reporting surface
// behind §6's Analytics routes. It mirrors the Leaderboard Service's
// win-rate/drawdown/Sharpe computation (internal/leaderboard, itself
// grounded on the teacher's internal/trading/metrics.go MetricsCalculator)
// but every query here is scoped to one owner rather than ranked
// cross-tenant (§3 "queries for non-admins are filtered by owner").
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

type Service struct {
	bots      *database.BotRepository
	trades    *database.TradeRepository
	snapshots *database.SnapshotRepository
}

func New(bots *database.BotRepository, trades *database.TradeRepository, snapshots *database.SnapshotRepository) *Service {
	return &Service{bots: bots, trades: trades, snapshots: snapshots}
}

// BotPerformance is one bot's window-scoped rollup.
type BotPerformance struct {
	BotID        uint    `json:"bot_id"`
	BotName      string  `json:"bot_name"`
	TotalPnL     float64 `json:"total_pnl"`
	TradeCount   int     `json:"trade_count"`
	WinRate      float64 `json:"win_rate"`
	Sharpe       float64 `json:"sharpe"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	CurrentValue float64 `json:"current_value"`
}

// RiskMetrics is the narrower shape GET /analytics/risk-metrics returns.
type RiskMetrics struct {
	BotID       uint    `json:"bot_id"`
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// WindowStart parses spec.md §6's timeRange query values relative to now.
// "all" and any unrecognized value fall back to the zero time (no lower
// bound), matching the Leaderboard Service's all-time period.
func WindowStart(timeRange string, now time.Time) time.Time {
	switch timeRange {
	case "24h":
		return now.Add(-24 * time.Hour)
	case "7d":
		return now.Add(-7 * 24 * time.Hour)
	case "30d":
		return now.Add(-30 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}

// Performance computes one rollup per bot an owner holds.
func (s *Service) Performance(ownerID uint, timeRange string) ([]BotPerformance, error) {
	bots, err := s.bots.ListForOwner(ownerID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	since := WindowStart(timeRange, now)
	out := make([]BotPerformance, 0, len(bots))
	for i := range bots {
		perf, err := s.performanceFor(&bots[i], ownerID, since, now)
		if err != nil {
			return nil, err
		}
		out = append(out, *perf)
	}
	return out, nil
}

func (s *Service) PerformanceForBot(botID, ownerID uint, timeRange string) (*BotPerformance, error) {
	bot, err := s.bots.ByIDForOwner(botID, ownerID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	since := WindowStart(timeRange, now)
	return s.performanceFor(bot, ownerID, since, now)
}

func (s *Service) performanceFor(bot *models.Bot, ownerID uint, since, now time.Time) (*BotPerformance, error) {
	trades, err := s.trades.ClosedSince(bot.ID, since)
	if err != nil {
		return nil, err
	}
	snaps, err := s.snapshots.InRange(bot.ID, ownerID, since, now)
	if err != nil {
		return nil, err
	}
	m := compute(trades, snaps)

	currentValue := m.lastValue
	if currentValue == 0 {
		if latest, err := s.snapshots.LatestForBot(bot.ID); err == nil && latest != nil {
			currentValue = latest.TotalValue
		}
	}
	return &BotPerformance{
		BotID: bot.ID, BotName: bot.Name,
		TotalPnL: m.totalPnL, TradeCount: m.tradeCount, WinRate: m.winRate,
		Sharpe: m.sharpe, MaxDrawdown: m.maxDrawdown, CurrentValue: currentValue,
	}, nil
}

// Comparison runs PerformanceForBot for an explicit bot id list, preserving
// the caller's ordering (§6 GET /analytics/comparison?bot_ids=).
func (s *Service) Comparison(ownerID uint, botIDs []uint, timeRange string) ([]BotPerformance, error) {
	out := make([]BotPerformance, 0, len(botIDs))
	for _, id := range botIDs {
		perf, err := s.PerformanceForBot(id, ownerID, timeRange)
		if err != nil {
			return nil, err
		}
		out = append(out, *perf)
	}
	return out, nil
}

func (s *Service) RiskMetrics(botID, ownerID uint) (*RiskMetrics, error) {
	perf, err := s.PerformanceForBot(botID, ownerID, "all")
	if err != nil {
		return nil, err
	}
	return &RiskMetrics{BotID: botID, Sharpe: perf.Sharpe, MaxDrawdown: perf.MaxDrawdown}, nil
}

// BestWorst ranks every owned bot by total pnl and returns the extremes.
func (s *Service) BestWorst(ownerID uint) (best, worst *BotPerformance, err error) {
	perfs, err := s.Performance(ownerID, "all")
	if err != nil {
		return nil, nil, err
	}
	if len(perfs) == 0 {
		return nil, nil, apierr.New(apierr.NotFound, "no bots with trading history")
	}
	sort.Slice(perfs, func(i, j int) bool { return perfs[i].TotalPnL > perfs[j].TotalPnL })
	return &perfs[0], &perfs[len(perfs)-1], nil
}

// SymbolStats is one symbol's cross-bot rollup for an owner.
type SymbolStats struct {
	Symbol     string  `json:"symbol"`
	TradeCount int     `json:"trade_count"`
	TotalPnL   float64 `json:"total_pnl"`
	WinRate    float64 `json:"win_rate"`
}

// BySymbol aggregates every closed trade across an owner's bots by symbol
// (§6 GET /analytics/aggregate/by-symbol).
func (s *Service) BySymbol(ownerID uint) ([]SymbolStats, error) {
	trades, err := s.trades.ForOwnerSince(ownerID, time.Time{})
	if err != nil {
		return nil, err
	}
	bySymbol := make(map[string]*SymbolStats)
	order := make([]string, 0)
	var wins = make(map[string]int)
	for _, t := range trades {
		stat, ok := bySymbol[t.Symbol]
		if !ok {
			stat = &SymbolStats{Symbol: t.Symbol}
			bySymbol[t.Symbol] = stat
			order = append(order, t.Symbol)
		}
		stat.TradeCount++
		stat.TotalPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			wins[t.Symbol]++
		}
	}
	out := make([]SymbolStats, 0, len(order))
	for _, sym := range order {
		stat := bySymbol[sym]
		if stat.TradeCount > 0 {
			stat.WinRate = float64(wins[sym]) / float64(stat.TradeCount)
		}
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalPnL > out[j].TotalPnL })
	return out, nil
}

// AggregateSummary is the owner-wide rollup for GET /analytics/aggregate/summary.
type AggregateSummary struct {
	BotCount      int     `json:"bot_count"`
	TotalPnL      float64 `json:"total_pnl"`
	TradeCount    int     `json:"trade_count"`
	WinRate       float64 `json:"win_rate"`
	TotalValue    float64 `json:"total_value"`
}

// Summary rolls every owned bot's all-time performance into one total
// (§6 GET /analytics/aggregate/summary).
func (s *Service) Summary(ownerID uint) (*AggregateSummary, error) {
	perfs, err := s.Performance(ownerID, "all")
	if err != nil {
		return nil, err
	}
	sum := &AggregateSummary{BotCount: len(perfs)}
	var wins float64
	for _, p := range perfs {
		sum.TotalPnL += p.TotalPnL
		sum.TradeCount += p.TradeCount
		sum.TotalValue += p.CurrentValue
		wins += p.WinRate * float64(p.TradeCount)
	}
	if sum.TradeCount > 0 {
		sum.WinRate = wins / float64(sum.TradeCount)
	}
	return sum, nil
}

type metrics struct {
	totalPnL    float64
	tradeCount  int
	winRate     float64
	sharpe      float64
	maxDrawdown float64
	lastValue   float64
}

// compute mirrors the Leaderboard Service's per-bot aggregation (same naive
// Sharpe and peak-to-trough drawdown definitions, §4.10), plus the latest
// snapshot's total value for the "current value" field analytics exposes
// that the leaderboard ranking doesn't need.
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
	if len(snaps) > 0 {
		m.lastValue = snaps[len(snaps)-1].TotalValue
	}
	return m
}

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
