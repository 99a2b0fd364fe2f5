package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PeriodDaily    = "daily"
	PeriodWeekly   = "weekly"
	PeriodMonthly  = "monthly"
	PeriodAllTime  = "all-time"
)

// LeaderboardEntry is one bot's ranked row within one period, written
// atomically as a full replacement set per period by the Leaderboard
// Service (C10).
type LeaderboardEntry struct {
	gorm.Model
	Period      string    `gorm:"size:10;not null;index" json:"period"`
	BotID       uint      `gorm:"not null;index" json:"bot_id"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	Rank        int       `gorm:"not null" json:"rank"`
	TotalPnL    float64   `gorm:"not null" json:"total_pnl"`
	TradeCount  int       `gorm:"not null" json:"trade_count"`
	WinRate     float64   `gorm:"not null" json:"win_rate"`
	Sharpe      float64   `json:"sharpe"`
	MaxDrawdown float64   `json:"max_drawdown"`
	ComputedAt  time.Time `gorm:"not null;index" json:"computed_at"`
}

func (LeaderboardEntry) TableName() string { return "leaderboard_entries" }
