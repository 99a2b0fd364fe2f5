package models

import (
	"time"

	"gorm.io/gorm"
)

// Snapshot is a time-series point of a bot's wealth, used for charts and the
// risk metrics the Leaderboard Service aggregates over.
type Snapshot struct {
	gorm.Model
	OwnerID       uint      `gorm:"not null;index" json:"owner_id"`
	BotID         uint      `gorm:"not null;index" json:"bot_id"`
	Balance       float64   `gorm:"not null" json:"balance"`
	UnrealizedPnL float64   `gorm:"default:0" json:"unrealized_pnl"`
	RealizedPnL   float64   `gorm:"default:0" json:"realized_pnl"`
	TotalValue    float64   `gorm:"not null" json:"total_value"`
	TradeCount    int       `gorm:"default:0" json:"trade_count"`
	WinRate       float64   `gorm:"default:0" json:"win_rate"`
	Timestamp     time.Time `gorm:"not null;index" json:"timestamp"`
}

func (Snapshot) TableName() string { return "snapshots" }

// ArenaState is the single broadcast-projection row described in spec.md §3.
// Exactly one row (ID=1) ever exists; it is overwritten wholesale on each
// broadcast tick and is reconstructible in full from the relational tables.
type ArenaState struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Blob      string    `gorm:"type:text;not null" json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ArenaState) TableName() string { return "arena_state" }

const ArenaStateRowID = 1
