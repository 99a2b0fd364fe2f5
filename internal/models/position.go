package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SideLong  = "LONG"
	SideShort = "SHORT"

	PositionOpen   = "open"
	PositionClosed = "closed"
)

// Position mirrors one open or closed leveraged position. A closed position
// always has ExitPrice... no — Position itself has no exit price field (that
// lives on the CLOSE Trade); closing sets ClosedAt and Status only, per
// spec.md §3.
type Position struct {
	gorm.Model
	OwnerID          uint       `gorm:"not null;index" json:"owner_id"`
	BotID            uint       `gorm:"not null;index" json:"bot_id"`
	Symbol           string     `gorm:"size:20;not null;index" json:"symbol"`
	Side             string     `gorm:"size:5;not null" json:"side"`
	EntryPrice       float64    `gorm:"not null" json:"entry_price"`
	Size             float64    `gorm:"not null" json:"size"`
	Leverage         float64    `gorm:"not null" json:"leverage"`
	LiquidationPrice float64    `gorm:"not null" json:"liquidation_price"`
	StopLoss         *float64   `json:"stop_loss,omitempty"`
	TakeProfit       *float64   `json:"take_profit,omitempty"`
	UnrealizedPnL    float64    `gorm:"default:0" json:"unrealized_pnl"`
	Status           string     `gorm:"size:10;not null;index;default:'open'" json:"status"`
	OpenedAt         time.Time  `gorm:"not null" json:"opened_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	// ExchangeRef is the live exchange adapter's position reference (§6
	// Exchange adapter), empty for paper positions.
	ExchangeRef string `gorm:"size:80" json:"exchange_ref,omitempty"`
}

func (Position) TableName() string { return "positions" }

// Age returns how long the position has been open, relative to now or to
// ClosedAt if already closed.
func (p *Position) Age(now time.Time) time.Duration {
	if p.ClosedAt != nil {
		return p.ClosedAt.Sub(p.OpenedAt)
	}
	return now.Sub(p.OpenedAt)
}
