package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ActionOpen  = "OPEN"
	ActionClose = "CLOSE"

	// CloseNote values distinguish a clean close from a forced one; both map
	// to Position.Status == closed (§4.6.4).
	CloseNoteManual     = "manual"
	CloseNoteLiquidated = "liquidated"
	CloseNoteStopLoss   = "stop_loss"
	CloseNoteTakeProfit = "take_profit"
)

// Trade is an immutable, append-only execution record. Exactly one OPEN and
// one CLOSE trade exist per position lifecycle (§3 invariants, §8.2).
type Trade struct {
	gorm.Model
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	BotID       uint      `gorm:"not null;index" json:"bot_id"`
	PositionID  *uint     `gorm:"index" json:"position_id,omitempty"`
	Symbol      string    `gorm:"size:20;not null" json:"symbol"`
	Side        string    `gorm:"size:5;not null" json:"side"`
	Action      string    `gorm:"size:5;not null" json:"action"`
	EntryPrice  float64   `gorm:"not null" json:"entry_price"`
	ExitPrice   *float64  `json:"exit_price,omitempty"`
	Size        float64   `gorm:"not null" json:"size"`
	Leverage    float64   `gorm:"not null" json:"leverage"`
	RealizedPnL float64   `gorm:"default:0" json:"realized_pnl"`
	Fee         float64   `gorm:"default:0" json:"fee"`
	Note        string    `gorm:"size:20" json:"note,omitempty"`
	ExecutedAt  time.Time `gorm:"not null;index" json:"executed_at"`
}

func (Trade) TableName() string { return "trades" }
