package models

import (
	"time"

	"gorm.io/gorm"
)

// Decision actions understood by the tool/action schema (§4.7.1 step 6).
const (
	ActionLong    = "LONG"
	ActionShort   = "SHORT"
	ActionCloseOp = "CLOSE"
	ActionHold    = "HOLD"
	ActionAnalyze = "ANALYZE"
)

// ParsedAction is one entry of Decision.Decisions — the normalized shape the
// Decision Loop parses every LLM response into, regardless of provider.
type ParsedAction struct {
	Action     string             `json:"action"`
	Symbol     string             `json:"symbol,omitempty"`
	Size       float64            `json:"size,omitempty"`
	Leverage   float64            `json:"leverage,omitempty"`
	StopLoss   *float64           `json:"stop_loss,omitempty"`
	TakeProfit *float64           `json:"take_profit,omitempty"`
	PositionID uint               `json:"position_id,omitempty"`
	Tool       string             `json:"tool,omitempty"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
	Reasoning  string             `json:"reasoning,omitempty"`
}

// Decision is an append-only log row of what the LLM was asked and the
// actions it returned, including accumulated ANALYZE tool results folded
// into notes.
type Decision struct {
	gorm.Model
	OwnerID        uint      `gorm:"not null;index" json:"owner_id"`
	BotID          uint      `gorm:"not null;index" json:"bot_id"`
	Prompt         string    `gorm:"type:text;not null" json:"prompt"`
	Decisions      JSONList  `gorm:"type:text" json:"decisions"`
	Notes          StringList `gorm:"type:text" json:"notes"`
	IterationCount int       `gorm:"default:1" json:"iteration_count"`
	Success        bool      `gorm:"not null" json:"success"`
	Timestamp      time.Time `gorm:"not null;index" json:"timestamp"`
}

func (Decision) TableName() string { return "decisions" }
