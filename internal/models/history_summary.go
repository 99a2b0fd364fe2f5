package models

import (
	"time"

	"gorm.io/gorm"
)

// HistorySummary is the single current compressed artifact for a bot. It is
// replaced wholesale on regeneration, never appended to; SourceCount is the
// "summarized_count" watermark referenced by §8 property 9.
type HistorySummary struct {
	gorm.Model
	OwnerID      uint      `gorm:"not null;index" json:"owner_id"`
	BotID        uint      `gorm:"uniqueIndex;not null" json:"bot_id"`
	Text         string    `gorm:"type:text;not null" json:"text"`
	SourceCount  int       `gorm:"not null" json:"source_count"`
	FromTime     time.Time `json:"from_time"`
	ToTime       time.Time `json:"to_time"`
	GeneratedAt  time.Time `gorm:"not null" json:"generated_at"`
	TokenCount   int       `gorm:"default:0" json:"token_count"`
}

func (HistorySummary) TableName() string { return "history_summaries" }
