package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	UsageKindDecision = "decision"
	UsageKindSummary  = "summary"
	UsageKindSandbox  = "sandbox"
)

// TokenUsage is one LLM call's accounting row. Cost fields are in minor
// currency units (cents) after markup has been applied by the Token
// Tracker; ReportedToBiller flips once the billing integration (external
// collaborator) has ingested the row.
type TokenUsage struct {
	gorm.Model
	OwnerID          uint      `gorm:"not null;index" json:"owner_id"`
	BotID            uint      `gorm:"index" json:"bot_id"`
	ProviderID       uint      `gorm:"index" json:"provider_id"`
	Kind             string    `gorm:"size:10;not null" json:"kind"`
	InputTokens      int       `gorm:"not null" json:"input_tokens"`
	OutputTokens     int       `gorm:"not null" json:"output_tokens"`
	CostMinorUnits   int64     `gorm:"not null;default:0" json:"cost_minor_units"`
	Model            string    `gorm:"size:100" json:"model"`
	LatencyMs        int64     `gorm:"not null" json:"latency_ms"`
	ReportedToBiller bool      `gorm:"index;default:false" json:"reported_to_biller"`
	Timestamp        time.Time `gorm:"not null;index" json:"timestamp"`
}

func (TokenUsage) TableName() string { return "token_usages" }
