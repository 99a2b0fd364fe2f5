package models

import (
	"time"

	"gorm.io/gorm"
)

// AuditEntry is an append-only record of every mutation of Bot, Provider,
// Wallet, Setting, and every admin action (§7 audit-logging policy).
type AuditEntry struct {
	gorm.Model
	EventType   string    `gorm:"size:60;not null;index" json:"event_type"`
	EntityKind  string    `gorm:"size:40;not null" json:"entity_kind"`
	EntityID    string    `gorm:"size:40;not null" json:"entity_id"`
	ActorUserID uint      `gorm:"index" json:"actor_user_id"`
	Details     JSONB     `gorm:"type:text" json:"details"`
	IP          string    `gorm:"size:64" json:"ip"`
	Timestamp   time.Time `gorm:"not null;index" json:"timestamp"`
}

func (AuditEntry) TableName() string { return "audit_entries" }
