package models

import (
	"time"

	"gorm.io/gorm"
)

// Trading mode.
const (
	ModePaper = "paper"
	ModeReal  = "real"
)

// Bot is a persistent, owner-scoped configuration whose runtime is a
// cooperative scheduler task producing periodic trading decisions. The
// system prompt is the primary behavioral knob; everything else is plumbing.
type Bot struct {
	gorm.Model
	OwnerID    uint   `gorm:"not null;index" json:"owner_id"`
	StableID   string `gorm:"uniqueIndex;size:36;not null" json:"stable_id"`
	Name       string `gorm:"size:100;not null" json:"name"`
	SystemPrompt string `gorm:"type:text;not null" json:"system_prompt"`
	ProviderID uint   `gorm:"not null;index" json:"provider_id"`
	Mode       string `gorm:"size:10;not null;default:'paper'" json:"mode"`
	Active     bool   `gorm:"default:true;index" json:"active"`
	Paused     bool   `gorm:"default:false" json:"paused"`
	Avatar     []byte `gorm:"type:blob" json:"-"`
	// AllowedSymbols is nil/empty when the bot should fall back to the
	// global trading_symbols setting (§4.7.1 step 3).
	AllowedSymbols StringList `gorm:"type:text" json:"allowed_symbols"`

	// Scheduler bookkeeping (§4.8, §7 PersistenceFailed pause rule).
	LastTurnAt            *time.Time `json:"last_turn_at,omitempty"`
	LastTurnStatus         string     `gorm:"size:20" json:"last_turn_status"`
	ConsecutivePersistFail int        `gorm:"default:0" json:"-"`
}

func (Bot) TableName() string { return "bots" }

// Cooldown is a per-(bot,symbol) window during which the bot may not reopen
// a just-closed symbol. Kept only in the in-memory bot runtime; the broadcast
// ArenaState blob shows each symbol's remaining time to spectators but is
// not read back, so a runtime rebuilt on reload or restart starts with no
// cooldowns.
type Cooldown struct {
	Symbol    string    `json:"symbol"`
	UntilUnix int64     `json:"until_unix"`
	SetAt     time.Time `json:"set_at"`
}
