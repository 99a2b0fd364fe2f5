package models

import "gorm.io/gorm"

// Wallet binds exchange credentials to a single bot. At most one active
// Wallet may exist per (bot, exchange) pair; enforced by the repository at
// write time (§3 invariants), not by a DB unique constraint, since "active"
// is a soft toggle and history of rotated credentials is kept.
type Wallet struct {
	gorm.Model
	OwnerID         uint    `gorm:"not null;index" json:"owner_id"`
	BotID           uint    `gorm:"not null;index" json:"bot_id"`
	ExchangeTag     string  `gorm:"size:40;not null" json:"exchange_tag"`
	EncryptedKey    []byte  `gorm:"type:blob;not null" json:"-"`
	EncryptedSecret []byte  `gorm:"type:blob;not null" json:"-"`
	Address         *string `gorm:"size:200" json:"address,omitempty"`
	Active          bool    `gorm:"default:true" json:"active"`
}

func (Wallet) TableName() string { return "wallets" }
