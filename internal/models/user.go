package models

import "gorm.io/gorm"

// Role enumerates the access tiers checked by middleware and admin handlers.
const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// User is the root owner of every other entity. EncryptionSalt is generated
// once at registration and fed into the Crypto Vault's per-user key
// derivation; it is never rotated without re-encrypting all owned secrets.
type User struct {
	gorm.Model
	Username       string `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email          string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash   string `gorm:"not null" json:"-"`
	Role           string `gorm:"size:20;not null;default:'user'" json:"role"`
	Active         bool   `gorm:"default:true" json:"active"`
	EncryptionSalt string `gorm:"size:64;not null" json:"-"`
	// RecoveryPhraseHash lets a user regain account access without a working
	// email flow (§6 POST /auth/recover); the plaintext phrase is shown
	// exactly once, at registration, and never stored.
	RecoveryPhraseHash string `gorm:"size:255" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
