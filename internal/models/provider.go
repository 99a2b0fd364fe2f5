package models

import "gorm.io/gorm"

// Provider variant tags understood by the LLM Dispatcher (C3).
const (
	VariantOpenAI    = "openai"
	VariantAnthropic = "anthropic"
	VariantGemini    = "gemini"
	VariantGrok      = "grok"
	VariantLocal     = "local"
	VariantCustom    = "custom"
)

// Provider is the unit of model+credential: one LLM endpoint descriptor
// owned by a user. Identity (owner, variant, endpoint, model) is effectively
// immutable; config and active flag are the mutable surface.
type Provider struct {
	gorm.Model
	OwnerID     uint   `gorm:"not null;index" json:"owner_id"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Variant     string `gorm:"size:20;not null" json:"variant"`
	EndpointURL string `gorm:"size:500;not null" json:"endpoint_url"`
	Model       string `gorm:"size:100;not null" json:"model"`
	// EncryptedAPIKey holds the Crypto Vault ciphertext; never returned to
	// non-admin callers in list/get responses (see httpapi/handlers redact).
	EncryptedAPIKey []byte `gorm:"type:blob" json:"-"`
	Config          JSONB  `gorm:"type:text" json:"config"`
	Active          bool   `gorm:"default:true;index" json:"active"`
}

func (Provider) TableName() string { return "providers" }

// PricingRow holds the active per-provider-variant pricing used by the Token
// Tracker (C4) to compute cost; unit prices are minor currency units per
// million tokens, rounded up after markup is applied.
type PricingRow struct {
	gorm.Model
	Variant              string  `gorm:"size:20;not null;uniqueIndex" json:"variant"`
	InputPricePerMillion int64   `gorm:"not null" json:"input_price_per_million"`
	OutputPricePerMillion int64  `gorm:"not null" json:"output_price_per_million"`
	MarkupPercent        float64 `gorm:"not null;default:0" json:"markup_percent"`
	Active               bool    `gorm:"default:true" json:"active"`
}

func (PricingRow) TableName() string { return "pricing_rows" }
