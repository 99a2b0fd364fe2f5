package models

import "gorm.io/gorm"

// Setting is one key of the process-level settings map (spec.md §6 Config).
// New keys require a default value in config.DefaultSettings and a type in
// config's keyTypes; config.NewSettings inserts the row for any default key
// missing at startup. Unrecognized keys are rejected on write.
type Setting struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;size:60;not null" json:"key"`
	Value string `gorm:"type:text;not null" json:"value"`
	Type  string `gorm:"size:10;not null" json:"type"` // number or list
}

func (Setting) TableName() string { return "settings" }
