package database

import (
	"log"

	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/models"
)

// AutoMigrateAll creates/updates every table this service owns. Generalized
// from the teacher's internal/database/migration.go AutoMigrateAll, trimmed
// to the spec's entity set and switched from a postgres-specific
// drop-everything "nuclear option" to a plain additive AutoMigrate — sqlite
// has no pgvector/schema-wide DROP CASCADE equivalent and the durability
// guarantees in spec.md §3 rule out dropping tables on every boot anyway.
func AutoMigrateAll(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Provider{},
		&models.PricingRow{},
		&models.Wallet{},
		&models.Bot{},
		&models.Position{},
		&models.Trade{},
		&models.Decision{},
		&models.Snapshot{},
		&models.ArenaState{},
		&models.HistorySummary{},
		&models.TokenUsage{},
		&models.AuditEntry{},
		&models.LeaderboardEntry{},
		&models.Setting{},
	)
	if err != nil {
		return err
	}
	log.Println("[DATABASE] migration complete")
	return nil
}
