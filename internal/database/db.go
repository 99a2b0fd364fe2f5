// Package database is the Persistence Store (C1): a relational store for
// every entity in spec.md §3 plus the single arena-state blob, with
// multi-tenant owner filtering and transactional per-turn writes.
package database

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arenahq/bot-arena/internal/config"
)

// Open connects to the sqlite store, tunes the connection pool the way the
// teacher's cmd/ares/main.go tunes its postgres pool, and runs migrations.
func Open(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers regardless; a single connection avoids
	// "database is locked" errors under concurrent per-bot tasks (§5).
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		return nil, err
	}
	if err := db.Exec("PRAGMA foreign_keys=ON;").Error; err != nil {
		return nil, err
	}

	if err := AutoMigrateAll(db); err != nil {
		return nil, err
	}
	return db, nil
}
