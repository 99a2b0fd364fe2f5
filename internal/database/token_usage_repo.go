package database

import (
	"time"

	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// TokenUsageRepository is the write/read surface for models.TokenUsage, the
// Token Tracker's (C4) ledger.
type TokenUsageRepository struct {
	db *gorm.DB
}

func NewTokenUsageRepository(db *gorm.DB) *TokenUsageRepository {
	return &TokenUsageRepository{db: db}
}

func (r *TokenUsageRepository) Create(u *models.TokenUsage) error {
	if err := r.db.Create(u).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "create token usage", err)
	}
	return nil
}

// ForPeriod returns an owner's usage rows within [from,to), backing
// usageForPeriod (§4.4). The rows are returned as stored; no totals are
// computed here.
func (r *TokenUsageRepository) ForPeriod(ownerID uint, from, to time.Time) ([]models.TokenUsage, error) {
	var rows []models.TokenUsage
	err := r.db.Where("owner_id = ? AND timestamp >= ? AND timestamp < ?", ownerID, from, to).Find(&rows).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load token usage for period", err)
	}
	return rows, nil
}

// Unreported returns every usage row not yet reported to the billing
// collaborator, backing unreportedUsage (§4.4).
func (r *TokenUsageRepository) Unreported(limit int) ([]models.TokenUsage, error) {
	var rows []models.TokenUsage
	err := r.db.Where("reported_to_biller = ?", false).Order("id asc").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load unreported usage", err)
	}
	return rows, nil
}

// MarkReported flips reported_to_biller for the given ids in one statement.
func (r *TokenUsageRepository) MarkReported(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.Model(&models.TokenUsage{}).Where("id IN ?", ids).Update("reported_to_biller", true).Error
	if err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "mark usage reported", err)
	}
	return nil
}
