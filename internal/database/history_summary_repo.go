package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// HistorySummaryRepository manages the single current HistorySummary row
// per bot, replaced wholesale on regeneration (§4.5 "regenerate, not
// append").
type HistorySummaryRepository struct {
	db *gorm.DB
}

func NewHistorySummaryRepository(db *gorm.DB) *HistorySummaryRepository {
	return &HistorySummaryRepository{db: db}
}

func (r *HistorySummaryRepository) ForBot(botID uint) (*models.HistorySummary, error) {
	var s models.HistorySummary
	err := r.db.Where("bot_id = ?", botID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load history summary", err)
	}
	return &s, nil
}

// Replace upserts the single summary row for a bot — a true replace, never
// an append, per the invariant in models/history_summary.go.
func (r *HistorySummaryRepository) Replace(s *models.HistorySummary) error {
	var existing models.HistorySummary
	err := r.db.Where("bot_id = ?", s.BotID).First(&existing).Error
	if err == nil {
		s.Model = existing.Model
		if err := r.db.Save(s).Error; err != nil {
			return apierr.Wrap(apierr.PersistenceFailed, "replace history summary", err)
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.Wrap(apierr.PersistenceFailed, "load history summary", err)
	}
	if err := r.db.Create(s).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "create history summary", err)
	}
	return nil
}

// ClearLearning deletes the summary without touching trades/decisions — the
// separate "clear learning" endpoint in §4.9.
func (r *HistorySummaryRepository) ClearLearning(botID uint) error {
	if err := r.db.Where("bot_id = ?", botID).Delete(&models.HistorySummary{}).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "clear history summary", err)
	}
	return nil
}
