package database

import (
	"time"

	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// DecisionRepository is the append-only write/read surface for
// models.Decision.
type DecisionRepository struct {
	db *gorm.DB
}

func NewDecisionRepository(db *gorm.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

func (r *DecisionRepository) Create(d *models.Decision) error {
	if err := r.db.Create(d).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "create decision", err)
	}
	return nil
}

// CreateTx writes a Decision row against an existing transaction, so the
// Decision Loop can fold it into the same transaction as the turn's
// position/trade/snapshot writes (§4.1).
func (r *DecisionRepository) CreateTx(tx *gorm.DB, d *models.Decision) error {
	if err := tx.Create(d).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "create decision", err)
	}
	return nil
}

func (r *DecisionRepository) ListForBot(botID uint, limit, offset int) ([]models.Decision, int64, error) {
	var decisions []models.Decision
	var total int64
	if err := r.db.Model(&models.Decision{}).Where("bot_id = ?", botID).Count(&total).Error; err != nil {
		return nil, 0, apierr.Wrap(apierr.PersistenceFailed, "count decisions", err)
	}
	err := r.db.Where("bot_id = ?", botID).Order("timestamp desc").Limit(limit).Offset(offset).Find(&decisions).Error
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.PersistenceFailed, "list decisions", err)
	}
	return decisions, total, nil
}

// Since returns every decision for a bot at or after the given time,
// ordered oldest-first — the Summarizer (C5)'s source window.
func (r *DecisionRepository) Since(botID uint, since time.Time) ([]models.Decision, error) {
	var decisions []models.Decision
	err := r.db.Where("bot_id = ? AND timestamp >= ?", botID, since).Order("timestamp asc").Find(&decisions).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load decisions since", err)
	}
	return decisions, nil
}

func (r *DecisionRepository) CountForBot(botID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.Decision{}).Where("bot_id = ?", botID).Count(&n).Error
	if err != nil {
		return 0, apierr.Wrap(apierr.PersistenceFailed, "count decisions", err)
	}
	return n, nil
}
