package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// PositionRepository is the CRUD surface for models.Position.
type PositionRepository struct {
	db *gorm.DB
}

func NewPositionRepository(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

func (r *PositionRepository) ByIDForOwner(id, ownerID uint) (*models.Position, error) {
	var p models.Position
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.New(apierr.NotFound, "position not found")
		}
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load position", err)
	}
	return &p, nil
}

func (r *PositionRepository) OpenForBot(botID uint) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.Where("bot_id = ? AND status = ?", botID, models.PositionOpen).
		Order("opened_at asc").Find(&positions).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load open positions", err)
	}
	return positions, nil
}

func (r *PositionRepository) OpenForBotSymbol(botID uint, symbol string) (*models.Position, error) {
	var p models.Position
	err := r.db.Where("bot_id = ? AND symbol = ? AND status = ?", botID, symbol, models.PositionOpen).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.New(apierr.NotFound, "no open position for symbol")
		}
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load position", err)
	}
	return &p, nil
}

func (r *PositionRepository) CountOpenForBot(botID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.Position{}).Where("bot_id = ? AND status = ?", botID, models.PositionOpen).Count(&n).Error
	if err != nil {
		return 0, apierr.Wrap(apierr.PersistenceFailed, "count open positions", err)
	}
	return n, nil
}

// ListForBot filters by status ("open", "closed", or "all") before paginating,
// so a status-scoped list's pagination totals are accurate (§6 GET
// /bots/:id/positions?status=).
func (r *PositionRepository) ListForBot(botID uint, status string, limit, offset int) ([]models.Position, int64, error) {
	q := r.db.Model(&models.Position{}).Where("bot_id = ?", botID)
	if status != "" && status != "all" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apierr.Wrap(apierr.PersistenceFailed, "count positions", err)
	}
	var positions []models.Position
	err := q.Order("opened_at desc").Limit(limit).Offset(offset).Find(&positions).Error
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.PersistenceFailed, "list positions", err)
	}
	return positions, total, nil
}
