package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// BotRepository is the CRUD surface for models.Bot.
type BotRepository struct {
	db *gorm.DB
}

func NewBotRepository(db *gorm.DB) *BotRepository {
	return &BotRepository{db: db}
}

func (r *BotRepository) Create(b *models.Bot) error {
	if err := r.db.Create(b).Error; err != nil {
		if isUniqueConstraintErr(err) {
			return apierr.New(apierr.Conflict, "stable id collision")
		}
		return apierr.Wrap(apierr.PersistenceFailed, "create bot", err)
	}
	return nil
}

func (r *BotRepository) ByIDForOwner(id, ownerID uint) (*models.Bot, error) {
	var b models.Bot
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.New(apierr.NotFound, "bot not found")
		}
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load bot", err)
	}
	return &b, nil
}

// ByID is used by internal callers (scheduler, broadcast) that already hold
// a validated bot id and do not need owner scoping.
func (r *BotRepository) ByID(id uint) (*models.Bot, error) {
	var b models.Bot
	if err := r.db.First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.New(apierr.NotFound, "bot not found")
		}
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load bot", err)
	}
	return &b, nil
}

func (r *BotRepository) ListForOwner(ownerID uint) ([]models.Bot, error) {
	var bots []models.Bot
	err := r.db.Where("owner_id = ?", ownerID).Order("id asc").Find(&bots).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "list bots", err)
	}
	return bots, nil
}

// ListActive returns every active bot across all owners, used by the
// scheduler at boot and on reload to build its task set.
func (r *BotRepository) ListActive() ([]models.Bot, error) {
	var bots []models.Bot
	err := r.db.Where("active = ?", true).Order("id asc").Find(&bots).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "list active bots", err)
	}
	return bots, nil
}

func (r *BotRepository) CountForOwner(ownerID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.Bot{}).Where("owner_id = ?", ownerID).Count(&n).Error
	if err != nil {
		return 0, apierr.Wrap(apierr.PersistenceFailed, "count bots", err)
	}
	return n, nil
}

func (r *BotRepository) Update(b *models.Bot) error {
	if err := r.db.Save(b).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "update bot", err)
	}
	return nil
}

// RecordTurnResult is the narrow update the scheduler issues after every
// turn attempt, avoiding a full Save that could race with a concurrent
// config-surface update from the HTTP layer (§9 "single-writer-per-bot").
func (r *BotRepository) RecordTurnResult(botID uint, status string, at interface{}, incFail bool) error {
	updates := map[string]interface{}{
		"last_turn_at":     at,
		"last_turn_status": status,
	}
	q := r.db.Model(&models.Bot{}).Where("id = ?", botID)
	if incFail {
		q = q.Update("consecutive_persist_fail", gorm.Expr("consecutive_persist_fail + 1"))
	} else {
		updates["consecutive_persist_fail"] = 0
	}
	if err := q.Updates(updates).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "record turn result", err)
	}
	return nil
}

func (r *BotRepository) SetPaused(id, ownerID uint, paused bool) error {
	res := r.db.Model(&models.Bot{}).Where("id = ? AND owner_id = ?", id, ownerID).Update("paused", paused)
	if res.Error != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "update bot pause state", res.Error)
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "bot not found")
	}
	return nil
}

func (r *BotRepository) Delete(id, ownerID uint) error {
	res := r.db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.Bot{})
	if res.Error != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "delete bot", res.Error)
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "bot not found")
	}
	return nil
}

// ListAll returns every bot regardless of owner, for the admin console
// (§6 GET /admin/bots).
func (r *BotRepository) ListAll(limit, offset int) ([]models.Bot, int64, error) {
	var bots []models.Bot
	var total int64
	if err := r.db.Model(&models.Bot{}).Count(&total).Error; err != nil {
		return nil, 0, apierr.Wrap(apierr.PersistenceFailed, "count bots", err)
	}
	err := r.db.Order("id asc").Limit(limit).Offset(offset).Find(&bots).Error
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.PersistenceFailed, "list all bots", err)
	}
	return bots, total, nil
}

// Orphaned returns every bot whose owning user row no longer exists — the
// only way a bot can end up ownerless, since deletes otherwise cascade
// (§6 GET/DELETE /admin/orphaned-bots).
func (r *BotRepository) Orphaned() ([]models.Bot, error) {
	var bots []models.Bot
	err := r.db.Where("owner_id NOT IN (?)", r.db.Model(&models.User{}).Select("id")).Find(&bots).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "list orphaned bots", err)
	}
	return bots, nil
}

// DeleteOrphaned removes every orphaned bot and returns the count removed.
func (r *BotRepository) DeleteOrphaned() (int64, error) {
	res := r.db.Where("owner_id NOT IN (?)", r.db.Model(&models.User{}).Select("id")).Delete(&models.Bot{})
	if res.Error != nil {
		return 0, apierr.Wrap(apierr.PersistenceFailed, "delete orphaned bots", res.Error)
	}
	return res.RowsAffected, nil
}

// ProviderInUse reports whether any active bot references providerID; the
// providers Delete handler refuses to delete a provider while it does.
func (r *BotRepository) ProviderInUse(providerID uint) (bool, error) {
	var n int64
	err := r.db.Model(&models.Bot{}).Where("provider_id = ? AND active = ?", providerID, true).Count(&n).Error
	if err != nil {
		return false, apierr.Wrap(apierr.PersistenceFailed, "check provider usage", err)
	}
	return n > 0, nil
}
