package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// WalletRepository is the CRUD surface for models.Wallet, owner- and
// bot-scoped.
type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) Create(w *models.Wallet) error {
	if err := r.db.Create(w).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "create wallet", err)
	}
	return nil
}

// CreateActive inserts w and deactivates any sibling wallet sharing (bot,
// exchange) in one transaction, enforcing the at-most-one-active invariant
// atomically rather than leaving a window between the two writes.
func (r *WalletRepository) CreateActive(w *models.Wallet) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(w).Error; err != nil {
			return err
		}
		return tx.Model(&models.Wallet{}).
			Where("bot_id = ? AND exchange_tag = ? AND id != ?", w.BotID, w.ExchangeTag, w.ID).
			Update("active", false).Error
	})
	if err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "create active wallet", err)
	}
	return nil
}

func (r *WalletRepository) ByIDForOwner(id, ownerID uint) (*models.Wallet, error) {
	var w models.Wallet
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.New(apierr.NotFound, "wallet not found")
		}
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load wallet", err)
	}
	return &w, nil
}

// ActiveForBot returns the single active wallet for a (bot, exchange) pair,
// enforcing the soft at-most-one-active invariant at read time.
func (r *WalletRepository) ActiveForBot(botID uint, exchangeTag string) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.Where("bot_id = ? AND exchange_tag = ? AND active = ?", botID, exchangeTag, true).
		Order("id desc").First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.New(apierr.NotFound, "no active wallet for bot/exchange")
		}
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load wallet", err)
	}
	return &w, nil
}

func (r *WalletRepository) ListForOwner(ownerID uint) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := r.db.Where("owner_id = ?", ownerID).Order("id asc").Find(&wallets).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "list wallets", err)
	}
	return wallets, nil
}

// DeactivateSiblings flips active=false for every other wallet sharing (bot,
// exchange) inside the caller's transaction, preserving rotation history.
func (r *WalletRepository) DeactivateSiblings(tx *gorm.DB, botID uint, exchangeTag string, keepID uint) error {
	err := tx.Model(&models.Wallet{}).
		Where("bot_id = ? AND exchange_tag = ? AND id != ?", botID, exchangeTag, keepID).
		Update("active", false).Error
	if err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "deactivate sibling wallets", err)
	}
	return nil
}

func (r *WalletRepository) Update(w *models.Wallet) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(w).Error; err != nil {
			return err
		}
		if !w.Active {
			return nil
		}
		return r.DeactivateSiblings(tx, w.BotID, w.ExchangeTag, w.ID)
	})
	if err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "update wallet", err)
	}
	return nil
}

func (r *WalletRepository) Delete(id, ownerID uint) error {
	res := r.db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.Wallet{})
	if res.Error != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "delete wallet", res.Error)
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "wallet not found")
	}
	return nil
}
