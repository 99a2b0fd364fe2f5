package database

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// UserRepository is the CRUD surface for models.User.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(u *models.User) error {
	if err := r.db.Create(u).Error; err != nil {
		if isUniqueConstraintErr(err) {
			return apierr.New(apierr.Conflict, "username or email already in use")
		}
		return apierr.Wrap(apierr.PersistenceFailed, "create user", err)
	}
	return nil
}

func (r *UserRepository) ByID(id uint) (*models.User, error) {
	var u models.User
	if err := r.db.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.New(apierr.NotFound, "user not found")
		}
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load user", err)
	}
	return &u, nil
}

func (r *UserRepository) ByUsername(username string) (*models.User, error) {
	var u models.User
	if err := r.db.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.New(apierr.NotFound, "user not found")
		}
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load user", err)
	}
	return &u, nil
}

func (r *UserRepository) Update(u *models.User) error {
	if err := r.db.Save(u).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "update user", err)
	}
	return nil
}

// Delete cascades a user's entire owned tree in one transaction (§6 "DELETE
// /admin/users/:id (cascade)"), mirroring ResetBot's per-table delete style
// since owner_id, not bot_id, is the scoping column here.
func (r *UserRepository) Delete(id uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []interface{}{
			&models.Trade{}, &models.Position{}, &models.Decision{}, &models.Snapshot{},
			&models.HistorySummary{}, &models.TokenUsage{}, &models.Wallet{},
			&models.Provider{}, &models.Bot{},
		} {
			if err := tx.Where("owner_id = ?", id).Delete(table).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "delete user cascade", err)
	}
	return nil
}

func (r *UserRepository) List(limit, offset int) ([]models.User, int64, error) {
	var users []models.User
	var total int64
	if err := r.db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, apierr.Wrap(apierr.PersistenceFailed, "count users", err)
	}
	if err := r.db.Order("id asc").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, apierr.Wrap(apierr.PersistenceFailed, "list users", err)
	}
	return users, total, nil
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
