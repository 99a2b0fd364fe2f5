package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// ProviderRepository is the owner-scoped CRUD surface for models.Provider
// and the process-wide PricingRow table.
type ProviderRepository struct {
	db *gorm.DB
}

func NewProviderRepository(db *gorm.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

func (r *ProviderRepository) Create(p *models.Provider) error {
	if err := r.db.Create(p).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "create provider", err)
	}
	return nil
}

// ByIDForOwner loads a provider and verifies it belongs to ownerID, returning
// NotFound rather than Forbidden if it belongs to someone else — the
// existence of another user's provider is not disclosed (§7 isolation rule).
func (r *ProviderRepository) ByIDForOwner(id, ownerID uint) (*models.Provider, error) {
	var p models.Provider
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.New(apierr.NotFound, "provider not found")
		}
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load provider", err)
	}
	return &p, nil
}

func (r *ProviderRepository) ByID(id uint) (*models.Provider, error) {
	var p models.Provider
	if err := r.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.New(apierr.NotFound, "provider not found")
		}
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load provider", err)
	}
	return &p, nil
}

func (r *ProviderRepository) ListForOwner(ownerID uint) ([]models.Provider, error) {
	var providers []models.Provider
	err := r.db.Where("owner_id = ?", ownerID).Order("id asc").Find(&providers).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "list providers", err)
	}
	return providers, nil
}

// ListAll returns every provider across every owner, unscoped — the admin
// carve-out from the owner_id isolation rule (§7 invariant 1).
func (r *ProviderRepository) ListAll() ([]models.Provider, error) {
	var providers []models.Provider
	err := r.db.Order("id asc").Find(&providers).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "list all providers", err)
	}
	return providers, nil
}

func (r *ProviderRepository) Update(p *models.Provider) error {
	if err := r.db.Save(p).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "update provider", err)
	}
	return nil
}

// Delete is a hard delete guarded by the caller having already verified no
// active Bot references this provider (§3 invariant: a Provider referenced
// by an active Bot cannot be deleted).
func (r *ProviderRepository) Delete(id, ownerID uint) error {
	res := r.db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.Provider{})
	if res.Error != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "delete provider", res.Error)
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "provider not found")
	}
	return nil
}

func (r *ProviderRepository) PricingFor(variant string) (*models.PricingRow, error) {
	var row models.PricingRow
	err := r.db.Where("variant = ? AND active = ?", variant, true).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.New(apierr.NotFound, "no active pricing for variant")
		}
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load pricing", err)
	}
	return &row, nil
}

func (r *ProviderRepository) UpsertPricing(row *models.PricingRow) error {
	var existing models.PricingRow
	err := r.db.Where("variant = ?", row.Variant).First(&existing).Error
	if err == nil {
		row.Model = existing.Model
		if saveErr := r.db.Save(row).Error; saveErr != nil {
			return apierr.Wrap(apierr.PersistenceFailed, "update pricing", saveErr)
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.Wrap(apierr.PersistenceFailed, "load pricing", err)
	}
	if err := r.db.Create(row).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "create pricing", err)
	}
	return nil
}
