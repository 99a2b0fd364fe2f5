package database

import (
	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// AuditRepository is the append-only write surface for models.AuditEntry.
// Write failures here never block the mutation they describe — callers log
// and continue, per §7's audit policy (audit is best-effort observability,
// not a transactional participant).
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(e *models.AuditEntry) error {
	if err := r.db.Create(e).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "create audit entry", err)
	}
	return nil
}

func (r *AuditRepository) ListForEntity(entityKind, entityID string, limit int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := r.db.Where("entity_kind = ? AND entity_id = ?", entityKind, entityID).
		Order("timestamp desc").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "list audit entries", err)
	}
	return entries, nil
}

// ListRecent is the unfiltered, paginated feed behind the admin audit-log
// view (§6 GET /admin/audit-log).
func (r *AuditRepository) ListRecent(limit, offset int) ([]models.AuditEntry, int64, error) {
	var entries []models.AuditEntry
	var total int64
	if err := r.db.Model(&models.AuditEntry{}).Count(&total).Error; err != nil {
		return nil, 0, apierr.Wrap(apierr.PersistenceFailed, "count audit entries", err)
	}
	err := r.db.Order("timestamp desc").Limit(limit).Offset(offset).Find(&entries).Error
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.PersistenceFailed, "list recent audit entries", err)
	}
	return entries, total, nil
}
