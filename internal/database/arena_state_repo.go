package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// ArenaStateRepository manages the single broadcast-projection row
// (models.ArenaState, id=1), overwritten wholesale on each tick so a
// reconnecting websocket client can read the full current view in one
// query (§3).
type ArenaStateRepository struct {
	db *gorm.DB
}

func NewArenaStateRepository(db *gorm.DB) *ArenaStateRepository {
	return &ArenaStateRepository{db: db}
}

// Replace overwrites the single arena state row with blob.
func (r *ArenaStateRepository) Replace(blob string) error {
	var existing models.ArenaState
	err := r.db.First(&existing, models.ArenaStateRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row := &models.ArenaState{ID: models.ArenaStateRowID, Blob: blob}
		if err := r.db.Create(row).Error; err != nil {
			return apierr.Wrap(apierr.PersistenceFailed, "create arena state", err)
		}
		return nil
	}
	if err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "load arena state", err)
	}
	if err := r.db.Model(&existing).Update("blob", blob).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "update arena state", err)
	}
	return nil
}

// Read returns the current blob, or "" if nothing has ever been written.
func (r *ArenaStateRepository) Read() (string, error) {
	var row models.ArenaState
	err := r.db.First(&row, models.ArenaStateRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", apierr.Wrap(apierr.PersistenceFailed, "read arena state", err)
	}
	return row.Blob, nil
}
