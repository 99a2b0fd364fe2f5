package database

import (
	"time"

	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// SnapshotRepository is the read surface for models.Snapshot; writes happen
// inside TradeRepository's transactional turn writers.
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// LatestForBot returns the most recent snapshot, i.e. the bot's current
// balance/value, or nil if the bot has never been snapshotted.
func (r *SnapshotRepository) LatestForBot(botID uint) (*models.Snapshot, error) {
	var s models.Snapshot
	err := r.db.Where("bot_id = ?", botID).Order("timestamp desc").First(&s).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load latest snapshot", err)
	}
	return &s, nil
}

// InRange is the getBotSnapshots(botId, from, to, userId) reader spec.md
// §4.1 requires, owner-scoped.
func (r *SnapshotRepository) InRange(botID, ownerID uint, from, to time.Time) ([]models.Snapshot, error) {
	var snaps []models.Snapshot
	err := r.db.Where("bot_id = ? AND owner_id = ? AND timestamp BETWEEN ? AND ?", botID, ownerID, from, to).
		Order("timestamp asc").Find(&snaps).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load snapshots", err)
	}
	return snaps, nil
}

// AllSince is used by the Leaderboard Service to aggregate across a period
// without owner scoping (cross-tenant ranking is intentional, §4.10).
func (r *SnapshotRepository) AllSince(botID uint, since time.Time) ([]models.Snapshot, error) {
	var snaps []models.Snapshot
	err := r.db.Where("bot_id = ? AND timestamp >= ?", botID, since).Order("timestamp asc").Find(&snaps).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load snapshots since", err)
	}
	return snaps, nil
}

// PurgeOlderThan deletes snapshots beyond the retention window (§6
// data_retention_days). It runs only when a caller invokes it; no periodic
// task in the process calls it.
func (r *SnapshotRepository) PurgeOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("timestamp < ?", cutoff).Delete(&models.Snapshot{})
	if res.Error != nil {
		return 0, apierr.Wrap(apierr.PersistenceFailed, "purge snapshots", res.Error)
	}
	return res.RowsAffected, nil
}
