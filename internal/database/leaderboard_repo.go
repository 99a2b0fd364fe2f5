package database

import (
	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// LeaderboardRepository manages per-period leaderboard rows, replaced
// wholesale by the Leaderboard Service (C10) on each aggregation run.
type LeaderboardRepository struct {
	db *gorm.DB
}

func NewLeaderboardRepository(db *gorm.DB) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

// ReplacePeriod atomically swaps the leaderboard rows for a period.
func (r *LeaderboardRepository) ReplacePeriod(period string, entries []models.LeaderboardEntry) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("period = ?", period).Delete(&models.LeaderboardEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.Create(&entries).Error
	})
	if err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "replace leaderboard period", err)
	}
	return nil
}

func (r *LeaderboardRepository) ForPeriod(period string, limit int) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := r.db.Where("period = ?", period).Order("rank asc").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load leaderboard", err)
	}
	return entries, nil
}

// ForBot returns a bot's current row in every period, the closest analogue
// to "history" available without retaining superseded ReplacePeriod rows
// (§6 GET /leaderboard/bot/:botId/history).
func (r *LeaderboardRepository) ForBot(botID uint) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := r.db.Where("bot_id = ?", botID).Order("period asc").Find(&entries).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load bot leaderboard history", err)
	}
	return entries, nil
}

// ForOwner returns every current entry across periods for bots owned by
// ownerID (§6 GET /leaderboard/user/:userId).
func (r *LeaderboardRepository) ForOwner(ownerID uint) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := r.db.Where("owner_id = ?", ownerID).Order("period asc, rank asc").Find(&entries).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load owner leaderboard entries", err)
	}
	return entries, nil
}

// CountForPeriod reports how many bots rank in a period, used by the
// /leaderboard/stats summary.
func (r *LeaderboardRepository) CountForPeriod(period string) (int64, error) {
	var n int64
	err := r.db.Model(&models.LeaderboardEntry{}).Where("period = ?", period).Count(&n).Error
	if err != nil {
		return 0, apierr.Wrap(apierr.PersistenceFailed, "count leaderboard entries", err)
	}
	return n, nil
}
