package database

import (
	"time"

	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// TradeRepository is the append-only write/read surface for models.Trade,
// plus the transactional turn writers the Trading Engine (C6) uses to apply
// one decision's effects atomically. Grounded on the teacher's
// internal/repositories/trade_repository.go Create/Update, which wraps a
// trade write and a balance mutation in one gorm.Transaction — generalized
// here from a single "users.virtual_balance" column update to the spec's
// balance-is-the-latest-Snapshot model (§3, §5 balance ledger note).
type TradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

func (r *TradeRepository) ListForBot(botID uint, limit, offset int) ([]models.Trade, int64, error) {
	var trades []models.Trade
	var total int64
	if err := r.db.Model(&models.Trade{}).Where("bot_id = ?", botID).Count(&total).Error; err != nil {
		return nil, 0, apierr.Wrap(apierr.PersistenceFailed, "count trades", err)
	}
	err := r.db.Where("bot_id = ?", botID).Order("executed_at desc").Limit(limit).Offset(offset).Find(&trades).Error
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.PersistenceFailed, "list trades", err)
	}
	return trades, total, nil
}

// RecentClosedForBot returns the last n closed trades, used by the Decision
// Loop's context block (§4.7.1 step 2: "recent closed trades (last 10)").
func (r *TradeRepository) RecentClosedForBot(botID uint, n int) ([]models.Trade, error) {
	var trades []models.Trade
	err := r.db.Where("bot_id = ? AND action = ?", botID, models.ActionClose).
		Order("executed_at desc").Limit(n).Find(&trades).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load recent trades", err)
	}
	return trades, nil
}

// ClosedSince returns every CLOSE trade for botID executed at or after
// since, used by the Leaderboard Service (C10) to aggregate a period window
// without owner scoping (cross-tenant ranking is intentional, §4.10).
func (r *TradeRepository) ClosedSince(botID uint, since time.Time) ([]models.Trade, error) {
	var trades []models.Trade
	err := r.db.Where("bot_id = ? AND action = ? AND executed_at >= ?", botID, models.ActionClose, since).
		Order("executed_at asc").Find(&trades).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load closed trades since", err)
	}
	return trades, nil
}

// ForOwnerSince returns every CLOSE trade across all of an owner's bots
// since the given time, used by the Analytics collaborator's cross-bot
// aggregate views (§6 GET /analytics/aggregate/*).
func (r *TradeRepository) ForOwnerSince(ownerID uint, since time.Time) ([]models.Trade, error) {
	var trades []models.Trade
	q := r.db.Where("owner_id = ? AND action = ?", ownerID, models.ActionClose)
	if !since.IsZero() {
		q = q.Where("executed_at >= ?", since)
	}
	err := q.Order("executed_at asc").Find(&trades).Error
	if err != nil {
		return nil, apierr.Wrap(apierr.PersistenceFailed, "load owner trades since", err)
	}
	return trades, nil
}

// WriteOpenTx is WriteOpen's write sequence run against an existing
// transaction, for callers (the Decision Loop) that need it folded into a
// larger turn-spanning transaction alongside the turn's Decision row (§4.1).
func WriteOpenTx(tx *gorm.DB, pos *models.Position, trade *models.Trade, snap *models.Snapshot) error {
	if err := tx.Create(pos).Error; err != nil {
		return err
	}
	trade.PositionID = &pos.ID
	if err := tx.Create(trade).Error; err != nil {
		return err
	}
	return tx.Create(snap).Error
}

// WriteCloseTx is WriteClose's write sequence against an existing
// transaction.
func WriteCloseTx(tx *gorm.DB, pos *models.Position, trade *models.Trade, snap *models.Snapshot) error {
	if err := tx.Model(&models.Position{}).Where("id = ?", pos.ID).Updates(map[string]interface{}{
		"status":    pos.Status,
		"closed_at": pos.ClosedAt,
	}).Error; err != nil {
		return err
	}
	if err := tx.Create(trade).Error; err != nil {
		return err
	}
	return tx.Create(snap).Error
}

// WriteHoldTx writes a mark-to-market snapshot against an existing
// transaction.
func WriteHoldTx(tx *gorm.DB, snap *models.Snapshot) error {
	return tx.Create(snap).Error
}

// WriteOpen persists a newly opened position, its OPEN trade, and a fresh
// balance snapshot in a single transaction — the per-turn write spec.md §4.1
// requires. The caller has already computed the fee-adjusted balance.
func (r *TradeRepository) WriteOpen(pos *models.Position, trade *models.Trade, snap *models.Snapshot) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		return WriteOpenTx(tx, pos, trade, snap)
	})
	if err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "write open turn", err)
	}
	return nil
}

// WriteClose marks a position closed, writes its CLOSE trade, and a fresh
// balance snapshot atomically.
func (r *TradeRepository) WriteClose(pos *models.Position, trade *models.Trade, snap *models.Snapshot) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		return WriteCloseTx(tx, pos, trade, snap)
	})
	if err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "write close turn", err)
	}
	return nil
}

// WriteHold persists just a mark-to-market snapshot for a turn that produced
// no position mutation (HOLD decisions, or ANALYZE-only turns).
func (r *TradeRepository) WriteHold(snap *models.Snapshot) error {
	if err := r.db.Create(snap).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "write hold snapshot", err)
	}
	return nil
}

// WriteTurn opens one transaction spanning every mutation produced by a
// single bot turn — position/trade/snapshot writes plus the turn's Decision
// row — so a crash mid-turn never leaves a trade or position with no
// corresponding Decision row (§4.1).
func (r *TradeRepository) WriteTurn(fn func(tx *gorm.DB) error) error {
	if err := r.db.Transaction(fn); err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "write turn", err)
	}
	return nil
}

// ResetBot deletes every position/trade/decision/snapshot for a bot inside
// one transaction and writes the fresh reset Snapshot, per spec.md §4.9
// Reset semantics ("acquires the bot's lock ... in one transaction").
func (r *TradeRepository) ResetBot(botID uint, resetSnap *models.Snapshot) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bot_id = ?", botID).Delete(&models.Position{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_id = ?", botID).Delete(&models.Trade{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_id = ?", botID).Delete(&models.Decision{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_id = ?", botID).Delete(&models.Snapshot{}).Error; err != nil {
			return err
		}
		return tx.Create(resetSnap).Error
	})
	if err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "reset bot", err)
	}
	return nil
}
