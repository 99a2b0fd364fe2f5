// Package audit is a thin service wrapper over the append-only audit trail
// (§7 audit-logging policy): every mutation of Bot, Provider, Wallet,
// Setting, and every admin action gets one AuditEntry. Grounded on the
// teacher's pattern of fire-and-forget logging calls sprinkled through its
// service layer rather than a dedicated package — generalized here into one
// small service so every caller logs the same shape.
package audit

import (
	"log"
	"time"

	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/models"
)

type Logger struct {
	repo *database.AuditRepository
}

func New(repo *database.AuditRepository) *Logger {
	return &Logger{repo: repo}
}

// Record writes one audit entry. A failure here is logged and swallowed —
// audit is best-effort observability, never a transactional participant in
// the mutation it describes (§7).
func (l *Logger) Record(eventType, entityKind, entityID string, actorUserID uint, details map[string]interface{}, ip string) {
	entry := &models.AuditEntry{
		EventType:   eventType,
		EntityKind:  entityKind,
		EntityID:    entityID,
		ActorUserID: actorUserID,
		Details:     models.JSONB(details),
		IP:          ip,
		Timestamp:   time.Now(),
	}
	if err := l.repo.Create(entry); err != nil {
		log.Printf("[AUDIT][WARN] failed to record %s on %s/%s: %v", eventType, entityKind, entityID, err)
	}
}

// History returns the most recent entries for one entity, newest first.
func (l *Logger) History(entityKind, entityID string, limit int) ([]models.AuditEntry, error) {
	return l.repo.ListForEntity(entityKind, entityID, limit)
}

// Recent is the unfiltered, paginated feed behind the admin audit-log view.
func (l *Logger) Recent(limit, offset int) ([]models.AuditEntry, int64, error) {
	return l.repo.ListRecent(limit, offset)
}
