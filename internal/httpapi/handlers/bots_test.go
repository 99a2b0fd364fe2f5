package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arenahq/bot-arena/internal/audit"
	"github.com/arenahq/bot-arena/internal/config"
	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/internal/scheduler"
)

func newBotsTestHandler(t *testing.T) (*BotsHandler, *database.BotRepository, *database.AuditRepository, uint) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrateAll(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	bots := database.NewBotRepository(db)
	providers := database.NewProviderRepository(db)
	positions := database.NewPositionRepository(db)
	trades := database.NewTradeRepository(db)
	decisions := database.NewDecisionRepository(db)
	snapshots := database.NewSnapshotRepository(db)
	history := database.NewHistorySummaryRepository(db)
	auditRepo := database.NewAuditRepository(db)
	auditLog := audit.New(auditRepo)
	settings := &config.Settings{}
	sched := scheduler.New(nil, bots, nil, nil, nil, nil, nil, settings, nil, nil, nil, nil, "")

	owner := uint(1)
	bot := &models.Bot{OwnerID: owner, StableID: "bot-1", Name: "b", SystemPrompt: "x", ProviderID: 1, Mode: models.ModePaper, Active: true}
	if err := bots.Create(bot); err != nil {
		t.Fatalf("seed bot: %v", err)
	}

	h := NewBotsHandler(bots, providers, positions, trades, decisions, snapshots, history, settings, sched, auditLog)
	return h, bots, auditRepo, owner
}

func botTestContext(method, url string, body interface{}, botID, owner uint) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, url, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: idString(botID)}}
	withUser(c, owner)
	return c, rec
}

// TestBotsPauseWritesAuditEntryEveryCall covers spec.md §8 testable
// property 8: pausing twice leaves the bot in the same state but writes two
// audit entries, not zero.
func TestBotsPauseWritesAuditEntryEveryCall(t *testing.T) {
	h, bots, auditRepo, owner := newBotsTestHandler(t)
	all, err := bots.ListForOwner(owner)
	if err != nil {
		t.Fatalf("ListForOwner: %v", err)
	}
	botID := all[0].ID

	for i := 0; i < 2; i++ {
		c, rec := botTestContext(http.MethodPost, "/bots/x/pause", gin.H{"paused": true}, botID, owner)
		h.Pause(c)
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d: %s", i+1, rec.Code, rec.Body.String())
		}
	}

	entries, err := auditRepo.ListForEntity("bot", idString(botID), 10)
	if err != nil {
		t.Fatalf("ListForEntity: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected at least 2 audit entries across 2 pause calls, got %d", len(entries))
	}
	pauseEntries, _, err := auditRepo.ListRecent(50, 0)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	count := 0
	for _, e := range pauseEntries {
		if e.EventType == "bot.pause" {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("expected 2 bot.pause audit entries, got %d", count)
	}
}

// TestBotsClearLearningWritesAuditEntry covers the same §7 audit policy for
// the clear-learning mutation.
func TestBotsClearLearningWritesAuditEntry(t *testing.T) {
	h, bots, auditRepo, owner := newBotsTestHandler(t)
	all, err := bots.ListForOwner(owner)
	if err != nil {
		t.Fatalf("ListForOwner: %v", err)
	}
	botID := all[0].ID

	c, rec := botTestContext(http.MethodPost, "/bots/x/clear-learning", nil, botID, owner)
	h.ClearLearning(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	entries, _, err := auditRepo.ListRecent(50, 0)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.EventType == "bot.clear_learning" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a bot.clear_learning audit entry")
	}
}
