package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arenahq/bot-arena/internal/analytics"
	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/models"
)

func newAnalyticsTestHandler(t *testing.T) (*AnalyticsHandler, *database.BotRepository, *database.TradeRepository, *database.SnapshotRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrateAll(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	bots := database.NewBotRepository(db)
	trades := database.NewTradeRepository(db)
	snapshots := database.NewSnapshotRepository(db)
	svc := analytics.New(bots, trades, snapshots)
	return NewAnalyticsHandler(svc), bots, trades, snapshots
}

// withUser stashes userID in the gin context the way middleware.RequireAuth
// would, so handlers calling middleware.UserID(c) see an authenticated caller.
func withUser(c *gin.Context, userID uint) {
	c.Set("userID", userID)
}

func TestAnalyticsPerformanceEmptyForNewOwner(t *testing.T) {
	h, _, _, _ := newAnalyticsTestHandler(t)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analytics/performance", nil)
	withUser(c, 1)

	h.Performance(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	data, ok := body["data"].([]interface{})
	if !ok || len(data) != 0 {
		t.Fatalf("expected an empty performance list, got %v", body["data"])
	}
}

func TestAnalyticsPerformanceForBotIncludesClosedTrades(t *testing.T) {
	h, bots, trades, snapshots := newAnalyticsTestHandler(t)

	bot := &models.Bot{OwnerID: 7, StableID: "s1", Name: "b1", SystemPrompt: "x", ProviderID: 1, Mode: models.ModePaper, Active: true}
	if err := bots.Create(bot); err != nil {
		t.Fatalf("create bot: %v", err)
	}
	now := time.Now()
	pos := &models.Position{OwnerID: 7, BotID: bot.ID, Symbol: "BTCUSDT", Side: "LONG", EntryPrice: 100, Size: 1000, Leverage: 5, Status: models.PositionOpen, OpenedAt: now}
	trade := &models.Trade{OwnerID: 7, BotID: bot.ID, Symbol: "BTCUSDT", Side: "LONG", Action: "OPEN", EntryPrice: 100, Size: 1000, Leverage: 5, ExecutedAt: now}
	snap := &models.Snapshot{OwnerID: 7, BotID: bot.ID, Balance: 1000, TotalValue: 1000, Timestamp: now}
	if err := trades.WriteOpen(pos, trade, snap); err != nil {
		t.Fatalf("WriteOpen: %v", err)
	}

	exitPrice := 110.0
	closeTrade := &models.Trade{OwnerID: 7, BotID: bot.ID, Symbol: "BTCUSDT", Side: "LONG", Action: "CLOSE", EntryPrice: 100, ExitPrice: &exitPrice, Size: 1000, Leverage: 5, RealizedPnL: 100, ExecutedAt: now.Add(time.Minute)}
	pos.Status = models.PositionClosed
	closedAt := now.Add(time.Minute)
	pos.ClosedAt = &closedAt
	closeSnap := &models.Snapshot{OwnerID: 7, BotID: bot.ID, Balance: 1100, TotalValue: 1100, Timestamp: closedAt}
	if err := trades.WriteClose(pos, closeTrade, closeSnap); err != nil {
		t.Fatalf("WriteClose: %v", err)
	}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analytics/performance/x", nil)
	c.Params = gin.Params{{Key: "botId", Value: idString(bot.ID)}}
	withUser(c, 7)

	h.PerformanceForBot(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	data := body["data"].(map[string]interface{})
	if data["total_pnl"].(float64) != 100 {
		t.Fatalf("expected total_pnl 100, got %v", data["total_pnl"])
	}
}

func TestAnalyticsComparisonRequiresBotIDs(t *testing.T) {
	h, _, _, _ := newAnalyticsTestHandler(t)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analytics/comparison", nil)
	withUser(c, 1)

	h.Comparison(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without bot_ids, got %d", rec.Code)
	}
}

func TestAnalyticsComparisonRejectsNonNumericIDs(t *testing.T) {
	h, _, _, _ := newAnalyticsTestHandler(t)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analytics/comparison?bot_ids=1,abc", nil)
	withUser(c, 1)

	h.Comparison(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-numeric bot id, got %d", rec.Code)
	}
}

func TestAnalyticsBestWorstReturnsNotFoundWithoutHistory(t *testing.T) {
	h, _, _, _ := newAnalyticsTestHandler(t)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analytics/aggregate/best-worst", nil)
	withUser(c, 1)

	h.BestWorst(c)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with no trading history, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAnalyticsSummaryRollsUpOwnerBots(t *testing.T) {
	h, bots, _, _ := newAnalyticsTestHandler(t)
	bot := &models.Bot{OwnerID: 9, StableID: "s2", Name: "b2", SystemPrompt: "x", ProviderID: 1, Mode: models.ModePaper, Active: true}
	if err := bots.Create(bot); err != nil {
		t.Fatalf("create bot: %v", err)
	}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analytics/aggregate/summary", nil)
	withUser(c, 9)

	h.Summary(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	data := body["data"].(map[string]interface{})
	if data["bot_count"].(float64) != 1 {
		t.Fatalf("expected bot_count 1, got %v", data["bot_count"])
	}
}
