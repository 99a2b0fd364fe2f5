package decisionloop

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/llm"
	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/internal/tradingengine"
	"github.com/arenahq/bot-arena/internal/vault"
)

func newRunTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrateAll(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// localResponder serves a scripted sequence of provider "response" bodies,
// one per call, so a test can drive the tool-iteration loop through a known
// number of passes.
func localResponder(t *testing.T, bodies ...string) *httptest.Server {
	t.Helper()
	i := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if i >= len(bodies) {
			t.Fatalf("unexpected extra call to provider (call %d)", i+1)
		}
		resp := bodies[i]
		i++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"response": resp})
	}))
}

func newTestLoop(db *gorm.DB) (*Loop, *database.DecisionRepository, *database.TradeRepository) {
	decisions := database.NewDecisionRepository(db)
	trades := database.NewTradeRepository(db)
	v, _ := vault.New("")
	dispatch := llm.New(v)
	l := New(dispatch, nil, decisions, trades, nil, nil)
	return l, decisions, trades
}

func testBotAndRuntime(provider *models.Provider) (*models.Bot, *tradingengine.Runtime) {
	bot := &models.Bot{OwnerID: 1, StableID: "s1", Name: "test", SystemPrompt: "x", ProviderID: provider.ID, Mode: models.ModePaper, Active: true}
	bot.ID = 1
	rt := tradingengine.NewRuntime(bot, 1000, nil)
	return bot, rt
}

// TestRunRecordsActualIterationCount drives one ANALYZE pass followed by a
// HOLD so the tool loop stops at iteration 2, and asserts the persisted
// Decision row records 2, not the hardcoded iteration cap.
func TestRunRecordsActualIterationCount(t *testing.T) {
	srv := localResponder(t,
		`[{"action":"ANALYZE","tool":"kelly","parameters":{"win_probability":0.6,"win_loss_ratio":2}}]`,
		`[{"action":"HOLD"}]`,
	)
	defer srv.Close()

	db := newRunTestDB(t)
	l, decisions, _ := newTestLoop(db)

	provider := &models.Provider{Variant: models.VariantLocal, EndpointURL: srv.URL, Model: "test"}
	_, rt := testBotAndRuntime(provider)

	err := l.Run(context.Background(), Deps{
		Runtime:  rt,
		Provider: provider,
		Market:   tradingengine.MarketSnapshot{"BTCUSDT": {Price: 100}},
		Params:   tradingengine.Params{},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows, total, err := decisions.ListForBot(rt.Bot.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListForBot: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("expected exactly one decision row, got %d", total)
	}
	if rows[0].IterationCount != 2 {
		t.Fatalf("expected iteration_count 2 (ANALYZE then HOLD), got %d", rows[0].IterationCount)
	}
	if !rows[0].Success {
		t.Fatalf("expected success=true, got notes=%v", rows[0].Notes)
	}
}

// TestRunPersistsPositionTradeAndDecisionTogether exercises a single-pass
// LONG decision and asserts the Position, Trade, and Decision rows it
// produces all land — the one-transaction-per-turn invariant.
func TestRunPersistsPositionTradeAndDecisionTogether(t *testing.T) {
	srv := localResponder(t, `[{"action":"LONG","symbol":"BTCUSDT","size":100,"leverage":2}]`)
	defer srv.Close()

	db := newRunTestDB(t)
	l, decisions, trades := newTestLoop(db)

	provider := &models.Provider{Variant: models.VariantLocal, EndpointURL: srv.URL, Model: "test"}
	_, rt := testBotAndRuntime(provider)

	err := l.Run(context.Background(), Deps{
		Runtime:  rt,
		Provider: provider,
		Market:   tradingengine.MarketSnapshot{"BTCUSDT": {Price: 100}},
		Params:   tradingengine.Params{},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	_, decisionTotal, err := decisions.ListForBot(rt.Bot.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListForBot: %v", err)
	}
	if decisionTotal != 1 {
		t.Fatalf("expected one decision row, got %d", decisionTotal)
	}

	tradeRows, tradeTotal, err := trades.ListForBot(rt.Bot.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListForBot trades: %v", err)
	}
	if tradeTotal != 1 {
		t.Fatalf("expected one OPEN trade row, got %d", tradeTotal)
	}

	var positionCount int64
	if err := db.Model(&models.Position{}).Where("bot_id = ?", rt.Bot.ID).Count(&positionCount).Error; err != nil {
		t.Fatalf("count positions: %v", err)
	}
	if positionCount != 1 {
		t.Fatalf("expected one position row, got %d", positionCount)
	}
	if tradeRows[0].PositionID == nil {
		t.Fatal("expected the trade to reference the position created in the same transaction")
	}
}
