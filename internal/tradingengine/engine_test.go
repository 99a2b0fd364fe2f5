package tradingengine

import (
	"testing"
	"time"

	"github.com/arenahq/bot-arena/internal/models"
)

func testParams() Params {
	return Params{
		MinimumTradeSizeUSD:     10,
		SymbolCooldown:          5 * time.Minute,
		MinimumPositionDuration: time.Minute,
		EntryFeeRate:            0.0003,
		ExitFeeRate:             0.0003,
		MaintenanceMarginRate:   0.005,
		GlobalTradingSymbols:    []string{"BTCUSDT"},
	}
}

// TestPaperLongRoundTrip mirrors spec scenario S1: 10000 balance, LONG
// BTCUSDT size=2000 leverage=10 at 69500, take-profit at 73000.
func TestPaperLongRoundTrip(t *testing.T) {
	bot := &models.Bot{OwnerID: 1, Mode: models.ModePaper}
	bot.ID = 7
	rt := NewRuntime(bot, 10000, nil)
	p := testParams()
	now := time.Now()
	market := MarketSnapshot{"BTCUSDT": {Price: 69500}}
	tp := 73000.0
	sl := 67500.0

	outcome, err := Open(rt, market, p, now, "BTCUSDT", models.SideLong, 2000, 10, &sl, &tp)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	wantBalance := 10000 - 200 - 0.6
	if diff := rt.Balance - wantBalance; diff > 0.0001 || diff < -0.0001 {
		t.Fatalf("expected balance %.4f, got %.4f", wantBalance, rt.Balance)
	}
	if outcome.Trade.Fee != 0.6 {
		t.Fatalf("expected entry fee 0.6, got %v", outcome.Trade.Fee)
	}
	rt.Positions[outcome.Position.ID] = outcome.Position

	market["BTCUSDT"] = MarketPrice{Price: 73000}
	forced := MarkToMarket(rt, market, now.Add(time.Minute))
	if len(forced) != 1 {
		t.Fatalf("expected 1 forced close, got %d", len(forced))
	}
	if forced[0].note != models.CloseNoteTakeProfit {
		t.Fatalf("expected take_profit note, got %s", forced[0].note)
	}

	closeOutcome := Close(rt, p, now.Add(time.Minute), forced[0].position, forced[0].exitPrice, forced[0].note)
	if closeOutcome.Trade.RealizedPnL <= 0 {
		t.Fatalf("expected positive realized pnl, got %v", closeOutcome.Trade.RealizedPnL)
	}
	if len(rt.Positions) != 0 {
		t.Fatal("expected position removed from runtime after close")
	}
	if rt.CooldownRemaining("BTCUSDT", now.Add(time.Minute)) <= 0 {
		t.Fatal("expected cooldown set on close")
	}
}

func TestOpenRejectsSymbolNotAllowed(t *testing.T) {
	bot := &models.Bot{OwnerID: 1}
	rt := NewRuntime(bot, 10000, nil)
	p := testParams()
	_, err := Open(rt, MarketSnapshot{"ETHUSDT": {Price: 100}}, p, time.Now(), "ETHUSDT", models.SideLong, 100, 5, nil, nil)
	if err == nil {
		t.Fatal("expected rejection for disallowed symbol")
	}
}

func TestOpenClampsWhenBalanceInsufficient(t *testing.T) {
	bot := &models.Bot{OwnerID: 1}
	rt := NewRuntime(bot, 100, nil)
	p := testParams()
	outcome, err := Open(rt, MarketSnapshot{"BTCUSDT": {Price: 100}}, p, time.Now(), "BTCUSDT", models.SideLong, 2000, 10, nil, nil)
	if err != nil {
		t.Fatalf("expected clamp not reject: %v", err)
	}
	if outcome.Note == "" {
		t.Fatal("expected a clamp note")
	}
	if rt.Balance < -0.0001 {
		t.Fatalf("balance went negative: %v", rt.Balance)
	}
}

func TestLiquidationBeatsStopLoss(t *testing.T) {
	bot := &models.Bot{OwnerID: 1}
	rt := NewRuntime(bot, 10000, nil)
	sl := 69000.0
	pos := &models.Position{Symbol: "BTCUSDT", Side: models.SideLong, EntryPrice: 70000, Size: 1000, Leverage: 5, StopLoss: &sl}
	pos.ID = 1
	rt.Positions[1] = pos

	forced := MarkToMarket(rt, MarketSnapshot{"BTCUSDT": {Price: 55000}}, time.Now())
	if len(forced) != 1 || forced[0].note != models.CloseNoteLiquidated {
		t.Fatalf("expected liquidation to win, got %+v", forced)
	}
}
