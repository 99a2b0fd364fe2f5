// Package tradingengine is the Trading Engine (C6): an in-memory ledger
// mirroring database positions and balances, shared by the paper and live
// execution paths. Grounded on the teacher's internal/trading/sandbox.go
// (SandboxTrader: VirtualBalance + Trades + sync.RWMutex-guarded
// ExecuteTrade/CloseTrade), generalized from a spot-only sandbox into
// leveraged LONG/SHORT with fees, liquidation, and stop-loss/take-profit.
package tradingengine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// Fees, cooldown, and other tunables the engine needs per call — read from
// config.Settings by the caller, passed in by value so the engine package
// never imports config (keeps the dependency direction leaf-ward).
type Params struct {
	MinimumTradeSizeUSD      float64
	SymbolCooldown           time.Duration
	MinimumPositionDuration  time.Duration
	EntryFeeRate             float64
	ExitFeeRate              float64
	MaintenanceMarginRate    float64
	GlobalTradingSymbols     []string
}

// OpenOutcome is the result of a successful (possibly clamped) open.
type OpenOutcome struct {
	Position *models.Position
	Trade    *models.Trade
	Note     string
}

// CloseOutcome is the result of a close, whether explicit or forced.
type CloseOutcome struct {
	Position *models.Position
	Trade    *models.Trade
	Note     string
}

func sign(side string) float64 {
	if side == models.SideShort {
		return -1
	}
	return 1
}

// Open implements §4.6.1 steps 1-5. now is passed in (not time.Now()) so the
// whole flow is deterministic and testable.
func Open(rt *Runtime, market MarketSnapshot, p Params, now time.Time, symbol, side string, size, leverage float64, stopLoss, takeProfit *float64) (*OpenOutcome, error) {
	allowed := rt.AllowedSymbols(p.GlobalTradingSymbols)
	if !symbolAllowed(allowed, symbol) {
		return nil, apierr.New(apierr.Validation, "symbol not in bot's allowed list")
	}
	if remaining := rt.CooldownRemaining(symbol, now); remaining > 0 {
		return nil, apierr.New(apierr.Validation, "symbol is on cooldown")
	}
	if existing := rt.OpenPositionForSymbol(symbol); existing != nil {
		if now.Sub(existing.OpenedAt) < p.MinimumPositionDuration {
			return nil, apierr.New(apierr.Validation, "minimum position duration not satisfied")
		}
		return nil, apierr.New(apierr.Validation, "a position for this symbol is already open")
	}
	if leverage <= 0 {
		return nil, apierr.New(apierr.Validation, "leverage must be positive")
	}

	mark, ok := market[symbol]
	if !ok {
		return nil, apierr.New(apierr.Validation, "no market price for symbol")
	}

	note := ""
	if size < p.MinimumTradeSizeUSD {
		return nil, apierr.New(apierr.Validation, "requested size below minimum trade size")
	}

	required := size/leverage + size*p.EntryFeeRate
	if required > rt.Balance {
		// Clamp to the maximum feasible size (§4.6.3): solve
		// balance = size/leverage + size*entry_fee_rate for size.
		clamped := rt.Balance / (1/leverage + p.EntryFeeRate)
		if clamped < p.MinimumTradeSizeUSD {
			return nil, apierr.New(apierr.Validation, "insufficient balance even after clamping")
		}
		size = clamped
		note = "size clamped to available balance"
		required = size/leverage + size*p.EntryFeeRate
	}

	entryFee := round2(size * p.EntryFeeRate)
	rt.Balance -= required

	liqPrice := liquidationPrice(side, mark.Price, leverage, p.MaintenanceMarginRate)

	pos := &models.Position{
		OwnerID:          rt.Bot.OwnerID,
		BotID:            rt.Bot.ID,
		Symbol:           symbol,
		Side:             side,
		EntryPrice:       mark.Price,
		Size:             size,
		Leverage:         leverage,
		LiquidationPrice: liqPrice,
		StopLoss:         stopLoss,
		TakeProfit:       takeProfit,
		Status:           models.PositionOpen,
		OpenedAt:         now,
	}
	trade := &models.Trade{
		OwnerID:    rt.Bot.OwnerID,
		BotID:      rt.Bot.ID,
		Symbol:     symbol,
		Side:       side,
		Action:     models.ActionOpen,
		EntryPrice: mark.Price,
		Size:       size,
		Leverage:   leverage,
		Fee:        entryFee,
		ExecutedAt: now,
	}
	return &OpenOutcome{Position: pos, Trade: trade, Note: note}, nil
}

// OpenLive mirrors Open's validation (symbol allowed, cooldown, existing
// position, leverage, minimum size) but takes its price and fee from a
// live exchange adapter's Fill rather than the market snapshot and the
// fee-rate config, per §4.6.2 "the adapter's response is the source of
// truth for fills" (live mode, §6 Exchange adapter).
func OpenLive(rt *Runtime, p Params, now time.Time, symbol, side string, size, leverage float64, stopLoss, takeProfit *float64, fill Fill) (*OpenOutcome, error) {
	allowed := rt.AllowedSymbols(p.GlobalTradingSymbols)
	if !symbolAllowed(allowed, symbol) {
		return nil, apierr.New(apierr.Validation, "symbol not in bot's allowed list")
	}
	if remaining := rt.CooldownRemaining(symbol, now); remaining > 0 {
		return nil, apierr.New(apierr.Validation, "symbol is on cooldown")
	}
	if existing := rt.OpenPositionForSymbol(symbol); existing != nil {
		if now.Sub(existing.OpenedAt) < p.MinimumPositionDuration {
			return nil, apierr.New(apierr.Validation, "minimum position duration not satisfied")
		}
		return nil, apierr.New(apierr.Validation, "a position for this symbol is already open")
	}
	if leverage <= 0 {
		return nil, apierr.New(apierr.Validation, "leverage must be positive")
	}
	if size < p.MinimumTradeSizeUSD {
		return nil, apierr.New(apierr.Validation, "requested size below minimum trade size")
	}

	entryFee := round2(fill.Fee)
	rt.Balance -= size/leverage + entryFee

	liqPrice := liquidationPrice(side, fill.Price, leverage, p.MaintenanceMarginRate)

	pos := &models.Position{
		OwnerID:          rt.Bot.OwnerID,
		BotID:            rt.Bot.ID,
		Symbol:           symbol,
		Side:             side,
		EntryPrice:       fill.Price,
		Size:             size,
		Leverage:         leverage,
		LiquidationPrice: liqPrice,
		StopLoss:         stopLoss,
		TakeProfit:       takeProfit,
		ExchangeRef:      fill.PositionRef,
		Status:           models.PositionOpen,
		OpenedAt:         now,
	}
	trade := &models.Trade{
		OwnerID:    rt.Bot.OwnerID,
		BotID:      rt.Bot.ID,
		Symbol:     symbol,
		Side:       side,
		Action:     models.ActionOpen,
		EntryPrice: fill.Price,
		Size:       size,
		Leverage:   leverage,
		Fee:        entryFee,
		ExecutedAt: now,
	}
	return &OpenOutcome{Position: pos, Trade: trade}, nil
}

// CloseLive mirrors Close using a live settlement's exit price and fee
// instead of the market snapshot (§4.6.2). realizedPnL is derived here from
// entry/exit price, since Settlement carries only the exit price and fee and
// the adapter's close response has no view of the position's entry price.
func CloseLive(rt *Runtime, p Params, now time.Time, pos *models.Position, note string, settlement Settlement) *CloseOutcome {
	exitFee := round2(settlement.Fee)
	realizedPnL := round2((settlement.ExitPrice-pos.EntryPrice)*(pos.Size/pos.EntryPrice)*sign(pos.Side) - exitFee)

	rt.Balance += pos.Size/pos.Leverage + realizedPnL

	pos.Status = models.PositionClosed
	closedAt := now
	pos.ClosedAt = &closedAt
	rt.RemovePosition(pos.ID)
	rt.SetCooldown(pos.Symbol, now, p.SymbolCooldown)

	trade := &models.Trade{
		OwnerID:     rt.Bot.OwnerID,
		BotID:       rt.Bot.ID,
		PositionID:  &pos.ID,
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		Action:      models.ActionClose,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   floatPtr(settlement.ExitPrice),
		Size:        pos.Size,
		Leverage:    pos.Leverage,
		RealizedPnL: realizedPnL,
		Fee:         exitFee,
		Note:        note,
		ExecutedAt:  now,
	}
	return &CloseOutcome{Position: pos, Trade: trade, Note: note}
}

func liquidationPrice(side string, entry, leverage, maintenanceMarginRate float64) float64 {
	if side == models.SideShort {
		return entry * (1 + 1/leverage - maintenanceMarginRate)
	}
	return entry * (1 - 1/leverage + maintenanceMarginRate)
}

// unrealizedPnL implements the §4.6.1 mark-to-market formula.
func unrealizedPnL(pos *models.Position, mark float64) float64 {
	return (mark - pos.EntryPrice) * (pos.Size / pos.EntryPrice) * sign(pos.Side)
}

// MarkToMarket updates unrealized pnl for every open position and returns
// the set that must be force-closed this tick (liquidation or SL/TP),
// highest-priority reason first per position. Tie-break order per §4.6.3:
// liquidation beats stop-loss beats take-profit.
func MarkToMarket(rt *Runtime, market MarketSnapshot, now time.Time) []forcedClose {
	var forced []forcedClose
	for _, pos := range rt.Positions {
		mark, ok := market[pos.Symbol]
		if !ok {
			continue
		}
		pnl := unrealizedPnL(pos, mark.Price)
		pos.UnrealizedPnL = pnl

		maxLoss := -pos.Size / pos.Leverage
		switch {
		case pnl <= maxLoss:
			forced = append(forced, forcedClose{position: pos, exitPrice: pos.LiquidationPrice, note: models.CloseNoteLiquidated})
		case stopLossBreached(pos, mark.Price):
			forced = append(forced, forcedClose{position: pos, exitPrice: *pos.StopLoss, note: models.CloseNoteStopLoss})
		case takeProfitBreached(pos, mark.Price):
			forced = append(forced, forcedClose{position: pos, exitPrice: *pos.TakeProfit, note: models.CloseNoteTakeProfit})
		}
	}
	return forced
}

type forcedClose struct {
	position  *models.Position
	exitPrice float64
	note      string
}

// stopLossBreached/takeProfitBreached are nil-safe: a bot that didn't set
// one never force-closes on it. LONG stop-loss triggers on the way down,
// take-profit on the way up; SHORT is the mirror.
func stopLossBreached(pos *models.Position, mark float64) bool {
	if pos.StopLoss == nil {
		return false
	}
	if pos.Side == models.SideLong {
		return mark <= *pos.StopLoss
	}
	return mark >= *pos.StopLoss
}

func takeProfitBreached(pos *models.Position, mark float64) bool {
	if pos.TakeProfit == nil {
		return false
	}
	if pos.Side == models.SideLong {
		return mark >= *pos.TakeProfit
	}
	return mark <= *pos.TakeProfit
}

// Close implements §4.6.1 Close steps 1-5, used for both explicit CLOSE
// decisions and MarkToMarket's forced closes.
func Close(rt *Runtime, p Params, now time.Time, pos *models.Position, exitPrice float64, note string) *CloseOutcome {
	exitFee := round2(pos.Size * p.ExitFeeRate)
	realizedPnL := round2((exitPrice-pos.EntryPrice)*(pos.Size/pos.EntryPrice)*sign(pos.Side) - exitFee)

	rt.Balance += pos.Size/pos.Leverage + realizedPnL

	pos.Status = models.PositionClosed
	closedAt := now
	pos.ClosedAt = &closedAt
	rt.RemovePosition(pos.ID)
	rt.SetCooldown(pos.Symbol, now, p.SymbolCooldown)

	trade := &models.Trade{
		OwnerID:     rt.Bot.OwnerID,
		BotID:       rt.Bot.ID,
		PositionID:  &pos.ID,
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		Action:      models.ActionClose,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   floatPtr(exitPrice),
		Size:        pos.Size,
		Leverage:    pos.Leverage,
		RealizedPnL: realizedPnL,
		Fee:         exitFee,
		Note:        note,
		ExecutedAt:  now,
	}
	return &CloseOutcome{Position: pos, Trade: trade, Note: note}
}

func floatPtr(f float64) *float64 { return &f }

// round2 rounds a currency-facing value to 2 decimal places using
// shopspring/decimal rather than float64 scaling, so repeated fee/pnl
// rounding across a position's lifecycle never accumulates binary-float
// drift (§8.4 invariant checks compare these stored values directly).
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
