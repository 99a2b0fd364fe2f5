package decisionloop

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/config"
	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/llm"
	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/internal/summarizer"
	"github.com/arenahq/bot-arena/internal/tokentracker"
	"github.com/arenahq/bot-arena/internal/tradingengine"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

const maxToolIterations = 5

// Loop is one invocation per bot turn (§4.7): it owns prompt assembly, the
// tool-calling loop, decision-to-engine execution, and persistence.
type Loop struct {
	dispatch    *llm.Dispatcher
	tracker     *tokentracker.Tracker
	decisions   *database.DecisionRepository
	trades      *database.TradeRepository
	summarizer  *summarizer.Summarizer
	settings    *config.Settings
}

func New(dispatch *llm.Dispatcher, tracker *tokentracker.Tracker, decisions *database.DecisionRepository, trades *database.TradeRepository, summarizerSvc *summarizer.Summarizer, settings *config.Settings) *Loop {
	return &Loop{dispatch: dispatch, tracker: tracker, decisions: decisions, trades: trades, summarizer: summarizerSvc, settings: settings}
}

// Deps is per-turn context the scheduler assembles fresh each invocation.
type Deps struct {
	Runtime        *tradingengine.Runtime
	Provider       *models.Provider
	OwnerSalt      string
	Market         tradingengine.MarketSnapshot
	RecentTrades   []models.Trade
	RecentDecisions []models.Decision
	Summary        string
	Params         tradingengine.Params
	// Adapter is non-nil only for live-mode bots (§4.6.2); paper bots settle
	// entirely against the in-process ledger and never see one.
	Adapter tradingengine.Adapter
}

// Run executes exactly one turn. It never panics on a malformed LLM
// response; a failed LLM call or a response that does not parse as actions
// degrades to an error Decision row with success=false, per §4.7.3. The
// returned error is non-nil only when persisting the turn fails.
func (l *Loop) Run(ctx context.Context, d Deps) error {
	rt := d.Runtime
	now := time.Now()

	// Mark-to-market runs once per turn for every open position, ahead of
	// the LLM call, regardless of what the bot decides (§4.6.1).
	live := rt.Bot.Mode == models.ModeReal && d.Adapter != nil
	var forcedNotes []string
	for _, forced := range tradingengine.MarkToMarket(rt, d.Market, now) {
		var outcome *tradingengine.CloseOutcome
		if live {
			var err error
			outcome, err = l.closeLive(rt, d, forced.position, now, forced.note)
			if err != nil {
				log.Printf("[DECISIONLOOP][WARN] bot=%d failed to force-close via adapter: %v", rt.Bot.ID, err)
				continue
			}
		} else {
			outcome = tradingengine.Close(rt, d.Params, now, forced.position, forced.exitPrice, forced.note)
		}
		if err := l.trades.WriteClose(outcome.Position, outcome.Trade, snapshotFor(rt, now)); err != nil {
			log.Printf("[DECISIONLOOP][WARN] bot=%d failed to persist forced close: %v", rt.Bot.ID, err)
			continue
		}
		forcedNotes = append(forcedNotes, fmt.Sprintf("%s force-closed %s at %.2f", forced.note, forced.position.Symbol, forced.exitPrice))
	}

	openPositions := make([]models.Position, 0, len(rt.Positions))
	for _, p := range rt.Positions {
		openPositions = append(openPositions, *p)
	}
	cooldowns := make(map[string]time.Duration)
	for symbol := range rt.Cooldowns {
		if remaining := rt.CooldownRemaining(symbol, now); remaining > 0 {
			cooldowns[symbol] = remaining
		}
	}

	base := contextInputs{
		Bot:             rt.Bot,
		Balance:         rt.Balance,
		OpenPositions:   openPositions,
		RecentTrades:    d.RecentTrades,
		Cooldowns:       cooldowns,
		Market:          d.Market,
		AllowedSymbols:  rt.AllowedSymbols(d.Params.GlobalTradingSymbols),
		RecentDecisions: d.RecentDecisions,
		Summary:         d.Summary,
		Now:             now,
	}
	for _, p := range openPositions {
		base.UnrealizedPnL += p.UnrealizedPnL
	}

	var analyses []analysisEntry
	var finalActions []models.ParsedAction
	notes := append([]string{}, forcedNotes...)
	prompt := assemblePrompt(base)
	iterationsTaken := 0

	for iteration := 1; iteration <= maxToolIterations; iteration++ {
		iterationsTaken = iteration
		result, callErr := l.callWithRetry(ctx, d.Provider, d.OwnerSalt, prompt, llm.KindDecision)
		if l.tracker != nil && result != nil {
			_ = l.tracker.Track(tokentracker.Event{
				OwnerID:    rt.Bot.OwnerID,
				BotID:      rt.Bot.ID,
				ProviderID: d.Provider.ID,
				Variant:    d.Provider.Variant,
				Model:      d.Provider.Model,
				Kind:       llm.KindDecision,
				Usage:      result.Usage,
				LatencyMs:  result.LatencyMs,
				At:         now,
			})
		}
		if callErr != nil {
			notes = append(notes, fmt.Sprintf("llm call failed: %v", callErr))
			return l.persistFailure(rt, prompt, notes, now, iterationsTaken)
		}

		actions, parseErr := parseActions(result.Text)
		if parseErr != nil {
			notes = append(notes, fmt.Sprintf("llm response could not be parsed: %v", parseErr))
			return l.persistFailure(rt, prompt, notes, now, iterationsTaken)
		}
		if len(actions) == 0 {
			finalActions = []models.ParsedAction{{Action: models.ActionHold}}
			break
		}

		var analyzeActions, otherActions []models.ParsedAction
		for _, a := range actions {
			if a.Action == models.ActionAnalyze {
				analyzeActions = append(analyzeActions, a)
			} else {
				otherActions = append(otherActions, a)
			}
		}

		if len(analyzeActions) == 0 {
			finalActions = otherActions
			break
		}

		if iteration == maxToolIterations {
			notes = append(notes, "max tool iterations reached; discarding remaining ANALYZE calls")
			finalActions = otherActions
			break
		}

		for _, a := range analyzeActions {
			toolResult, toolErr := RunTool(a.Tool, d.Market, a.Parameters)
			if toolErr != nil {
				toolResult = map[string]interface{}{"error": toolErr.Error()}
			}
			analyses = append(analyses, analysisEntry{Tool: a.Tool, Params: a.Parameters, Result: toolResult})
		}
		base.Analyses = analyses
		prompt = assemblePrompt(base)
	}

	success := true
	mutatedPosition := false
	var writes []pendingWrite
	for _, action := range finalActions {
		pw, err := l.apply(rt, d, action, now, &notes)
		if err != nil {
			notes = append(notes, err.Error())
			success = false
			continue
		}
		if pw != nil {
			writes = append(writes, *pw)
			mutatedPosition = true
		}
	}

	decisionRows := make(models.JSONList, 0, len(finalActions))
	for _, a := range finalActions {
		encoded, _ := json.Marshal(a)
		var m map[string]interface{}
		_ = json.Unmarshal(encoded, &m)
		decisionRows = append(decisionRows, m)
	}

	decision := &models.Decision{
		OwnerID:        rt.Bot.OwnerID,
		BotID:          rt.Bot.ID,
		Prompt:         prompt,
		Decisions:      decisionRows,
		Notes:          models.StringList(notes),
		IterationCount: iterationsTaken,
		Success:        success,
		Timestamp:      now,
	}

	// Position/trade/snapshot writes from this turn's actions, the Decision
	// row describing them, and the HOLD-only mark-to-market snapshot all
	// land in one transaction — a crash mid-turn must never leave a trade or
	// position with no corresponding Decision row (§4.1).
	err := l.trades.WriteTurn(func(tx *gorm.DB) error {
		for i := range writes {
			w := &writes[i]
			var werr error
			switch w.kind {
			case pendingOpen:
				werr = database.WriteOpenTx(tx, w.position, w.trade, w.snapshot)
			case pendingClose:
				werr = database.WriteCloseTx(tx, w.position, w.trade, w.snapshot)
			}
			if werr != nil {
				return werr
			}
		}
		if err := l.decisions.CreateTx(tx, decision); err != nil {
			return err
		}
		if !mutatedPosition {
			if err := database.WriteHoldTx(tx, snapshotFor(rt, now)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if l.summarizer != nil {
		go func() {
			if err := l.summarizer.MaybeSummarize(context.Background(), rt.Bot, d.Provider, d.OwnerSalt, prompt); err != nil {
				log.Printf("[DECISIONLOOP][WARN] bot=%d summarization error: %v", rt.Bot.ID, err)
			}
		}()
	}

	return nil
}

// callWithRetry retries once with a short backoff on Timeout/RateLimit
// classified errors, per §4.7.3.
func (l *Loop) callWithRetry(ctx context.Context, provider *models.Provider, ownerSalt, prompt string, kind llm.Kind) (*llm.Result, error) {
	result, err := l.dispatch.Call(ctx, provider, ownerSalt, prompt, kind)
	if err != nil && llm.IsRetryable(err) {
		time.Sleep(300 * time.Millisecond)
		return l.dispatch.Call(ctx, provider, ownerSalt, prompt, kind)
	}
	return result, err
}

// pendingWriteKind distinguishes the two shapes of position mutation a turn
// can produce; both still need a Position + Trade + Snapshot write, just
// against a different SQL statement (insert vs. status update).
type pendingWriteKind int

const (
	pendingOpen pendingWriteKind = iota
	pendingClose
)

// pendingWrite captures one action's already-computed in-memory effect,
// deferring the actual persistence until Run can fold it into the single
// transaction spanning the whole turn (§4.1).
type pendingWrite struct {
	kind     pendingWriteKind
	position *models.Position
	trade    *models.Trade
	snapshot *models.Snapshot
}

// apply runs one parsed action against the in-memory runtime and, for
// actions that mutate a position, returns the write it still needs
// persisted. It never touches the database itself — Run persists every
// action's effect alongside the turn's Decision row in one transaction.
func (l *Loop) apply(rt *tradingengine.Runtime, d Deps, action models.ParsedAction, now time.Time, notes *[]string) (*pendingWrite, error) {
	live := rt.Bot.Mode == models.ModeReal && d.Adapter != nil

	switch action.Action {
	case models.ActionLong, models.ActionShort:
		var outcome *tradingengine.OpenOutcome
		var err error
		if live {
			outcome, err = l.openLive(rt, d, action, now)
		} else {
			outcome, err = tradingengine.Open(rt, d.Market, d.Params, now, action.Symbol, action.Action, action.Size, action.Leverage, action.StopLoss, action.TakeProfit)
		}
		if err != nil {
			return nil, err
		}
		if outcome.Note != "" {
			*notes = append(*notes, outcome.Note)
		}
		pw := &pendingWrite{kind: pendingOpen, position: outcome.Position, trade: outcome.Trade, snapshot: snapshotFor(rt, now)}
		rt.Positions[outcome.Position.ID] = outcome.Position
		return pw, nil
	case models.ActionCloseOp:
		pos, ok := rt.Positions[action.PositionID]
		if !ok {
			return nil, apierr.New(apierr.Validation, "no open position with that id")
		}
		var outcome *tradingengine.CloseOutcome
		if live {
			var err error
			outcome, err = l.closeLive(rt, d, pos, now, models.CloseNoteManual)
			if err != nil {
				return nil, err
			}
		} else {
			mark, ok := d.Market[pos.Symbol]
			if !ok {
				return nil, apierr.New(apierr.Validation, "no market price to close at")
			}
			outcome = tradingengine.Close(rt, d.Params, now, pos, mark.Price, models.CloseNoteManual)
		}
		return &pendingWrite{kind: pendingClose, position: outcome.Position, trade: outcome.Trade, snapshot: snapshotFor(rt, now)}, nil
	case models.ActionHold:
		return nil, nil
	default:
		return nil, apierr.New(apierr.Validation, "unrecognized action "+action.Action)
	}
}

// exchangeTimeout bounds every live adapter call (§5 Timeouts: "Exchange
// adapter calls have a shorter timeout, default 10s").
const exchangeTimeout = 10 * time.Second

func (l *Loop) openLive(rt *tradingengine.Runtime, d Deps, action models.ParsedAction, now time.Time) (*tradingengine.OpenOutcome, error) {
	ctx, cancel := context.WithTimeout(context.Background(), exchangeTimeout)
	defer cancel()
	fill, err := d.Adapter.OpenPosition(ctx, action.Action, action.Symbol, action.Size, action.Leverage, action.StopLoss, action.TakeProfit)
	if err != nil {
		return nil, apierr.Wrap(apierr.ExchangeCallFailed, "open position", err)
	}
	return tradingengine.OpenLive(rt, d.Params, now, action.Symbol, action.Action, action.Size, action.Leverage, action.StopLoss, action.TakeProfit, fill)
}

func (l *Loop) closeLive(rt *tradingengine.Runtime, d Deps, pos *models.Position, now time.Time, note string) (*tradingengine.CloseOutcome, error) {
	ctx, cancel := context.WithTimeout(context.Background(), exchangeTimeout)
	defer cancel()
	settlement, err := d.Adapter.ClosePosition(ctx, pos.ExchangeRef)
	if err != nil {
		return nil, apierr.Wrap(apierr.ExchangeCallFailed, "close position", err)
	}
	return tradingengine.CloseLive(rt, d.Params, now, pos, note, settlement), nil
}

func (l *Loop) persistFailure(rt *tradingengine.Runtime, prompt string, notes []string, now time.Time, iterationsTaken int) error {
	return l.decisions.Create(&models.Decision{
		OwnerID:        rt.Bot.OwnerID,
		BotID:          rt.Bot.ID,
		Prompt:         prompt,
		Decisions:      models.JSONList{},
		Notes:          models.StringList(notes),
		IterationCount: iterationsTaken,
		Success:        false,
		Timestamp:      now,
	})
}

func snapshotFor(rt *tradingengine.Runtime, now time.Time) *models.Snapshot {
	var unrealized float64
	for _, p := range rt.Positions {
		unrealized += p.UnrealizedPnL
	}
	return &models.Snapshot{
		OwnerID:       rt.Bot.OwnerID,
		BotID:         rt.Bot.ID,
		Balance:       rt.Balance,
		UnrealizedPnL: unrealized,
		TotalValue:    rt.Balance + unrealized,
		TradeCount:    len(rt.Positions),
		Timestamp:     now,
	}
}

// parseActions parses an LLM response into the normalized action list.
// Responses are sometimes wrapped in a markdown code fence; strip that
// before decoding.
func parseActions(text string) ([]models.ParsedAction, error) {
	cleaned := stripMarkdownCodeFence(text)
	var actions []models.ParsedAction
	if err := json.Unmarshal([]byte(cleaned), &actions); err == nil {
		return actions, nil
	}
	var single models.ParsedAction
	if err := json.Unmarshal([]byte(cleaned), &single); err == nil {
		return []models.ParsedAction{single}, nil
	}
	return nil, fmt.Errorf("malformed response: not a JSON action or action array")
}

func stripMarkdownCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
