// Package scheduler is the Bot Manager / Scheduler (C8): one cooperative
// task per active bot, cadenced turns, pause/resume/reset, force-turn
// collapsing, and hot-reload. Grounded on the teacher's goroutine-per-
// worker idiom (internal/websocket.Hub's run loop shape: a struct holding
// channels, a select loop, and a context for shutdown) generalized from one
// hub goroutine into N per-bot goroutines.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/arenahq/bot-arena/internal/broadcast"
	"github.com/arenahq/bot-arena/internal/config"
	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/decisionloop"
	"github.com/arenahq/bot-arena/internal/exchange"
	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/internal/tradingengine"
	"github.com/arenahq/bot-arena/internal/vault"
)

// liveExchangeTag is the only exchange adapter a live-mode bot can bind a
// wallet to today (§6 names the exchange adapter as a single external
// collaborator; Binance USDT-M futures is the one concrete implementation).
const liveExchangeTag = "binance-futures"

// task is the per-bot cooperative runtime: exactly one goroutine reads from
// forceTurn and reload, runs the Decision Loop serially, and exits on
// ctx.Done(). No task shares mutable state with another except through the
// Persistence Store and Broadcast Channel (§4.8.2).
type task struct {
	botID     uint
	cancel    context.CancelFunc
	forceTurn chan struct{}
	reload    chan struct{}
}

// Scheduler owns the set of in-memory bot runtimes.
type Scheduler struct {
	loop     *decisionloop.Loop
	bots     *database.BotRepository
	providers *database.ProviderRepository
	users    *database.UserRepository
	positions *database.PositionRepository
	trades   *database.TradeRepository
	snapshots *database.SnapshotRepository
	settings *config.Settings
	vault    *vault.Vault
	wallets  *database.WalletRepository
	market   MarketSource
	broadcast *broadcast.Hub
	exchangeBaseURL string

	mu        sync.Mutex
	tasks     map[uint]*task
	runtimes  map[uint]*tradingengine.Runtime
	baseCtx   context.Context
}

// MarketSource is the read-mostly shared market snapshot (§4.8.2, §5):
// refreshed by a single background task, read by every bot task via a
// consistent copy.
type MarketSource interface {
	Snapshot() tradingengine.MarketSnapshot
}

func New(loop *decisionloop.Loop, bots *database.BotRepository, providers *database.ProviderRepository, users *database.UserRepository, positions *database.PositionRepository, trades *database.TradeRepository, snapshots *database.SnapshotRepository, settings *config.Settings, v *vault.Vault, wallets *database.WalletRepository, market MarketSource, hub *broadcast.Hub, exchangeBaseURL string) *Scheduler {
	return &Scheduler{
		loop: loop, bots: bots, providers: providers, users: users,
		positions: positions, trades: trades, snapshots: snapshots,
		settings: settings, vault: v, wallets: wallets, market: market, broadcast: hub,
		exchangeBaseURL: exchangeBaseURL,
		tasks:    make(map[uint]*task),
		runtimes: make(map[uint]*tradingengine.Runtime),
	}
}

// Start loads every active bot and spawns its per-bot task (§4.8.1
// start-up).
func (s *Scheduler) Start(ctx context.Context) error {
	s.baseCtx = ctx
	active, err := s.bots.ListActive()
	if err != nil {
		return err
	}
	for i := range active {
		bot := active[i]
		if err := s.spawn(ctx, &bot); err != nil {
			log.Printf("[SCHEDULER][WARN] bot=%d failed to start: %v", bot.ID, err)
		}
	}
	return nil
}

// Spawn adds a newly created (or reactivated) bot to the live task set
// without a process restart, using the context Start was called with.
func (s *Scheduler) Spawn(bot *models.Bot) error {
	if s.baseCtx == nil {
		return nil
	}
	s.mu.Lock()
	_, exists := s.tasks[bot.ID]
	s.mu.Unlock()
	if exists {
		return nil
	}
	return s.spawn(s.baseCtx, bot)
}

// Stop cancels a bot's task and drops its in-memory runtime, used when a
// bot is deleted or deactivated (§4.8.3's per-bot analogue of shutdown).
func (s *Scheduler) Stop(botID uint) {
	s.mu.Lock()
	t, ok := s.tasks[botID]
	delete(s.tasks, botID)
	delete(s.runtimes, botID)
	s.mu.Unlock()
	if ok {
		t.cancel()
	}
}

func (s *Scheduler) spawn(ctx context.Context, bot *models.Bot) error {
	balance, runtime, err := s.loadRuntime(bot)
	if err != nil {
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{botID: bot.ID, cancel: cancel, forceTurn: make(chan struct{}, 1), reload: make(chan struct{}, 1)}

	s.mu.Lock()
	s.tasks[bot.ID] = t
	s.runtimes[bot.ID] = runtime
	s.mu.Unlock()

	_ = balance
	go s.runBotTask(taskCtx, t)
	return nil
}

func (s *Scheduler) loadRuntime(bot *models.Bot) (float64, *tradingengine.Runtime, error) {
	open, err := s.positions.OpenForBot(bot.ID)
	if err != nil {
		return 0, nil, err
	}
	latest, err := s.snapshots.LatestForBot(bot.ID)
	if err != nil {
		return 0, nil, err
	}
	balance := s.initialBalance(bot)
	if latest != nil {
		balance = latest.Balance
	}
	return balance, tradingengine.NewRuntime(bot, balance, open), nil
}

func (s *Scheduler) initialBalance(bot *models.Bot) float64 {
	if bot.Mode == models.ModeReal {
		return s.settings.Float(config.KeyLiveBotInitialBalance)
	}
	return s.settings.Float(config.KeyPaperBotInitialBalance)
}

// runBotTask is the per-bot loop described in §4.8.1: wait for
// max(turn_interval, remaining_cooldown), skip the turn while paused,
// otherwise acquire the bot's lock and run one Decision Loop invocation.
func (s *Scheduler) runBotTask(ctx context.Context, t *task) {
	for {
		s.mu.Lock()
		rt := s.runtimes[t.botID]
		s.mu.Unlock()

		interval := s.settings.Duration(config.KeyTurnIntervalMs)
		if rt != nil {
			if remaining := rt.MaxCooldownRemaining(time.Now()); remaining > interval {
				interval = remaining
			}
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-t.forceTurn:
			timer.Stop()
		case <-t.reload:
			timer.Stop()
			continue
		case <-timer.C:
		}

		s.mu.Lock()
		rt = s.runtimes[t.botID]
		s.mu.Unlock()
		if rt == nil {
			continue
		}
		if rt.Bot.Paused {
			continue
		}

		rt.Lock()
		err := s.runTurn(ctx, rt)
		rt.Unlock()

		status := "ok"
		if err != nil {
			status = "error"
			log.Printf("[SCHEDULER][WARN] bot=%d turn failed: %v", t.botID, err)
		}
		now := time.Now()
		if recErr := s.bots.RecordTurnResult(t.botID, status, &now, err != nil); recErr != nil {
			log.Printf("[SCHEDULER][WARN] bot=%d failed to record turn result: %v", t.botID, recErr)
		}
		if s.broadcast != nil {
			s.broadcast.PushBotUpdate(rt)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (s *Scheduler) runTurn(ctx context.Context, rt *tradingengine.Runtime) error {
	provider, err := s.providers.ByID(rt.Bot.ProviderID)
	if err != nil {
		return err
	}
	owner, err := s.users.ByID(rt.Bot.OwnerID)
	if err != nil {
		return err
	}
	recentTrades, err := s.trades.RecentClosedForBot(rt.Bot.ID, 10)
	if err != nil {
		return err
	}

	params := tradingengine.Params{
		MinimumTradeSizeUSD:     s.settings.Float(config.KeyMinimumTradeSizeUSD),
		SymbolCooldown:          s.settings.Duration(config.KeySymbolCooldownMs),
		MinimumPositionDuration: s.settings.Duration(config.KeyMinimumPositionDurationMs),
		EntryFeeRate:            s.settings.Float(config.KeyEntryFeeRate),
		ExitFeeRate:             s.settings.Float(config.KeyExitFeeRate),
		MaintenanceMarginRate:   s.settings.Float(config.KeyMaintenanceMarginRate),
		GlobalTradingSymbols:    s.settings.StringList(config.KeyTradingSymbols),
	}

	turnCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	var adapter tradingengine.Adapter
	if rt.Bot.Mode == models.ModeReal {
		adapter, err = s.liveAdapter(rt.Bot.ID, owner.EncryptionSalt)
		if err != nil {
			return err
		}
	}

	return s.loop.Run(turnCtx, decisionloop.Deps{
		Runtime:      rt,
		Provider:     provider,
		OwnerSalt:    owner.EncryptionSalt,
		Market:       s.market.Snapshot(),
		RecentTrades: recentTrades,
		Params:       params,
		Adapter:      adapter,
	})
}

// liveAdapter loads the bot's active exchange wallet and decrypts its
// credentials to build a per-turn adapter. Credentials are never cached
// across turns — each live bot re-derives its adapter from the vault every
// turn, consistent with providers doing the same for LLM API keys (§4.2).
func (s *Scheduler) liveAdapter(botID uint, ownerSalt string) (tradingengine.Adapter, error) {
	wallet, err := s.wallets.ActiveForBot(botID, liveExchangeTag)
	if err != nil {
		return nil, err
	}
	key, err := s.vault.Decrypt(wallet.EncryptedKey, ownerSalt)
	if err != nil {
		return nil, err
	}
	secret, err := s.vault.Decrypt(wallet.EncryptedSecret, ownerSalt)
	if err != nil {
		return nil, err
	}
	return exchange.NewBinanceFuturesAdapter(s.exchangeBaseURL, string(key), string(secret)), nil
}

// ForceTurn enqueues an immediate-turn request; multiple requests collapse
// into one wake-up (§4.8.1, §5 "level-triggered").
func (s *Scheduler) ForceTurn(botID uint) {
	s.mu.Lock()
	t, ok := s.tasks[botID]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case t.forceTurn <- struct{}{}:
	default:
	}
}

// SetPaused flips the in-memory paused flag observed at the start of the
// next iteration.
func (s *Scheduler) SetPaused(botID uint, paused bool) {
	s.mu.Lock()
	rt := s.runtimes[botID]
	s.mu.Unlock()
	if rt == nil {
		return
	}
	rt.Lock()
	rt.Bot.Paused = paused
	rt.Unlock()
}

// Reload re-reads the bot row and swaps it into the live runtime without
// stopping the task (§4.8.1 hot-reload).
func (s *Scheduler) Reload(botID uint) error {
	bot, err := s.bots.ByID(botID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	rt, ok := s.runtimes[botID]
	t, taskOK := s.tasks[botID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	rt.Lock()
	rt.Bot = bot
	rt.Unlock()
	if taskOK {
		select {
		case t.reload <- struct{}{}:
		default:
		}
	}
	return nil
}

// Reset implements §4.8.1 Reset: paper-only, deletes trading history in one
// transaction, and reseeds the in-memory runtime with the initial balance.
func (s *Scheduler) Reset(botID uint, clearLearning bool, history *database.HistorySummaryRepository) error {
	s.mu.Lock()
	rt, ok := s.runtimes[botID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if rt.Bot.Mode != models.ModePaper {
		return errNotPaper
	}

	rt.Lock()
	defer rt.Unlock()

	initial := s.initialBalance(rt.Bot)
	resetSnap := &models.Snapshot{
		OwnerID:    rt.Bot.OwnerID,
		BotID:      rt.Bot.ID,
		Balance:    initial,
		TotalValue: initial,
		Timestamp:  time.Now(),
	}
	if err := s.trades.ResetBot(botID, resetSnap); err != nil {
		return err
	}
	if clearLearning && history != nil {
		if err := history.ClearLearning(botID); err != nil {
			return err
		}
	}
	rt.Balance = initial
	rt.Positions = make(map[uint]*models.Position)
	rt.Cooldowns = make(map[string]models.Cooldown)
	return nil
}

// Shutdown signals every per-bot task to finish its current turn and exit;
// no new turns start (§4.8.3).
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		t.cancel()
	}
}
