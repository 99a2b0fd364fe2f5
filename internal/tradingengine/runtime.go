package tradingengine

import (
	"sync"
	"time"

	"github.com/arenahq/bot-arena/internal/models"
)

// MarketPrice is one symbol's latest observed price, used for settlement
// and mark-to-market math (§4.6.1 step 2).
type MarketPrice struct {
	Price     float64
	Change24h float64
}

// MarketSnapshot is the read-mostly shared state described in §5: refreshed
// by a single background task, read by every bot task via a consistent
// copy.
type MarketSnapshot map[string]MarketPrice

// Runtime is the in-memory per-bot ledger mirroring the database — "owned
// exclusively by that bot's task" per §5. The scheduler constructs one per
// active bot at start-up and keeps it alive across turns; hot-reload swaps
// Bot in place without replacing Positions/Cooldowns.
type Runtime struct {
	mu        sync.Mutex
	Bot       *models.Bot
	Balance   float64
	Positions map[uint]*models.Position // open positions only, keyed by Position.ID
	Cooldowns map[string]models.Cooldown
}

func NewRuntime(bot *models.Bot, balance float64, open []models.Position) *Runtime {
	rt := &Runtime{
		Bot:       bot,
		Balance:   balance,
		Positions: make(map[uint]*models.Position, len(open)),
		Cooldowns: make(map[string]models.Cooldown),
	}
	for i := range open {
		p := open[i]
		rt.Positions[p.ID] = &p
	}
	return rt
}

// Lock/Unlock expose the bot's exclusive lock referenced throughout §4.8/§5
// ("acquire the bot's lock, run the Decision Loop once, release the lock").
func (rt *Runtime) Lock()   { rt.mu.Lock() }
func (rt *Runtime) Unlock() { rt.mu.Unlock() }

func (rt *Runtime) OpenPositionForSymbol(symbol string) *models.Position {
	for _, p := range rt.Positions {
		if p.Symbol == symbol && p.Status == models.PositionOpen {
			return p
		}
	}
	return nil
}

func (rt *Runtime) CooldownRemaining(symbol string, now time.Time) time.Duration {
	cd, ok := rt.Cooldowns[symbol]
	if !ok {
		return 0
	}
	until := time.UnixMilli(cd.UntilUnix)
	if until.Before(now) {
		return 0
	}
	return until.Sub(now)
}

// MaxCooldownRemaining returns the longest remaining cooldown across every
// symbol this bot is tracking, used by the scheduler to arm the per-turn
// wait timer at max(turn_interval, remaining_cooldown) (§4.8.1).
func (rt *Runtime) MaxCooldownRemaining(now time.Time) time.Duration {
	var max time.Duration
	for symbol := range rt.Cooldowns {
		if remaining := rt.CooldownRemaining(symbol, now); remaining > max {
			max = remaining
		}
	}
	return max
}

func (rt *Runtime) SetCooldown(symbol string, now time.Time, cooldown time.Duration) {
	rt.Cooldowns[symbol] = models.Cooldown{
		Symbol:    symbol,
		UntilUnix: now.Add(cooldown).UnixMilli(),
		SetAt:     now,
	}
}

func (rt *Runtime) RemovePosition(id uint) {
	delete(rt.Positions, id)
}

func (rt *Runtime) AllowedSymbols(globalSymbols []string) []string {
	if len(rt.Bot.AllowedSymbols) > 0 {
		return []string(rt.Bot.AllowedSymbols)
	}
	return globalSymbols
}

func symbolAllowed(allowed []string, symbol string) bool {
	for _, s := range allowed {
		if s == symbol {
			return true
		}
	}
	return false
}
