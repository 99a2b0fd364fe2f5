package market

import (
	"log"
	"sync"
	"time"

	"github.com/arenahq/bot-arena/internal/broadcast"
	"github.com/arenahq/bot-arena/internal/config"
	"github.com/arenahq/bot-arena/internal/tradingengine"
)

// Refresher owns the single process-wide market snapshot (§5, §9 "the
// market price snapshot"). It satisfies scheduler.MarketSource.
type Refresher struct {
	source   Source
	settings *config.Settings
	hub      *broadcast.Hub

	mu       sync.RWMutex
	snapshot tradingengine.MarketSnapshot
	stale    time.Time
}

func NewRefresher(source Source, settings *config.Settings, hub *broadcast.Hub) *Refresher {
	return &Refresher{source: source, settings: settings, snapshot: tradingengine.MarketSnapshot{}, hub: hub}
}

// Snapshot returns the current read-mostly copy (§5: "every bot task reads
// a consistent copy"). The returned map is never mutated in place by
// Refresh, so callers needn't copy it again.
func (r *Refresher) Snapshot() tradingengine.MarketSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Run ticks on KeyRefreshIntervalMs until ctx is done, publishing the
// refreshed snapshot to the broadcast hub on every successful tick (§4.8.2).
func (r *Refresher) Run(done <-chan struct{}) {
	for {
		r.tick()
		interval := r.settings.Duration(config.KeyRefreshIntervalMs)
		if interval <= 0 {
			interval = 5 * time.Second
		}
		timer := time.NewTimer(interval)
		select {
		case <-done:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (r *Refresher) tick() {
	symbols := r.settings.StringList(config.KeyTradingSymbols)
	if len(symbols) == 0 {
		return
	}
	fresh, err := r.source.Fetch(symbols)
	if err != nil {
		r.mu.RLock()
		age := time.Since(r.stale)
		r.mu.RUnlock()
		log.Printf("[MARKET][WARN] refresh failed, keeping snapshot (age %v): %v", age.Round(time.Second), err)
		return
	}

	r.mu.Lock()
	r.snapshot = fresh
	r.stale = time.Now()
	r.mu.Unlock()

	if r.hub != nil {
		r.hub.SetMarket(fresh)
	}
}
