package broadcast

import (
	"encoding/json"
	"log"
	"time"

	"github.com/arenahq/bot-arena/internal/tradingengine"
)

// botView is the sanitized, ephemeral per-bot slice of ArenaState — never
// credentials, decrypted keys, or internal error detail (§4.9).
type botView struct {
	BotID         uint             `json:"bot_id"`
	Balance       float64          `json:"balance"`
	UnrealizedPnL float64          `json:"unrealized_pnl"`
	OpenPositions int              `json:"open_positions"`
	Paused        bool             `json:"paused"`
	Cooldowns     map[string]int64 `json:"cooldowns_ms_remaining"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// PushBotUpdate composes the sanitized view for one bot, merges it into the
// Hub's shared projection, and publishes the whole ArenaState blob.
func (h *Hub) PushBotUpdate(rt *tradingengine.Runtime) {
	var unrealized float64
	cooldowns := make(map[string]int64, len(rt.Cooldowns))
	now := time.Now()
	for symbol := range rt.Cooldowns {
		if remaining := rt.CooldownRemaining(symbol, now); remaining > 0 {
			cooldowns[symbol] = remaining.Milliseconds()
		}
	}
	for _, p := range rt.Positions {
		unrealized += p.UnrealizedPnL
	}

	view := botView{
		BotID:         rt.Bot.ID,
		Balance:       rt.Balance,
		UnrealizedPnL: unrealized,
		OpenPositions: len(rt.Positions),
		Paused:        rt.Bot.Paused,
		Cooldowns:     cooldowns,
		UpdatedAt:     now,
	}

	h.mu.Lock()
	h.bots[rt.Bot.ID] = view
	blob, err := json.Marshal(struct {
		Bots      map[uint]botView             `json:"bots"`
		Market    tradingengine.MarketSnapshot  `json:"market"`
		UpdatedAt time.Time                     `json:"updated_at"`
	}{Bots: h.bots, Market: h.market, UpdatedAt: now})
	h.mu.Unlock()

	if err != nil {
		log.Printf("[BROADCAST][WARN] failed to marshal arena state: %v", err)
		return
	}
	h.Publish(string(blob))
}

// SetMarket is called by the market refresher (§4.8.2) so the projection
// includes the current snapshot on the next push.
func (h *Hub) SetMarket(snapshot tradingengine.MarketSnapshot) {
	h.mu.Lock()
	h.market = snapshot
	h.mu.Unlock()
}
