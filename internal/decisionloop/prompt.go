package decisionloop

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/internal/tradingengine"
)

const actionSchema = `Legal actions:
  {"action":"LONG","symbol":"BTCUSDT","size":2000,"leverage":10,"stop_loss":67500,"take_profit":73000,"reasoning":"..."}
  {"action":"SHORT", same shape as LONG}
  {"action":"CLOSE","position_id":123,"reasoning":"..."}
  {"action":"HOLD","reasoning":"..."}
  {"action":"ANALYZE","tool":"rsi|moving_average|kelly|custom_equation|moon_phase","parameters":{...},"reasoning":"..."}
Respond with a JSON array of one or more actions.`

// contextInputs gathers everything assemblePrompt renders for one turn; it
// holds the persistence rows themselves (positions, trades, decisions)
// rather than reduced projections of them.
type contextInputs struct {
	Bot            *models.Bot
	Balance        float64
	RealizedPnL    float64
	UnrealizedPnL  float64
	OpenPositions  []models.Position
	RecentTrades   []models.Trade
	Cooldowns      map[string]time.Duration
	Market         tradingengine.MarketSnapshot
	AllowedSymbols []string
	RecentDecisions []models.Decision
	Summary        string
	Analyses       []analysisEntry
	Now            time.Time
}

type analysisEntry struct {
	Tool   string                 `json:"tool"`
	Params map[string]float64     `json:"params"`
	Result map[string]interface{} `json:"result"`
}

// assemblePrompt implements §4.7.1: system prompt, context block, market
// snapshot, decision history, prior learning, tool/action schema, plus any
// ANALYZE results accumulated so far in this turn's tool loop.
func assemblePrompt(in contextInputs) string {
	var b strings.Builder

	b.WriteString(in.Bot.SystemPrompt)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Current balance: %.2f\nRealized PnL: %.2f\nUnrealized PnL: %.2f\n", in.Balance, in.RealizedPnL, in.UnrealizedPnL)
	b.WriteString("Open positions:\n")
	for _, p := range in.OpenPositions {
		age := in.Now.Sub(p.OpenedAt)
		fmt.Fprintf(&b, "  #%d %s %s entry=%.2f size=%.2f leverage=%.1f age=%s\n", p.ID, p.Symbol, p.Side, p.EntryPrice, p.Size, p.Leverage, age.Round(time.Second))
	}
	b.WriteString("Recent closed trades (last 10):\n")
	for _, t := range in.RecentTrades {
		fmt.Fprintf(&b, "  %s %s pnl=%.2f fee=%.2f note=%s\n", t.Symbol, t.Side, t.RealizedPnL, t.Fee, t.Note)
	}
	b.WriteString("Cooldowns:\n")
	for symbol, remaining := range in.Cooldowns {
		fmt.Fprintf(&b, "  %s remaining=%s\n", symbol, remaining.Round(time.Second))
	}

	b.WriteString("Market snapshot:\n")
	for _, symbol := range in.AllowedSymbols {
		if price, ok := in.Market[symbol]; ok {
			fmt.Fprintf(&b, "  %s price=%.2f change24h=%.2f%%\n", symbol, price.Price, price.Change24h)
		}
	}

	b.WriteString("Decision history (last 5 cycles):\n")
	for _, d := range in.RecentDecisions {
		fmt.Fprintf(&b, "  [%s] %s\n", d.Timestamp.Format(time.RFC3339), summarizeDecisions(d))
	}

	if in.Summary != "" {
		b.WriteString("Learning so far:\n")
		b.WriteString(in.Summary)
		b.WriteString("\n")
	}

	if len(in.Analyses) > 0 {
		b.WriteString("Tool analyses so far this turn:\n")
		for _, a := range in.Analyses {
			encoded, _ := json.Marshal(a)
			b.Write(encoded)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(actionSchema)
	return b.String()
}

func summarizeDecisions(d models.Decision) string {
	var parts []string
	for _, raw := range d.Decisions {
		if m, ok := raw.(map[string]interface{}); ok {
			parts = append(parts, fmt.Sprintf("%v:%v", m["action"], m["reasoning"]))
		}
	}
	return strings.Join(parts, "; ")
}
