// Package decisionloop is the Decision Loop (C7): prompt assembly, the
// multi-iteration ANALYZE tool loop, and decision persistence for one bot
// turn. Tool shapes are grounded on the MarketAnalysis/AutoTradingDecision
// JSON conventions seen in the retrieved koshedutech-binance-trading-app
// and ai-auto-trader-ahh analyzer examples.
package decisionloop

import (
	"fmt"
	"math"

	"github.com/arenahq/bot-arena/internal/tradingengine"
)

// Tool names ANALYZE decisions may invoke (§4.7.2). Tools are pure
// functions over market data and parameters; they never mutate state.
const (
	ToolRSI            = "rsi"
	ToolMovingAverage   = "moving_average"
	ToolKelly          = "kelly"
	ToolCustomEquation = "custom_equation"
	ToolMoonPhase      = "moon_phase"
)

// RunTool executes a named tool against the current market snapshot and
// caller-supplied parameters, returning a JSON-friendly result map.
func RunTool(name string, market tradingengine.MarketSnapshot, params map[string]float64) (map[string]interface{}, error) {
	switch name {
	case ToolRSI:
		return toolRSI(params)
	case ToolMovingAverage:
		return toolMovingAverage(params)
	case ToolKelly:
		return toolKelly(params)
	case ToolCustomEquation:
		return toolCustomEquation(params)
	case ToolMoonPhase:
		return toolMoonPhase(params)
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}

// toolRSI computes a simplified relative-strength index over a
// caller-supplied average-gain/average-loss pair (the engine has no
// candle history; bots that want a true multi-period RSI pass their own
// running averages as parameters).
func toolRSI(params map[string]float64) (map[string]interface{}, error) {
	avgGain := params["avg_gain"]
	avgLoss := params["avg_loss"]
	if avgLoss == 0 {
		return map[string]interface{}{"rsi": 100.0}, nil
	}
	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	return map[string]interface{}{"rsi": rsi}, nil
}

func toolMovingAverage(params map[string]float64) (map[string]interface{}, error) {
	sum := params["sum"]
	count := params["count"]
	if count == 0 {
		return nil, fmt.Errorf("moving_average: count must be non-zero")
	}
	return map[string]interface{}{"average": sum / count}, nil
}

// toolKelly computes the Kelly criterion fraction: f = p - (1-p)/b.
func toolKelly(params map[string]float64) (map[string]interface{}, error) {
	p := params["win_probability"]
	b := params["win_loss_ratio"]
	if b == 0 {
		return nil, fmt.Errorf("kelly: win_loss_ratio must be non-zero")
	}
	f := p - (1-p)/b
	return map[string]interface{}{"fraction": math.Max(0, f)}, nil
}

// toolCustomEquation evaluates a fixed small set of named combinations over
// params a,b,c since the engine has no general expression evaluator;
// "op" selects which.
func toolCustomEquation(params map[string]float64) (map[string]interface{}, error) {
	a, b, c := params["a"], params["b"], params["c"]
	op := params["op"]
	var result float64
	switch int(op) {
	case 1:
		result = a + b*c
	case 2:
		result = (a - b) / maxNonZero(c)
	default:
		result = a*b + c
	}
	return map[string]interface{}{"result": result}, nil
}

func maxNonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// toolMoonPhase is a deliberately superstitious tool some bot prompts use;
// it's a pure function of a day-count parameter, included because the
// original tool catalog names it explicitly (§4.7.2).
func toolMoonPhase(params map[string]float64) (map[string]interface{}, error) {
	daysSinceNewMoon := math.Mod(params["days_since_epoch"], 29.53)
	phase := "new"
	switch {
	case daysSinceNewMoon > 21:
		phase = "waning_crescent"
	case daysSinceNewMoon > 14:
		phase = "full_waning"
	case daysSinceNewMoon > 7:
		phase = "waxing_gibbous"
	case daysSinceNewMoon > 0:
		phase = "waxing_crescent"
	}
	return map[string]interface{}{"phase": phase, "days_since_new_moon": daysSinceNewMoon}, nil
}
