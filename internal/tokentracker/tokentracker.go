// Package tokentracker is the Token Tracker (C4): it records every LLM call
// as a usage row with computed cost, and exposes per-period and unreported
// usage rows for the billing collaborator. Grounded on the teacher's
// repository-wrapping-a-transaction idiom (internal/repositories), adapted
// here to a single insert plus a pricing lookup rather than a balance
// mutation since token cost never touches a bot's trading balance.
package tokentracker

import (
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/llm"
	"github.com/arenahq/bot-arena/internal/models"
)

type Tracker struct {
	usage    *database.TokenUsageRepository
	provider *database.ProviderRepository
}

func New(usage *database.TokenUsageRepository, provider *database.ProviderRepository) *Tracker {
	return &Tracker{usage: usage, provider: provider}
}

// Event is what callers (Decision Loop, History Summarizer) report after a
// dispatcher call completes.
type Event struct {
	OwnerID    uint
	BotID      uint
	ProviderID uint
	Variant    string
	Model      string
	Kind       llm.Kind
	Usage      llm.Usage
	LatencyMs  int64
	At         time.Time
}

// Track inserts a usage row with computed cost. It never fails the caller's
// turn: a missing pricing row yields zero cost plus a logged warning, per
// §4.4 ("this is the sole place pricing decisions are made").
func (t *Tracker) Track(ev Event) error {
	cost := t.cost(ev.Variant, ev.Usage)
	row := &models.TokenUsage{
		OwnerID:        ev.OwnerID,
		BotID:          ev.BotID,
		ProviderID:     ev.ProviderID,
		Kind:           string(ev.Kind),
		InputTokens:    ev.Usage.InputTokens,
		OutputTokens:   ev.Usage.OutputTokens,
		CostMinorUnits: cost,
		Model:          ev.Model,
		LatencyMs:      ev.LatencyMs,
		Timestamp:      ev.At,
	}
	return t.usage.Create(row)
}

func (t *Tracker) cost(variant string, u llm.Usage) int64 {
	pricing, err := t.provider.PricingFor(variant)
	if err != nil {
		log.Printf("[TOKENTRACKER][WARN] no active pricing for variant %s: %v", variant, err)
		return 0
	}
	return ComputeCost(*pricing, u)
}

// ComputeCost is the pure pricing calculation: unit prices are per million
// tokens, markup is a percentage applied after the raw cost, and the result
// always rounds up to the next minor currency unit. Computed with
// shopspring/decimal rather than float64 so the markup multiply/divide
// chain never drifts a usage row's cost by a fraction of a minor unit.
func ComputeCost(pricing models.PricingRow, u llm.Usage) int64 {
	million := decimal.NewFromInt(1_000_000)
	inputCost := decimal.NewFromInt(int64(u.InputTokens)).
		Mul(decimal.NewFromInt(pricing.InputPricePerMillion)).Div(million)
	outputCost := decimal.NewFromInt(int64(u.OutputTokens)).
		Mul(decimal.NewFromInt(pricing.OutputPricePerMillion)).Div(million)
	markup := decimal.NewFromFloat(1).Add(decimal.NewFromFloat(pricing.MarkupPercent).Div(decimal.NewFromInt(100)))
	total := inputCost.Add(outputCost).Mul(markup)
	return total.Ceil().IntPart()
}

// UsageForPeriod returns an owner's usage rows within [from, to); no totals
// are computed here.
func (t *Tracker) UsageForPeriod(ownerID uint, from, to time.Time) ([]models.TokenUsage, error) {
	return t.usage.ForPeriod(ownerID, from, to)
}

// UnreportedUsage returns rows not yet flagged as delivered to the billing
// collaborator.
func (t *Tracker) UnreportedUsage(limit int) ([]models.TokenUsage, error) {
	return t.usage.Unreported(limit)
}

func (t *Tracker) MarkReported(ids []uint) error {
	return t.usage.MarkReported(ids)
}
