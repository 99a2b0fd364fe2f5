package tokentracker

import (
	"testing"

	"github.com/arenahq/bot-arena/internal/llm"
	"github.com/arenahq/bot-arena/internal/models"
)

func TestComputeCostAppliesMarkupAndRoundsUp(t *testing.T) {
	pricing := models.PricingRow{
		InputPricePerMillion:  1000,
		OutputPricePerMillion: 2000,
		MarkupPercent:         10,
	}
	u := llm.Usage{InputTokens: 500, OutputTokens: 500}
	got := ComputeCost(pricing, u)
	// (500*1000/1e6 + 500*2000/1e6) * 1.10 = (0.5+1.0)*1.10 = 1.65 -> ceil = 2
	if got != 2 {
		t.Fatalf("expected cost 2, got %d", got)
	}
}

func TestComputeCostZeroUsageIsZero(t *testing.T) {
	pricing := models.PricingRow{InputPricePerMillion: 1000, OutputPricePerMillion: 1000}
	got := ComputeCost(pricing, llm.Usage{})
	if got != 0 {
		t.Fatalf("expected zero cost, got %d", got)
	}
}
