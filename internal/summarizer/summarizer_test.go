package summarizer

import (
	"strings"
	"testing"
	"time"

	"github.com/arenahq/bot-arena/internal/models"
)

func TestEstimateTokenCountRoundsUp(t *testing.T) {
	if got := estimateTokenCount("abcde"); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestBuildSummaryPromptIncludesPriorAndNewDecisions(t *testing.T) {
	prior := "bought the dip once, regretted it"
	decisions := []models.Decision{
		{Timestamp: time.Unix(0, 0), Success: true, Notes: models.StringList{"ok"}},
	}
	got := buildSummaryPrompt(prior, decisions)
	if !strings.Contains(got, prior) {
		t.Fatal("expected prior summary text to be included")
	}
	if !strings.Contains(got, "success=true") {
		t.Fatal("expected decision success flag to be included")
	}
}
