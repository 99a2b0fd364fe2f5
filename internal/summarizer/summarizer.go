// Package summarizer is the History Summarizer (C5): it keeps a bot's
// prompt small by periodically compressing stale decisions into a single
// rolling HistorySummary, replaced wholesale rather than appended to.
package summarizer

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/arenahq/bot-arena/internal/config"
	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/llm"
	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/internal/tokentracker"
)

type Summarizer struct {
	decisions *database.DecisionRepository
	summaries *database.HistorySummaryRepository
	dispatch  *llm.Dispatcher
	tracker   *tokentracker.Tracker
	settings  *config.Settings
}

func New(decisions *database.DecisionRepository, summaries *database.HistorySummaryRepository, dispatch *llm.Dispatcher, tracker *tokentracker.Tracker, settings *config.Settings) *Summarizer {
	return &Summarizer{decisions: decisions, summaries: summaries, dispatch: dispatch, tracker: tracker, settings: settings}
}

// MaybeSummarize checks the trigger rule (token budget AND >=10 new
// decisions since the last summary) and, if both hold, regenerates the
// HistorySummary. It never mutates the previous summary on failure — a
// summarization error leaves it in place and returns a non-fatal warning.
// provider/ownerSalt are the bot's already-resolved Provider and the
// owner's vault salt, passed in by the Decision Loop to avoid a second
// database round trip here.
func (s *Summarizer) MaybeSummarize(ctx context.Context, bot *models.Bot, provider *models.Provider, ownerSalt, currentPrompt string) error {
	existing, err := s.summaries.ForBot(bot.ID)
	if err != nil {
		return err
	}

	since := time.Time{}
	sourceCount := 0
	priorText := ""
	if existing != nil {
		since = existing.ToTime
		sourceCount = existing.SourceCount
		priorText = existing.Text
	}

	newDecisions, err := s.decisions.Since(bot.ID, since)
	if err != nil {
		return err
	}
	if len(newDecisions) < s.settings.Int(config.KeySummaryMinNewDecisions) {
		return nil
	}

	estimatedTokens := estimateTokenCount(currentPrompt) + estimateTokenCount(priorText) + estimateDecisionsTokens(newDecisions)
	budget := s.settings.Int(config.KeySummaryTokenBudget)
	if estimatedTokens <= budget {
		return nil
	}

	summaryPrompt := buildSummaryPrompt(priorText, newDecisions)
	result, callErr := s.dispatch.Call(ctx, provider, ownerSalt, summaryPrompt, llm.KindSummary)
	if callErr != nil {
		return fmt.Errorf("bot=%d summarization failed, keeping stale summary: %w", bot.ID, callErr)
	}

	now := time.Now()
	from := since
	if from.IsZero() && len(newDecisions) > 0 {
		from = newDecisions[0].Timestamp
	}
	to := now
	if len(newDecisions) > 0 {
		to = newDecisions[len(newDecisions)-1].Timestamp
	}

	newSummary := &models.HistorySummary{
		OwnerID:     bot.OwnerID,
		BotID:       bot.ID,
		Text:        result.Text,
		SourceCount: sourceCount + len(newDecisions),
		FromTime:    from,
		ToTime:      to,
		GeneratedAt: now,
		TokenCount:  result.Usage.InputTokens + result.Usage.OutputTokens,
	}
	if err := s.summaries.Replace(newSummary); err != nil {
		return err
	}

	if s.tracker != nil {
		_ = s.tracker.Track(tokentracker.Event{
			OwnerID:    bot.OwnerID,
			BotID:      bot.ID,
			ProviderID: provider.ID,
			Variant:    provider.Variant,
			Model:      provider.Model,
			Kind:       llm.KindSummary,
			Usage:     result.Usage,
			LatencyMs: result.LatencyMs,
			At:        now,
		})
	}
	return nil
}

func estimateTokenCount(text string) int {
	return int(math.Ceil(float64(len(text)) / 4))
}

func estimateDecisionsTokens(decisions []models.Decision) int {
	total := 0
	for _, d := range decisions {
		total += estimateTokenCount(d.Prompt)
		for range d.Decisions {
			total += 20
		}
	}
	return total
}

func buildSummaryPrompt(priorSummary string, decisions []models.Decision) string {
	var b strings.Builder
	b.WriteString("Summarize the following trading decision history into a compact set of durable lessons.\n")
	if priorSummary != "" {
		b.WriteString("Prior learning so far:\n")
		b.WriteString(priorSummary)
		b.WriteString("\n\n")
	}
	b.WriteString("New decisions to fold in:\n")
	for _, d := range decisions {
		fmt.Fprintf(&b, "- [%s] success=%v notes=%v\n", d.Timestamp.Format(time.RFC3339), d.Success, []string(d.Notes))
	}
	return b.String()
}
