package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Kassag-stack/visionly.ai/internal/config"
	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/adapter"
	"github.com/Kassag-stack/visionly.ai/internal/infra/metrics"
)

// Compile-time check
var _ NarrativeUseCase = (*narrativeUC)(nil)

// NarrativeUseCase turns a CombinedInsight into a short prose analysis via
// the configured LLM. It is strictly best effort: any failure here leaves
// the job with an empty narrative and never changes its terminal status.
type NarrativeUseCase interface {
	Generate(ctx context.Context, query model.Query, insight *model.CombinedInsight) (string, error)
}

type narrativeUC struct {
	llm adapter.LLMAdapter
	cfg config.AIConfig
	log *zerolog.Logger
}

func NewNarrativeUseCase(llm adapter.LLMAdapter, cfg config.AIConfig, logger *zerolog.Logger) *narrativeUC {
	l := logger.With().Str("component", "NarrativeUC").Logger()
	return &narrativeUC{llm: llm, cfg: cfg, log: &l}
}

func (u *narrativeUC) Generate(ctx context.Context, query model.Query, insight *model.CombinedInsight) (string, error) {
	messages := []adapter.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildPrompt(query, insight)},
	}

	tokens, err := u.llm.CountTokens(ctx, u.cfg.Model, messages)
	if err != nil {
		u.log.Debug().Err(err).Msg("token count unavailable, sending prompt unchecked")
		tokens = 0
	}
	if u.cfg.MaxPromptTokens > 0 && tokens > u.cfg.MaxPromptTokens {
		// Drop per-source detail down to the headline block rather than
		// sending an over-budget prompt the provider will reject.
		messages[1].Content = buildHeadlinePrompt(query, insight)
		if tokens, err = u.llm.CountTokens(ctx, u.cfg.Model, messages); err != nil {
			tokens = 0
		}
	}

	start := time.Now()
	text, err := u.llm.Chat(ctx, u.cfg.Model, messages)
	metrics.ObserveNarrative(u.cfg.Provider, time.Since(start).Milliseconds(), tokens, err == nil)
	if err != nil {
		return "", fmt.Errorf("narrative generation: %w", err)
	}
	return strings.TrimSpace(text), nil
}

const systemPrompt = "You are a commerce analyst. Given per-source statistics for an online store, " +
	"write a concise analysis (max 300 words) answering the merchant's question. " +
	"Reference concrete numbers, call out cross-source agreements or contradictions, " +
	"and end with the single most actionable next step."

func buildPrompt(query model.Query, insight *model.CombinedInsight) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Store: %s\nQuestion: %s\n\n", query.Snapshot.ShopDomain, query.Text)

	names := make([]string, 0, len(insight.PerSourceSummary))
	for name := range insight.PerSourceSummary {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sum := insight.PerSourceSummary[name]
		fmt.Fprintf(&b, "%s:\n", name)
		keys := make([]string, 0, len(sum.Metrics))
		for k := range sum.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s = %.3f\n", k, sum.Metrics[k])
		}
	}

	if len(insight.CrossSourceCorrelations) > 0 {
		b.WriteString("\nCross-source correlations:\n")
		for _, c := range insight.CrossSourceCorrelations {
			fmt.Fprintf(&b, "  %s vs %s: %.3f (n=%d)\n", c.SourceA, c.SourceB, c.Coefficient, c.Samples)
		}
	}
	if insight.Degraded {
		b.WriteString("\nNote: one or more sources failed; coverage is partial.\n")
	}
	return b.String()
}

// buildHeadlinePrompt is the trimmed fallback when the full prompt exceeds
// the token budget: only one headline metric per source survives.
func buildHeadlinePrompt(query model.Query, insight *model.CombinedInsight) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Store: %s\nQuestion: %s\n\n", query.Snapshot.ShopDomain, query.Text)

	names := make([]string, 0, len(insight.PerSourceSummary))
	for name := range insight.PerSourceSummary {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sum := insight.PerSourceSummary[name]
		keys := make([]string, 0, len(sum.Metrics))
		for k := range sum.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 0 {
			fmt.Fprintf(&b, "%s: %s = %.3f\n", name, keys[0], sum.Metrics[keys[0]])
		}
	}
	return b.String()
}
