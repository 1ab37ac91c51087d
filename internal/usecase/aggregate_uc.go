package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Kassag-stack/visionly.ai/internal/domain"
	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
)

// Compile-time check
var _ AggregateUseCase = (*aggregateUC)(nil)

// AggregateUseCase reduces a job's terminal source results into one
// CombinedInsight. The output is deterministic for identical inputs, apart
// from the GeneratedAt stamp.
type AggregateUseCase interface {
	Combine(ctx context.Context, results map[string]*model.SourceResult) (*model.CombinedInsight, error)
}

type aggregateUC struct {
	log *zerolog.Logger
	now func() time.Time
}

func NewAggregateUseCase(logger *zerolog.Logger) *aggregateUC {
	l := logger.With().Str("component", "AggregateUC").Logger()
	return &aggregateUC{log: &l, now: time.Now}
}

func (u *aggregateUC) Combine(ctx context.Context, results map[string]*model.SourceResult) (*model.CombinedInsight, error) {
	insight := &model.CombinedInsight{
		PerSourceSummary: make(map[string]model.SourceSummary),
		GeneratedAt:      u.now().UTC(),
	}

	// Iterate sources in name order so correlation pairs and any
	// tie-breaking below come out identical run to run.
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	okCount := 0
	for _, name := range names {
		res := results[name]
		if res.State != model.SourceStateOK {
			insight.Degraded = true
			continue
		}
		okCount++
		sum, err := u.summarize(name, res)
		if err != nil {
			// A single malformed payload degrades the insight but must
			// not sink the sources that did come back clean.
			u.log.Warn().Err(err).Str("source", name).Msg("summarization dropped source")
			insight.Degraded = true
			continue
		}
		insight.PerSourceSummary[name] = sum
	}
	if okCount == 0 {
		return nil, domain.ErrNoSourcesSucceeded
	}

	insight.CrossSourceCorrelations = correlate(insight.PerSourceSummary)
	insight.Recommendations = recommend(insight.PerSourceSummary)
	return insight, nil
}

// summarize shields the caller from panics in a summarizer: a payload we
// never anticipated drops one source, not the whole combine stage.
func (u *aggregateUC) summarize(name string, res *model.SourceResult) (sum model.SourceSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: summarizer panic: %v", name, r)
		}
	}()
	fn, ok := summarizers[name]
	if !ok {
		return model.SourceSummary{}, fmt.Errorf("%s: %w", name, domain.ErrUnknownSource)
	}
	return fn(res.Data)
}

// correlate computes Pearson coefficients for every pair of summarized
// sources that both expose a series, ordered by (source_a, source_b).
func correlate(summaries map[string]model.SourceSummary) []model.Correlation {
	names := make([]string, 0, len(summaries))
	for name, s := range summaries {
		if len(s.Series) >= 2 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []model.Correlation
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			coeff, n := pearson(summaries[names[i]].Series, summaries[names[j]].Series)
			if n < 2 {
				continue
			}
			out = append(out, model.Correlation{
				SourceA:     names[i],
				SourceB:     names[j],
				Coefficient: round3(coeff),
				Samples:     n,
			})
		}
	}
	return out
}

// recommend derives ranked textual insights from the summarized metrics.
// Ordering is a total order (confidence desc, source count desc, text asc)
// so identical inputs always produce an identical slice.
func recommend(summaries map[string]model.SourceSummary) []model.Recommendation {
	var recs []model.Recommendation
	add := func(confidence float64, text string, sources ...string) {
		sort.Strings(sources)
		recs = append(recs, model.Recommendation{Text: text, Confidence: confidence, Sources: sources})
	}

	for _, social := range []string{"meta", "tiktok"} {
		s, ok := summaries[social]
		if !ok {
			continue
		}
		if s.Metrics["engagement_trend"] > 0 {
			add(0.7, fmt.Sprintf("Engagement on %s is trending upward; keep the current posting cadence.", social), social)
		} else if s.Metrics["engagement_trend"] < 0 {
			add(0.65, fmt.Sprintf("Engagement on %s is declining; refresh creative for the top products.", social), social)
		}
		if s.Metrics["avg_sentiment"] < 0 {
			add(0.75, fmt.Sprintf("Sentiment on %s is net negative; review recent customer feedback before scaling promotion.", social), social)
		}
	}

	if t, ok := summaries["trends"]; ok && t.Metrics["trend_direction"] > 0 {
		if m, ok := summaries["meta"]; ok && m.Metrics["engagement_trend"] > 0 {
			add(0.9, "Search interest and social engagement are rising together; increase ad spend on the trending products.", "trends", "meta")
		} else {
			add(0.8, "Search interest is rising; consider raising inventory for the highlighted products.", "trends")
		}
	}

	if f, ok := summaries["finance"]; ok && f.Metrics["volatility"] > 0.05 {
		add(0.7, "Exchange-rate volatility is elevated; hedge supplier payments or revisit import pricing.", "finance")
	}

	if n, ok := summaries["news"]; ok && n.Metrics["avg_sentiment"] > 0.2 {
		add(0.6, "Press coverage is favorable; amplify recent articles in marketing channels.", "news")
	}

	if w, ok := summaries["weather"]; ok && w.Metrics["precipitation_hours"] > 24 {
		add(0.6, "An extended wet spell is forecast; feature weather-appropriate products on the storefront.", "weather")
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Confidence != recs[j].Confidence {
			return recs[i].Confidence > recs[j].Confidence
		}
		if len(recs[i].Sources) != len(recs[j].Sources) {
			return len(recs[i].Sources) > len(recs[j].Sources)
		}
		return recs[i].Text < recs[j].Text
	})
	return recs
}
