package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
)

// Compile-time check
var _ VisualizeUseCase = (*visualizeUC)(nil)

// VisualizeUseCase renders chart-ready JSON artifacts from a job's source
// results and combined insight. Artifacts are generated independently: one
// with insufficient data is simply absent from the map, never an error.
type VisualizeUseCase interface {
	Render(ctx context.Context, results map[string]*model.SourceResult, insight *model.CombinedInsight) map[string]json.RawMessage
}

type visualizeUC struct {
	log *zerolog.Logger
}

func NewVisualizeUseCase(logger *zerolog.Logger) *visualizeUC {
	l := logger.With().Str("component", "VisualizeUC").Logger()
	return &visualizeUC{log: &l}
}

type artifactFn func(results map[string]*model.SourceResult, insight *model.CombinedInsight) (any, bool)

var artifactFns = map[string]artifactFn{
	"engagement_scatter":     engagementScatter,
	"sentiment_distribution": sentimentDistribution,
	"trend_forecast":         trendForecast,
	"wordcloud":              wordcloud,
	"finance_timeseries":     financeTimeseries,
}

func (u *visualizeUC) Render(ctx context.Context, results map[string]*model.SourceResult, insight *model.CombinedInsight) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(artifactFns))
	for name, fn := range artifactFns {
		payload, ok := u.render(name, fn, results, insight)
		if !ok {
			continue
		}
		data, err := json.Marshal(payload)
		if err != nil {
			u.log.Warn().Err(err).Str("artifact", name).Msg("artifact marshal failed")
			continue
		}
		out[name] = data
	}
	return out
}

func (u *visualizeUC) render(name string, fn artifactFn, results map[string]*model.SourceResult, insight *model.CombinedInsight) (payload any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			u.log.Warn().Str("artifact", name).Interface("panic", r).Msg("artifact renderer panic")
			payload, ok = nil, false
		}
	}()
	return fn(results, insight)
}

func okData(results map[string]*model.SourceResult, source string) (json.RawMessage, bool) {
	r, ok := results[source]
	if !ok || r.State != model.SourceStateOK || r.Data == nil {
		return nil, false
	}
	return r.Data, true
}

type scatterPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// engagementScatter plots per-post engagement over posting order for each
// social source that came back clean.
func engagementScatter(results map[string]*model.SourceResult, insight *model.CombinedInsight) (any, bool) {
	series := make(map[string][]scatterPoint)
	for _, source := range []string{"meta", "tiktok"} {
		sum, ok := insight.PerSourceSummary[source]
		if !ok || len(sum.Series) == 0 {
			continue
		}
		points := make([]scatterPoint, len(sum.Series))
		for i, y := range sum.Series {
			points[i] = scatterPoint{X: float64(i), Y: y}
		}
		series[source] = points
	}
	if len(series) == 0 {
		return nil, false
	}
	return map[string]any{"type": "scatter", "series": series}, true
}

// sentimentDistribution buckets item-level sentiment from the social and
// news payloads into a fixed histogram over [-1, 1].
func sentimentDistribution(results map[string]*model.SourceResult, insight *model.CombinedInsight) (any, bool) {
	var sentiments []float64

	collect := func(raw json.RawMessage, key string) {
		var payload map[string][]struct {
			Sentiment float64 `json:"sentiment"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return
		}
		for _, item := range payload[key] {
			sentiments = append(sentiments, item.Sentiment)
		}
	}
	if raw, ok := okData(results, "meta"); ok {
		collect(raw, "posts")
	}
	if raw, ok := okData(results, "tiktok"); ok {
		collect(raw, "videos")
	}
	if raw, ok := okData(results, "news"); ok {
		collect(raw, "articles")
	}
	if len(sentiments) == 0 {
		return nil, false
	}

	const bucketCount = 8
	buckets := make([]int, bucketCount)
	for _, s := range sentiments {
		if s < -1 {
			s = -1
		}
		if s > 1 {
			s = 1
		}
		idx := int((s + 1) / 2 * bucketCount)
		if idx >= bucketCount {
			idx = bucketCount - 1
		}
		buckets[idx]++
	}
	return map[string]any{
		"type":    "histogram",
		"min":     -1.0,
		"max":     1.0,
		"buckets": buckets,
		"samples": len(sentiments),
	}, true
}

// trendForecast extends the search-interest series with a 7-step linear
// extrapolation.
func trendForecast(results map[string]*model.SourceResult, insight *model.CombinedInsight) (any, bool) {
	sum, ok := insight.PerSourceSummary["trends"]
	if !ok || len(sum.Series) < 2 {
		return nil, false
	}
	series := sum.Series
	b := slope(series)
	last := series[len(series)-1]
	forecast := make([]float64, 7)
	for i := range forecast {
		v := last + b*float64(i+1)
		if v < 0 {
			v = 0
		}
		forecast[i] = round3(v)
	}
	return map[string]any{
		"type":     "line",
		"observed": series,
		"forecast": forecast,
	}, true
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "this": {}, "that": {},
	"from": {}, "have": {}, "your": {}, "are": {}, "was": {}, "will": {},
	"has": {}, "its": {}, "our": {}, "you": {}, "not": {}, "but": {},
}

// wordcloud counts token frequencies across social captions and news
// headlines; the top 40 terms ship as weighted entries.
func wordcloud(results map[string]*model.SourceResult, insight *model.CombinedInsight) (any, bool) {
	freq := make(map[string]int)

	collect := func(raw json.RawMessage, listKey, textKey string) {
		var payload map[string][]map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return
		}
		for _, item := range payload[listKey] {
			text, _ := item[textKey].(string)
			for _, tok := range strings.Fields(strings.ToLower(text)) {
				tok = strings.Trim(tok, ".,!?;:\"'()[]#@")
				if len(tok) <= 3 {
					continue
				}
				if _, skip := stopwords[tok]; skip {
					continue
				}
				freq[tok]++
			}
		}
	}
	if raw, ok := okData(results, "meta"); ok {
		collect(raw, "posts", "caption")
	}
	if raw, ok := okData(results, "tiktok"); ok {
		collect(raw, "videos", "caption")
	}
	if raw, ok := okData(results, "news"); ok {
		collect(raw, "articles", "title")
	}
	if len(freq) == 0 {
		return nil, false
	}

	type entry struct {
		Term   string `json:"term"`
		Weight int    `json:"weight"`
	}
	entries := make([]entry, 0, len(freq))
	for term, n := range freq {
		entries = append(entries, entry{Term: term, Weight: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Weight != entries[j].Weight {
			return entries[i].Weight > entries[j].Weight
		}
		return entries[i].Term < entries[j].Term
	})
	if len(entries) > 40 {
		entries = entries[:40]
	}
	return map[string]any{"type": "wordcloud", "terms": entries}, true
}

func financeTimeseries(results map[string]*model.SourceResult, insight *model.CombinedInsight) (any, bool) {
	raw, ok := okData(results, "finance")
	if !ok {
		return nil, false
	}
	var payload struct {
		Rates []struct {
			Pair   string    `json:"pair"`
			Values []float64 `json:"values"`
		} `json:"rates"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	series := make(map[string][]float64)
	for _, r := range payload.Rates {
		if len(r.Values) > 0 && r.Pair != "" {
			series[r.Pair] = r.Values
		}
	}
	if len(series) == 0 {
		return nil, false
	}
	return map[string]any{"type": "line", "series": series}, true
}
