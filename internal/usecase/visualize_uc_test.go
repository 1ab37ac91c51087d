package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
)

func TestRenderAllArtifactsFromFullResults(t *testing.T) {
	uc := NewVisualizeUseCase(nopLogger())
	agg := NewAggregateUseCase(nopLogger())

	results := sampleResults()
	results["news"] = okResult("news", `{"articles": [
		{"title": "Snowboard demand surges ahead of season", "sentiment": 0.7},
		{"title": "Retailers brace for supply costs", "sentiment": -0.2}
	]}`)
	insight, err := agg.Combine(context.Background(), results)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}

	artifacts := uc.Render(context.Background(), results, insight)
	for _, want := range []string{
		"engagement_scatter", "sentiment_distribution", "trend_forecast",
		"wordcloud", "finance_timeseries",
	} {
		raw, ok := artifacts[want]
		if !ok {
			t.Errorf("artifact %q missing", want)
			continue
		}
		if !json.Valid(raw) {
			t.Errorf("artifact %q is not valid JSON", want)
		}
	}
}

func TestRenderSkipsArtifactsWithoutData(t *testing.T) {
	uc := NewVisualizeUseCase(nopLogger())
	agg := NewAggregateUseCase(nopLogger())

	// Finance only: no social, no trends, no text anywhere.
	results := map[string]*model.SourceResult{
		"finance": okResult("finance", `{"rates": [{"pair": "USD/JPY", "values": [150, 151, 152]}]}`),
	}
	insight, err := agg.Combine(context.Background(), results)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}

	artifacts := uc.Render(context.Background(), results, insight)
	if _, ok := artifacts["finance_timeseries"]; !ok {
		t.Error("finance_timeseries should render from finance data alone")
	}
	for _, absent := range []string{"engagement_scatter", "sentiment_distribution", "trend_forecast", "wordcloud"} {
		if _, ok := artifacts[absent]; ok {
			t.Errorf("artifact %q rendered without supporting data", absent)
		}
	}
}

func TestTrendForecastExtendsSeries(t *testing.T) {
	insight := &model.CombinedInsight{
		PerSourceSummary: map[string]model.SourceSummary{
			"trends": {Source: "trends", Series: []float64{10, 20, 30, 40}},
		},
	}
	payload, ok := trendForecast(nil, insight)
	if !ok {
		t.Fatal("trendForecast should render for a 4-point series")
	}
	m := payload.(map[string]any)
	forecast := m["forecast"].([]float64)
	if len(forecast) != 7 {
		t.Fatalf("forecast length = %d, want 7", len(forecast))
	}
	// Slope is 10, so the first extrapolated point continues the line.
	if forecast[0] != 50 {
		t.Errorf("forecast[0] = %v, want 50", forecast[0])
	}
}

func TestSentimentDistributionBucketsClamped(t *testing.T) {
	results := map[string]*model.SourceResult{
		"meta": okResult("meta", `{"posts": [
			{"sentiment": -5}, {"sentiment": 5}, {"sentiment": 0}
		]}`),
	}
	payload, ok := sentimentDistribution(results, &model.CombinedInsight{})
	if !ok {
		t.Fatal("sentimentDistribution should render")
	}
	m := payload.(map[string]any)
	buckets := m["buckets"].([]int)
	total := 0
	for _, b := range buckets {
		total += b
	}
	if total != 3 {
		t.Fatalf("bucket total = %d, want 3 (out-of-range values clamped, not dropped)", total)
	}
	if buckets[0] != 1 || buckets[len(buckets)-1] != 1 {
		t.Error("extreme sentiments must land in the edge buckets")
	}
}

func TestWordcloudFiltersShortAndStopwords(t *testing.T) {
	results := map[string]*model.SourceResult{
		"news": okResult("news", `{"articles": [
			{"title": "The snowboard snowboard season and the alps"},
			{"title": "Snowboard sales up for the season"}
		]}`),
	}
	payload, ok := wordcloud(results, &model.CombinedInsight{})
	if !ok {
		t.Fatal("wordcloud should render")
	}
	m := payload.(map[string]any)
	data, _ := json.Marshal(m["terms"])
	var terms []struct {
		Term   string `json:"term"`
		Weight int    `json:"weight"`
	}
	if err := json.Unmarshal(data, &terms); err != nil {
		t.Fatalf("terms shape: %v", err)
	}
	if terms[0].Term != "snowboard" || terms[0].Weight != 3 {
		t.Errorf("top term = %+v, want snowboard x3", terms[0])
	}
	for _, e := range terms {
		if e.Term == "the" || e.Term == "and" || len(e.Term) <= 3 {
			t.Errorf("term %q should have been filtered", e.Term)
		}
	}
}
