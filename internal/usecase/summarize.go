package usecase

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
)

// summarizer reduces one source's raw payload to a SourceSummary. Each
// summarizer is independent: a malformed payload drops that single source
// from the combined insight instead of failing the whole aggregation.
type summarizer func(raw json.RawMessage) (model.SourceSummary, error)

var summarizers = map[string]summarizer{
	"meta":    summarizeMeta,
	"tiktok":  summarizeTikTok,
	"news":    summarizeNews,
	"finance": summarizeFinance,
	"trends":  summarizeTrends,
	"weather": summarizeWeather,
}

type socialPost struct {
	Likes     float64 `json:"likes"`
	Comments  float64 `json:"comments"`
	Shares    float64 `json:"shares"`
	Views     float64 `json:"views"`
	Sentiment float64 `json:"sentiment"`
	Caption   string  `json:"caption"`
}

// socialSummary covers both social platforms: engagement per item is
// (likes+comments)/2, the trend is the least-squares slope over post order,
// and sentiment consistency is 1 - std/range (1.0 when sentiment is flat).
func socialSummary(source string, posts []socialPost) (model.SourceSummary, error) {
	if len(posts) == 0 {
		return model.SourceSummary{}, fmt.Errorf("%s: payload has no items", source)
	}
	engagement := make([]float64, len(posts))
	sentiments := make([]float64, len(posts))
	for i, p := range posts {
		engagement[i] = (p.Likes + p.Comments) / 2
		sentiments[i] = p.Sentiment
	}

	metrics := map[string]float64{
		"avg_engagement":        round3(mean(engagement)),
		"engagement_trend":      round3(slope(engagement)),
		"avg_sentiment":         round3(mean(sentiments)),
		"sentiment_consistency": round3(sentimentConsistency(sentiments)),
		"sample_count":          float64(len(posts)),
	}
	return model.SourceSummary{Source: source, Metrics: metrics, Series: engagement}, nil
}

func sentimentConsistency(sentiments []float64) float64 {
	if len(sentiments) == 0 {
		return 0
	}
	lo, hi := sentiments[0], sentiments[0]
	for _, s := range sentiments {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	if hi == lo {
		return 1
	}
	c := 1 - stddev(sentiments)/(hi-lo)
	if c < 0 {
		return 0
	}
	return c
}

func summarizeMeta(raw json.RawMessage) (model.SourceSummary, error) {
	var payload struct {
		Posts []socialPost `json:"posts"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.SourceSummary{}, fmt.Errorf("meta: %w", err)
	}
	return socialSummary("meta", payload.Posts)
}

func summarizeTikTok(raw json.RawMessage) (model.SourceSummary, error) {
	var payload struct {
		Videos []socialPost `json:"videos"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.SourceSummary{}, fmt.Errorf("tiktok: %w", err)
	}
	sum, err := socialSummary("tiktok", payload.Videos)
	if err != nil {
		return model.SourceSummary{}, err
	}
	views := make([]float64, len(payload.Videos))
	for i, v := range payload.Videos {
		views[i] = v.Views
	}
	sum.Metrics["avg_views"] = round3(mean(views))
	return sum, nil
}

func summarizeNews(raw json.RawMessage) (model.SourceSummary, error) {
	var payload struct {
		Articles []struct {
			Title     string  `json:"title"`
			Sentiment float64 `json:"sentiment"`
		} `json:"articles"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.SourceSummary{}, fmt.Errorf("news: %w", err)
	}
	if len(payload.Articles) == 0 {
		return model.SourceSummary{}, fmt.Errorf("news: payload has no articles")
	}
	sentiments := make([]float64, len(payload.Articles))
	for i, a := range payload.Articles {
		sentiments[i] = a.Sentiment
	}
	metrics := map[string]float64{
		"article_count":         float64(len(payload.Articles)),
		"avg_sentiment":         round3(mean(sentiments)),
		"sentiment_trend":       round3(slope(sentiments)),
		"sentiment_consistency": round3(sentimentConsistency(sentiments)),
	}
	return model.SourceSummary{Source: "news", Metrics: metrics, Series: sentiments}, nil
}

func summarizeFinance(raw json.RawMessage) (model.SourceSummary, error) {
	var payload struct {
		Rates []struct {
			Pair   string    `json:"pair"`
			Values []float64 `json:"values"`
		} `json:"rates"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.SourceSummary{}, fmt.Errorf("finance: %w", err)
	}
	var series []float64
	for _, r := range payload.Rates {
		if len(r.Values) > 0 {
			series = r.Values
			break
		}
	}
	if len(series) == 0 {
		return model.SourceSummary{}, fmt.Errorf("finance: payload has no rate series")
	}
	m := mean(series)
	volatility := 0.0
	if m != 0 {
		volatility = stddev(series) / m
	}
	trend := -1.0
	if series[len(series)-1] > series[0] {
		trend = 1
	}
	metrics := map[string]float64{
		"mean_rate":  round3(m),
		"volatility": round3(volatility),
		"trend":      trend,
	}
	return model.SourceSummary{Source: "finance", Metrics: metrics, Series: series}, nil
}

func summarizeTrends(raw json.RawMessage) (model.SourceSummary, error) {
	var payload struct {
		InterestOverTime []float64 `json:"interest_over_time"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.SourceSummary{}, fmt.Errorf("trends: %w", err)
	}
	if len(payload.InterestOverTime) == 0 {
		return model.SourceSummary{}, fmt.Errorf("trends: payload has no interest series")
	}
	series := payload.InterestOverTime
	direction := -1.0
	if slope(series) > 0 {
		direction = 1
	}
	metrics := map[string]float64{
		"mean_interest":       round3(mean(series)),
		"interest_volatility": round3(stddev(series)),
		"trend_slope":         round3(slope(series)),
		"trend_direction":     direction,
	}
	return model.SourceSummary{Source: "trends", Metrics: metrics, Series: series}, nil
}

func summarizeWeather(raw json.RawMessage) (model.SourceSummary, error) {
	var payload struct {
		Hourly struct {
			Temperature   []float64 `json:"temperature_2m"`
			Precipitation []float64 `json:"precipitation"`
		} `json:"hourly"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.SourceSummary{}, fmt.Errorf("weather: %w", err)
	}
	temps := payload.Hourly.Temperature
	if len(temps) == 0 {
		return model.SourceSummary{}, fmt.Errorf("weather: payload has no temperature series")
	}
	lo, hi := temps[0], temps[0]
	for _, t := range temps {
		if t < lo {
			lo = t
		}
		if t > hi {
			hi = t
		}
	}
	wetHours := 0.0
	for _, p := range payload.Hourly.Precipitation {
		if p > 0 {
			wetHours++
		}
	}
	metrics := map[string]float64{
		"avg_temperature":     round3(mean(temps)),
		"temperature_range":   round3(hi - lo),
		"precipitation_hours": wetHours,
		"comfort_index":       comfortIndex(mean(temps), wetHours, float64(len(temps))),
	}
	return model.SourceSummary{Source: "weather", Metrics: metrics, Series: temps}, nil
}

// comfortIndex scores outdoor shopping conditions in [0,1]: 1 at a dry 20C,
// falling off linearly with distance from 20C and with the share of wet hours.
func comfortIndex(avgTemp, wetHours, totalHours float64) float64 {
	tempScore := 1 - math.Abs(avgTemp-20)/30
	if tempScore < 0 {
		tempScore = 0
	}
	dryScore := 1.0
	if totalHours > 0 {
		dryScore = 1 - wetHours/totalHours
	}
	return round3(tempScore * dryScore)
}
