package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(narrativeCallsLatencyMs, narrativePromptTokens) }

var narrativeCallsLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "insight_narrative_latency_ms",
		Help:    "Narrative LLM call latency distribution in milliseconds.",
		Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
	},
	[]string{"provider", "success"},
)

var narrativePromptTokens = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "insight_narrative_prompt_tokens",
		Help:    "Prompt token counts sent to the narrative LLM.",
		Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000},
	},
)

func ObserveNarrative(provider string, latencyMs int64, promptTokens int, success bool) {
	narrativeCallsLatencyMs.WithLabelValues(norm(provider), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
	if promptTokens > 0 {
		narrativePromptTokens.Observe(float64(promptTokens))
	}
}
