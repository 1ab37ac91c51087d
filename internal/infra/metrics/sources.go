package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(sourceFetchesTotal, sourceFetchLatencyMs) }

var sourceFetchesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "insight_source_fetches_total",
		Help: "Source adapter fetches by source and terminal state.",
	},
	[]string{"source", "state"}, // 'ok', 'error', 'timeout'
)

var sourceFetchLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "insight_source_fetch_latency_ms",
		Help:    "Source adapter round-trip latency in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
	},
	[]string{"source"},
)

func ObserveSourceFetch(source, state string, latencyMs int64) {
	sourceFetchesTotal.WithLabelValues(norm(source), norm(state)).Inc()
	sourceFetchLatencyMs.WithLabelValues(norm(source)).Observe(float64(latencyMs))
}
