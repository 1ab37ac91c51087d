package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(jobsSubmittedTotal, jobsFinishedTotal, jobDurationSeconds) }

var jobsSubmittedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "insight_jobs_submitted_total",
		Help: "Total number of accepted analysis job submissions.",
	},
)

var jobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "insight_jobs_finished_total",
		Help: "Total number of jobs reaching a terminal status.",
	},
	[]string{"status"}, // 'completed', 'failed', 'timed_out'
)

var jobDurationSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "insight_job_duration_seconds",
		Help:    "Wall-clock time from submission to terminal status.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	},
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncJobSubmitted() { jobsSubmittedTotal.Inc() }

func ObserveJobFinished(status string, seconds float64) {
	jobsFinishedTotal.WithLabelValues(norm(status)).Inc()
	jobDurationSeconds.Observe(seconds)
}
