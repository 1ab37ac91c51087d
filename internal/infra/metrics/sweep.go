package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsSweptTotal) }

var jobsSweptTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "insight_jobs_swept_total",
		Help: "Terminal jobs removed by the retention sweeper.",
	},
)

func AddJobsSwept(n int) { jobsSweptTotal.Add(float64(n)) }
