package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	jobsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qexec_jobs_submitted_total",
			Help: "Total number of jobs accepted by a backend.",
		},
		[]string{"backend"},
	)

	jobsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qexec_jobs_rejected_total",
			Help: "Total number of submissions rejected before a job was created.",
		},
		[]string{"backend"},
	)

	jobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qexec_jobs_finished_total",
			Help: "Total number of jobs that reached a terminal status.",
		},
		[]string{"backend", "status"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qexec_job_duration_seconds",
			Help:    "Time from a job starting to run until it reached a terminal status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(jobsSubmitted)
	prometheus.MustRegister(jobsRejected)
	prometheus.MustRegister(jobsFinished)
	prometheus.MustRegister(jobDuration)
}
