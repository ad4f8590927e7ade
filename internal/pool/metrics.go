package pool

import "github.com/prometheus/client_golang/prometheus"

var (
	queuedTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qexec_pool_queued_tasks",
			Help: "Number of submitted tasks waiting for a pool worker.",
		},
	)

	runningTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qexec_pool_running_tasks",
			Help: "Number of tasks currently executing on a pool worker.",
		},
	)

	tasksRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qexec_pool_tasks_rejected_total",
			Help: "Total number of tasks rejected because the pool was closed.",
		},
	)
)

func init() {
	prometheus.MustRegister(queuedTasks)
	prometheus.MustRegister(runningTasks)
	prometheus.MustRegister(tasksRejected)
}
