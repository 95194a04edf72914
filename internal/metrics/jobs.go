package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsCreatedTotal, tasksProcessedTotal, workersBusy) }

var jobsCreatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "imagepipe_jobs_created_total",
		Help: "Total number of jobs created, labeled by operation kind.",
	},
	[]string{"operation"},
)

var tasksProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "imagepipe_tasks_processed_total",
		Help: "Total number of tasks finished, labeled by terminal status.",
	},
	[]string{"status"}, // 'SUCCESS', 'FAILED'
)

var workersBusy = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "imagepipe_workers_busy",
		Help: "Number of workers currently executing a task.",
	},
)

func IncJobCreated(operation string) {
	jobsCreatedTotal.WithLabelValues(operation).Inc()
}

func IncTaskProcessed(status string) {
	tasksProcessedTotal.WithLabelValues(status).Inc()
}

func WorkerBusy(busy bool) {
	if busy {
		workersBusy.Inc()
		return
	}
	workersBusy.Dec()
}
