package executor

import "github.com/prometheus/client_golang/prometheus"

// Task results.
const (
	resultCompleted = "completed"
	resultFailed    = "failed"
	resultRejected  = "rejected"
)

var (
	executorTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_executor_tasks_total",
		Help: "Submitted tasks by result: completed, failed or rejected",
	}, []string{"executor", "result"})

	executorBacklog = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "logrelay_executor_backlog",
		Help: "Tasks waiting for a worker",
	}, []string{"executor"})

	executorRunning = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "logrelay_executor_running",
		Help: "Tasks currently running",
	}, []string{"executor"})

	executorWorkers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "logrelay_executor_workers",
		Help: "Configured worker goroutines",
	}, []string{"executor"})
)

func init() {
	prometheus.MustRegister(
		executorTasksTotal,
		executorBacklog,
		executorRunning,
		executorWorkers,
	)
}
