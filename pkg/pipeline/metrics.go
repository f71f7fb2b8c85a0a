package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// completionsTotal tracks completed tasks by status
	completionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_completions_total",
			Help: "Total number of completed fetch tasks by status",
		},
		[]string{"status"}, // "ok", "not_found", "error"
	)

	// taskDuration tracks wall time per task, admission wait excluded
	taskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_task_duration_seconds",
			Help:    "Duration of one fetch task from admission to completion",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	// runsTotal tracks pipeline runs
	runsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_runs_total",
			Help: "Total number of pipeline runs",
		},
	)

	// runDuration tracks wall time per run
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_run_duration_seconds",
			Help:    "Duration of a complete pipeline run",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)
)
