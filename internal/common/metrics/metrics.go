// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	ApplicationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_transitions_total",
			Help: "Total application state transitions",
		},
		[]string{"from", "to"},
	)

	OutreachDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_decisions_total",
			Help: "Total HR outreach decisions by outcome",
		},
		[]string{"decision", "reason"},
	)

	SweepsRun = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "submission_sweeps_total",
			Help: "Total stale-submission sweeper runs",
		},
	)

	SweepExpirations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "submission_sweep_expirations_total",
			Help: "Total pending submissions expired by the sweeper",
		},
	)

	CallbacksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callbacks_dropped_total",
			Help: "Total completion callbacks dropped (terminal or unknown work id)",
		},
		[]string{"reason"},
	)

	ScoringDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "scoring_duration_seconds",
			Help: "Duration of ranking runs in seconds",
		},
		[]string{"operation"},
	)
)
