// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProcessingJobsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "risk_processing_jobs_completed_total",
			Help: "Total number of processing jobs completed",
		},
	)

	ProcessingJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_processing_jobs_failed_total",
			Help: "Total number of processing jobs that reached the error state",
		},
		[]string{"error_code"},
	)

	ProcessingJobsRetried = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "risk_processing_jobs_retried_total",
			Help: "Total number of processing jobs rescheduled for retry",
		},
	)

	ProcessingJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "risk_processing_job_duration_seconds",
			Help:    "Duration of one processing job attempt in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ProcessingJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_processing_jobs_active",
			Help: "Number of processing jobs currently running",
		},
	)

	ClaimConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "risk_processing_claim_conflicts_total",
			Help: "Claims lost to another worker",
		},
	)

	StaleClaimsReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "risk_processing_stale_claims_released_total",
			Help: "Processing claims released after outliving the job timeout",
		},
	)

	ActionPlansGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_action_plans_generated_total",
			Help: "Action plans persisted, by trigger mode",
		},
		[]string{"mode"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of Zeebe jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of Zeebe jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of Zeebe job handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of Zeebe jobs currently being handled",
		},
		[]string{"task_type"},
	)
)
