// Package metrics defines prometheus metrics to expose
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creativemind_api_task_duration_seconds",
			Help:    "Total time taken for paid tasks in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120, 180},
		},
		[]string{"capability"},
	)

	TaskCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creativemind_api_task_count_total",
			Help: "Total number of paid tasks processed",
		},
		[]string{"capability", "status"},
	)

	CreditUsage = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creativemind_api_credit_usage_total",
			Help: "Total credits consumed by successful tasks",
		},
		[]string{"capability"},
	)

	CreditsPurchased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creativemind_api_credits_purchased_total",
			Help: "Total credits added through verified payments",
		},
		[]string{"plan"},
	)

	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creativemind_api_provider_retries_total",
			Help: "Retried provider attempts",
		},
		[]string{"capability"},
	)

	ErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creativemind_api_error_count",
			Help: "Error count",
		},
		[]string{"capability", "kind"},
	)

	ResponseCodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creativemind_api_status_code",
			Help: "Status Codes",
		},
		[]string{"path", "status_code"},
	)
)
