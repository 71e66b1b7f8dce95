// internal/infra/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Saga metrics
var (
	AttemptsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issuance_attempts_started_total",
			Help: "Issuance attempts started, by network",
		},
		[]string{"network"},
	)

	Outcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issuance_outcomes_total",
			Help: "Start/Resume outcomes by operation and status",
		},
		[]string{"operation", "status"},
	)

	Failures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issuance_failures_total",
			Help: "Failed attempts by phase and reason code",
		},
		[]string{"phase", "reason"},
	)

	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "issuance_phase_duration_seconds",
			Help:    "Time spent executing each saga phase",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"phase"},
	)
)

// Ledger metrics
var (
	LedgerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issuance_ledger_calls_total",
			Help: "Ledger calls by operation and result (ok, unavailable, rejected, unknown)",
		},
		[]string{"op", "result"},
	)

	LedgerRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issuance_ledger_retries_total",
			Help: "Retries of transient ledger failures by operation",
		},
		[]string{"op"},
	)
)

// Remediation
var (
	RemediationNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issuance_remediation_notifications_total",
			Help: "Operator notifications for partially completed attempts, by result",
		},
		[]string{"result"},
	)
)
