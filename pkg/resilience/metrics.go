package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	breakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	retryAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (excluding first tries)",
		},
	)

	shedRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "load_shed_rejections_total",
			Help: "Total number of operations rejected by load shedding",
		},
		[]string{"name"},
	)

	inflightGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "load_shed_inflight",
			Help: "Current number of inflight operations per shedder",
		},
		[]string{"name"},
	)
)
