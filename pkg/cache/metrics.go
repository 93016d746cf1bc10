package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	missTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses by kind (absent, negative)",
		},
		[]string{"kind"},
	)

	setTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_sets_total",
			Help: "Total number of cache writes",
		},
	)

	negativeSetTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_negative_sets_total",
			Help: "Total number of negative (miss sentinel) writes",
		},
	)

	decodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_decode_failures_total",
			Help: "Total number of entries deleted due to decode failure",
		},
	)

	computeConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_compute_conflicts_total",
			Help: "Total number of get-or-compute CAS conflicts",
		},
	)

	invalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Total number of versioned invalidations",
		},
	)

	staleRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_stale_rejected_total",
			Help: "Total number of versioned entries rejected as stale",
		},
	)

	scanCapTripped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_scan_cap_tripped_total",
			Help: "Times a pattern delete stopped early on MAX_KEYS or MAX_ITERATIONS",
		},
		[]string{"pattern"},
	)
)
