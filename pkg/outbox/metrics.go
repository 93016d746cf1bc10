package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Total number of outbox rows published to the broker",
		},
		[]string{"event_type"},
	)

	publishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_failures_total",
			Help: "Total number of outbox publish attempts that failed",
		},
		[]string{"event_type"},
	)

	purgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_purged_total",
			Help: "Total number of published outbox rows purged",
		},
	)

	drainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outbox_drain_duration_seconds",
			Help:    "Duration of one outbox drain cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
