package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_reads_total",
		Help: "Feed page reads by source (cache, store, degraded).",
	}, []string{"source"})

	materializeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feed_materialize_duration_seconds",
		Help:    "Time to rank and persist one user's feed.",
		Buckets: prometheus.DefBuckets,
	})

	materializedEntries = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feed_materialized_entries",
		Help:    "Entries persisted per materialization.",
		Buckets: []float64{0, 10, 25, 50, 100, 250, 500},
	})

	invalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_invalidations_total",
		Help: "Feed invalidations handled by kind (user, author, user_deleted).",
	}, []string{"kind"})
)
