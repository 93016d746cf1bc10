package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_events_received_total",
			Help: "Total application events fetched from the broker",
		},
		[]string{"topic"},
	)

	eventsLanded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_events_landed_total",
			Help: "Total application events inserted into the analytics store",
		},
		[]string{"topic"},
	)

	eventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_events_skipped_total",
			Help: "Total application events skipped before landing",
		},
		[]string{"topic", "reason"},
	)

	flushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_flush_duration_seconds",
			Help:    "Time to land one event batch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	batchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_batch_size",
			Help:    "Rows per landed batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 200, 400},
		},
		[]string{"topic"},
	)
)
