package cdc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdc_records_received_total",
			Help: "Total CDC records fetched from the broker",
		},
		[]string{"topic"},
	)

	recordsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdc_records_stored_total",
			Help: "Total CDC records upserted into the analytics store",
		},
		[]string{"topic"},
	)

	recordsDeduped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdc_records_deduped_total",
			Help: "Total CDC records skipped as duplicates",
		},
		[]string{"topic"},
	)

	recordsDeadLettered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdc_records_dead_lettered_total",
			Help: "Total CDC records sent to the dead-letter topic",
		},
		[]string{"topic"},
	)

	invalidationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdc_invalidations_published_total",
			Help: "Total feed invalidation notices published for stored records",
		},
		[]string{"topic"},
	)

	invalidationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdc_invalidations_failed_total",
			Help: "Total feed invalidation notices that failed to publish",
		},
		[]string{"topic"},
	)

	processDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cdc_process_duration_seconds",
			Help:    "Time to validate, transform, and store one CDC record",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	offsetCommitted = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cdc_offset_committed",
			Help: "Last committed offset checkpoint per topic",
		},
		[]string{"topic"},
	)
)
