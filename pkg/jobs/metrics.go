package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_job_runs_total",
			Help: "Total number of refresh job executions by outcome",
		},
		[]string{"job", "outcome"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refresh_job_duration_seconds",
			Help:    "Duration of successful refresh job executions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	ticksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_job_ticks_dropped_total",
			Help: "Ticks dropped because the previous execution was still running",
		},
		[]string{"job"},
	)
)
