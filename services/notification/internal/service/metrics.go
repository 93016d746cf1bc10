package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_jobs_enqueued_total",
		Help: "Push jobs accepted into the durable queue.",
	})

	jobOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_job_outcomes_total",
		Help: "Terminal push job outcomes.",
	}, []string{"outcome"})

	sendAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_send_attempts_total",
		Help: "Individual provider send attempts, including retries.",
	})

	sendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notification_send_duration_seconds",
		Help:    "Provider send latency per job, retries included.",
		Buckets: prometheus.DefBuckets,
	})

	dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_dispatch_total",
		Help: "Multi-channel dispatch results by channel and status.",
	}, []string{"channel", "status"})
)
