package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_stream_published_total",
		Help: "Entries added to streams by kind (conversation, fanout).",
	}, []string{"kind"})

	publishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_stream_publish_failures_total",
		Help: "Failed stream additions by kind.",
	}, []string{"kind"})

	fanoutDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_fanout_delivered_total",
		Help: "Fanout entries broadcast to the local hub and acked.",
	})

	trimmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_stream_trimmed_total",
		Help: "Entries removed by retention trimming.",
	})

	syncStateFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_sync_state_flushes_total",
		Help: "Per-client sync state writes.",
	})
)
