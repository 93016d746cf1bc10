package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "messaging_ws_connections",
		Help: "Currently connected WebSocket clients.",
	})

	messagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_ws_messages_sent_total",
		Help: "Messages written to WebSocket clients.",
	})

	slowClientsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_ws_slow_clients_dropped_total",
		Help: "Clients disconnected because their send buffer filled.",
	})
)
