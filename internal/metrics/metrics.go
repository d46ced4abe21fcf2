// Package metrics holds the Prometheus collectors of the chat service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive is the number of open websocket connections.
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections_active",
		Help: "Current number of open websocket connections",
	})

	// RoomSubscriptions is the number of (connection, room) subscriptions.
	RoomSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_room_subscriptions",
		Help: "Current number of room channel subscriptions",
	})

	// MessagesTotal counts send attempts by result: sent, rejected, rate_limited, failed.
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total number of message send attempts by result",
	}, []string{"result"})

	// BroadcastsDropped counts pushes skipped because a client queue was full.
	BroadcastsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_broadcasts_dropped_total",
		Help: "Realtime pushes dropped because the connection queue was full",
	})

	MessagePersistLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_message_persist_seconds",
		Help:    "Time spent persisting a message and its room pointer",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		RoomSubscriptions,
		MessagesTotal,
		BroadcastsDropped,
		MessagePersistLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
