package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Messaging metrics for monitoring message lifecycle and real-time delivery
var (
	MessagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vahub_messages_sent_total",
		Help: "Total number of messages accepted by the store",
	}, []string{"sender_role", "intercepted"})

	MessagesMarkedReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vahub_messages_marked_read_total",
		Help: "Total number of messages transitioned to read",
	})

	InterceptActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vahub_intercept_actions_total",
		Help: "Total number of admin intercept actions",
	}, []string{"action"})

	NotificationsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vahub_notifications_created_total",
		Help: "Total number of durable notification records created",
	}, []string{"recipient_online"})

	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vahub_websocket_connections",
		Help: "Current number of registered websocket clients",
	})

	WebSocketBroadcastDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vahub_websocket_broadcast_drops_total",
		Help: "Total number of broadcasts dropped because a client send buffer was full",
	})

	PresenceTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vahub_presence_transitions_total",
		Help: "Total number of presence status transitions",
	}, []string{"to"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vahub_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})
)
