// Package telemetry exposes the server's Prometheus metrics. All metrics
// are registered on the default registry and served via /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks live registered socket connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_connections_active",
		Help: "Number of live registered socket connections.",
	})

	// EventsTotal counts inbound socket events by event name.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_events_total",
		Help: "Inbound socket events processed, by event.",
	}, []string{"event"})

	// EventErrorsTotal counts handler-boundary errors by wire code.
	EventErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_event_errors_total",
		Help: "Errors emitted to clients, by code.",
	}, []string{"code"})

	// MessagesPersistedTotal counts messages written to the store.
	MessagesPersistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_messages_persisted_total",
		Help: "Messages persisted by the delivery pipeline.",
	})

	// MessagesDeliveredTotal counts messages that reached a live receiver
	// connection in realtime.
	MessagesDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_messages_delivered_total",
		Help: "Messages delivered to a live receiver connection.",
	})

	// RoutingFallbackTotal counts sends where direct routing missed and
	// the per-user fan-out was attempted.
	RoutingFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_routing_fallback_total",
		Help: "Sends routed through the per-user fan-out fallback.",
	})

	// OfflineReceiversTotal counts sends whose receiver had no live
	// connection; the message stays at status sent.
	OfflineReceiversTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_offline_receivers_total",
		Help: "Sends where the receiver was offline.",
	})

	// TasksDroppedTotal counts fire-and-forget tasks dropped because the
	// runner queue was full.
	TasksDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_tasks_dropped_total",
		Help: "Background tasks dropped due to a full queue.",
	})

	// StaleConnectionsEvicted counts registry entries evicted after their
	// transport was found dead.
	StaleConnectionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_stale_connections_evicted_total",
		Help: "Registry entries evicted after liveness verification failed.",
	})
)
