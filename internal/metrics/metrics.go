// Package metrics exposes pipeline counters on the dashboard's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsReceived counts event-feed notifications by event type.
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_events_received_total",
		Help: "EventSub notifications received, by type",
	}, []string{"type"})

	// ChatMessages counts chat lines after moderation filtering.
	ChatMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "companion_chat_messages_total",
		Help: "Chat messages processed",
	})

	// MessagesDeleted counts messages removed by the banned-word filter.
	MessagesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "companion_messages_deleted_total",
		Help: "Chat messages deleted by moderation",
	})

	// AlertsEnqueued counts alerts added to the playback queue, by alert type.
	AlertsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_alerts_enqueued_total",
		Help: "Alerts enqueued for playback, by type",
	}, []string{"type"})

	// AlertsPlayed counts alerts dispatched to the overlay.
	AlertsPlayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "companion_alerts_played_total",
		Help: "Alerts broadcast to the alerts overlay",
	})

	// AlertTimeouts counts safety-timer expiries (overlay never acked).
	AlertTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "companion_alert_timeouts_total",
		Help: "Alert playbacks recovered by the safety timer",
	})

	// Reconnects counts event-feed reconnection attempts.
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "companion_eventsub_reconnects_total",
		Help: "EventSub reconnection attempts",
	})

	// Broadcasts counts widget WebSocket broadcasts, by widget family.
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_widget_broadcasts_total",
		Help: "Widget WebSocket broadcasts, by widget",
	}, []string{"widget"})

	// WidgetClients tracks connected widget clients, by widget family.
	WidgetClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "companion_widget_clients",
		Help: "Currently connected widget clients, by widget",
	}, []string{"widget"})

	// SubCount mirrors the running subscriber total.
	SubCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "companion_sub_count",
		Help: "Current subscriber total",
	})
)
