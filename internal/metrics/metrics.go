// Package metrics exposes the hub's Prometheus collectors. Everything is
// registered on a private registry so tests and embedded use never collide
// with the global default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	// MessagesReceived counts raw broker messages by domain.
	MessagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartbus",
		Subsystem: "gateway",
		Name:      "messages_received_total",
		Help:      "Raw messages received from the broker, by topic domain.",
	}, []string{"domain"})

	// MessagesRejected counts messages dropped before reaching state, by
	// reason (malformed_topic, malformed_payload, out_of_range,
	// unknown_device, queue_full).
	MessagesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartbus",
		Subsystem: "gateway",
		Name:      "messages_rejected_total",
		Help:      "Messages dropped before applying, by reason.",
	}, []string{"reason"})

	// SamplesApplied counts location samples accepted into the state store.
	SamplesApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "smartbus",
		Subsystem: "state",
		Name:      "samples_applied_total",
		Help:      "Location samples accepted into the vehicle state store.",
	})

	// SamplesStale counts samples discarded by the freshness check.
	SamplesStale = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "smartbus",
		Subsystem: "state",
		Name:      "samples_stale_total",
		Help:      "Location samples discarded for carrying an old timestamp.",
	})

	// EventsDelivered counts events handed to subscribers, by event type.
	EventsDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartbus",
		Subsystem: "dispatch",
		Name:      "events_delivered_total",
		Help:      "Events delivered to subscribers, by event type.",
	}, []string{"type"})

	// DeliveryFailures counts sends refused by a subscriber's buffer.
	DeliveryFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "smartbus",
		Subsystem: "dispatch",
		Name:      "delivery_failures_total",
		Help:      "Event sends dropped because a subscriber could not keep up.",
	})

	// Subscribers tracks currently registered consumers.
	Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "smartbus",
		Subsystem: "dispatch",
		Name:      "subscribers",
		Help:      "Currently registered event subscribers.",
	})

	// AlertsEscalated counts alerts forwarded to admin subscribers, by kind.
	AlertsEscalated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartbus",
		Subsystem: "alert",
		Name:      "escalated_total",
		Help:      "Alerts escalated to admin subscribers, by kind.",
	}, []string{"kind"})

	// AlertsSuppressed counts alerts dropped by the per-source cooldown.
	AlertsSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "smartbus",
		Subsystem: "alert",
		Name:      "suppressed_total",
		Help:      "System alerts suppressed by the per-source cooldown.",
	})

	// BrokerState is 1 for the broker link's current state, 0 otherwise.
	BrokerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "smartbus",
		Subsystem: "gateway",
		Name:      "broker_state",
		Help:      "Broker connection state (1 for the active state).",
	}, []string{"state"})

	// QueueDepth tracks per-vehicle ingestion queue occupancy.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "smartbus",
		Subsystem: "gateway",
		Name:      "queue_depth",
		Help:      "Samples buffered across per-vehicle ingestion queues.",
	})

	// TrackedVehicles is the number of vehicles with known state.
	TrackedVehicles = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "smartbus",
		Subsystem: "state",
		Name:      "tracked_vehicles",
		Help:      "Vehicles currently present in the state store.",
	})
)

func init() {
	registry.MustRegister(
		MessagesReceived,
		MessagesRejected,
		SamplesApplied,
		SamplesStale,
		EventsDelivered,
		DeliveryFailures,
		Subscribers,
		AlertsEscalated,
		AlertsSuppressed,
		BrokerState,
		QueueDepth,
		TrackedVehicles,
	)
}

// Handler serves the registry in Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// SetBrokerState marks one broker state active and clears the others.
func SetBrokerState(active string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == active {
			v = 1
		}
		BrokerState.WithLabelValues(s).Set(v)
	}
}
