package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the real-time subsystem.
type Metrics struct {
	// ConnectionsActive tracks currently registered connections by group.
	ConnectionsActive *prometheus.GaugeVec

	// ConnectionsRejected counts handshakes refused by the connection limiters.
	ConnectionsRejected *prometheus.CounterVec

	// MessagesReceived counts inbound frames by message type.
	MessagesReceived *prometheus.CounterVec

	// MessagesMalformed counts inbound frames that failed to decode.
	MessagesMalformed prometheus.Counter

	// MessagesRateLimited counts inbound frames dropped by the per-connection limiter.
	MessagesRateLimited prometheus.Counter

	// Deliveries counts per-connection send attempts by group and result.
	Deliveries *prometheus.CounterVec

	// ConnectionsPruned counts connections removed after a failed send.
	ConnectionsPruned *prometheus.CounterVec

	// SecurityAlerts counts alerts raised for sensitive event kinds.
	SecurityAlerts *prometheus.CounterVec

	// PersistenceFailures counts failed appends to the event store.
	PersistenceFailures prometheus.Counter

	// HandlerPanics counts recovered panics in message handling.
	HandlerPanics prometheus.Counter
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectionsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Currently registered websocket connections by group",
		}, []string{"group"}),
		ConnectionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_connections_rejected_total",
			Help: "Websocket handshakes rejected by reason",
		}, []string{"reason"}),
		MessagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_messages_received_total",
			Help: "Inbound websocket messages by type",
		}, []string{"type"}),
		MessagesMalformed: f.NewCounter(prometheus.CounterOpts{
			Name: "ws_messages_malformed_total",
			Help: "Inbound websocket messages that could not be decoded",
		}),
		MessagesRateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "ws_messages_rate_limited_total",
			Help: "Inbound websocket messages rejected by the per-connection rate limit",
		}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_deliveries_total",
			Help: "Per-connection send attempts by group and result",
		}, []string{"group", "result"}),
		ConnectionsPruned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_connections_pruned_total",
			Help: "Connections removed from a group after a failed send",
		}, []string{"group"}),
		SecurityAlerts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "security_alerts_total",
			Help: "Security alerts raised by event kind",
		}, []string{"kind"}),
		PersistenceFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "event_persistence_failures_total",
			Help: "Activity events that could not be persisted",
		}),
		HandlerPanics: f.NewCounter(prometheus.CounterOpts{
			Name: "ws_handler_panics_total",
			Help: "Recovered panics while handling an inbound message",
		}),
	}
}

// NewNop returns collectors registered on a private registry, for tests and
// tools that do not expose /metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler exposes the collectors gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
