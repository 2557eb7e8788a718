// Package metrics exposes Prometheus instrumentation for the relay.
//
// All recording methods are safe to call on a nil *Metrics, which records
// nothing. This keeps instrumentation optional for tests and embedders.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "botrelay"

// Metrics contains all Prometheus metrics for the relay
type Metrics struct {
	registry *prometheus.Registry

	// Connection metrics
	ConnectionsActive   prometheus.Gauge
	ConnectionsAccepted prometheus.Counter
	ConnectionsClosed   prometheus.Counter

	// Inbound metrics
	FramesReceived  *prometheus.CounterVec
	MalformedFrames prometheus.Counter
	StatusReports   prometheus.Counter

	// Broadcast metrics
	Broadcasts        *prometheus.CounterVec
	SendsDelivered    prometheus.Counter
	SendsFailed       prometheus.Counter
	Evictions         prometheus.Counter
	BroadcastDuration prometheus.Histogram

	// Command metrics
	Commands *prometheus.CounterVec
}

// New creates the relay metrics on a dedicated registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Current number of registered device connections",
		}),
		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of device connections accepted",
		}),
		ConnectionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Total number of device connections closed",
		}),

		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of device frames received, by message kind",
		}, []string{"kind"}),
		MalformedFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_malformed_total",
			Help:      "Total number of device frames that could not be parsed",
		}),
		StatusReports: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_reports_total",
			Help:      "Total number of device status reports received",
		}),

		Broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Total number of broadcasts, by message type and outcome",
		}, []string{"type", "outcome"}),
		SendsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_delivered_total",
			Help:      "Total number of frames delivered to a device",
		}),
		SendsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_failed_total",
			Help:      "Total number of frames that failed to reach a device",
		}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Total number of connections evicted after a failed send",
		}),
		BroadcastDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_duration_seconds",
			Help:      "Time taken to sweep a broadcast across all connections",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of device commands, by capability and result",
		}, []string{"capability", "result"}),
	}
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ConnectionOpened records an accepted and registered connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsAccepted.Inc()
	m.ConnectionsActive.Inc()
}

// ConnectionClosed records a connection leaving the registry.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsClosed.Inc()
	m.ConnectionsActive.Dec()
}

// ConnectionsReset sets the live connection gauge, used after shutdown.
func (m *Metrics) ConnectionsReset(n int) {
	if m == nil {
		return
	}
	m.ConnectionsActive.Set(float64(n))
}

// FrameReceived records a parsed inbound frame of the given kind.
func (m *Metrics) FrameReceived(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "untyped"
	}
	m.FramesReceived.WithLabelValues(kind).Inc()
	if kind == "status" {
		m.StatusReports.Inc()
	}
}

// FrameMalformed records an unparseable inbound frame.
func (m *Metrics) FrameMalformed() {
	if m == nil {
		return
	}
	m.MalformedFrames.Inc()
}

// BroadcastCompleted records the outcome of one broadcast sweep.
func (m *Metrics) BroadcastCompleted(msgType string, delivered, failed int, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "delivered"
	switch {
	case delivered == 0 && failed == 0:
		outcome = "no_recipients"
	case delivered == 0:
		outcome = "failed"
	case failed > 0:
		outcome = "partial"
	}
	m.Broadcasts.WithLabelValues(msgType, outcome).Inc()
	m.SendsDelivered.Add(float64(delivered))
	m.SendsFailed.Add(float64(failed))
	m.Evictions.Add(float64(failed))
	if delivered+failed > 0 {
		m.BroadcastDuration.Observe(took.Seconds())
	}
}

// CommandHandled records a command outcome for a capability.
func (m *Metrics) CommandHandled(capability, result string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(capability, result).Inc()
}
