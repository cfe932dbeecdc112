// Package metrics exports client health as Prometheus collectors.
package metrics

import (
	"time"

	"domo/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the client's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	connectionState  prometheus.Gauge
	reconnectAttempt prometheus.Gauge
	reconnects       prometheus.Counter
	backoff          prometheus.Histogram
	messages         *prometheus.CounterVec
	logPoints        *prometheus.CounterVec
	sensors          prometheus.Gauge
	actuatorSends    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "domo_connection_state",
			Help: "Control connection state (0=disconnected 1=connecting 2=connected 3=errored).",
		}),
		reconnectAttempt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "domo_reconnect_attempt",
			Help: "Consecutive failed connection attempts since the last successful handshake.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "domo_reconnects_scheduled_total",
			Help: "Reconnects scheduled with backoff after a transport failure.",
		}),
		backoff: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "domo_reconnect_backoff_seconds",
			Help:    "Backoff delay chosen for scheduled reconnects.",
			Buckets: prometheus.ExponentialBuckets(0.2, 2, 10),
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "domo_messages_received_total",
			Help: "Inbound control messages by message type.",
		}, []string{"message"}),
		logPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "domo_log_points_total",
			Help: "Sensor log points received, by outcome (appended, duplicate, pruned).",
		}, []string{"outcome"}),
		sensors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "domo_sensors",
			Help: "Sensors currently cached.",
		}),
		actuatorSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "domo_actuator_edits_total",
			Help: "Local actuator edits by outcome (sent, dropped, unchanged).",
		}, []string{"outcome"}),
	}
	m.Registry.MustRegister(
		m.connectionState,
		m.reconnectAttempt,
		m.reconnects,
		m.backoff,
		m.messages,
		m.logPoints,
		m.sensors,
		m.actuatorSends,
	)
	return m
}

func (m *Metrics) SetConnectionState(s models.ConnectionState, attempt int) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(s))
	m.reconnectAttempt.Set(float64(attempt))
}

func (m *Metrics) ReconnectScheduled(delay time.Duration) {
	if m == nil {
		return
	}
	m.reconnects.Inc()
	m.backoff.Observe(delay.Seconds())
}

func (m *Metrics) MessageReceived(message string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(message).Inc()
}

// LogPoints records the outcome of one append.
func (m *Metrics) LogPoints(appended, duplicate, pruned int) {
	if m == nil {
		return
	}
	m.logPoints.WithLabelValues("appended").Add(float64(appended))
	m.logPoints.WithLabelValues("duplicate").Add(float64(duplicate))
	m.logPoints.WithLabelValues("pruned").Add(float64(pruned))
}

func (m *Metrics) SetSensors(n int) {
	if m == nil {
		return
	}
	m.sensors.Set(float64(n))
}

func (m *Metrics) ActuatorEdit(outcome string) {
	if m == nil {
		return
	}
	m.actuatorSends.WithLabelValues(outcome).Inc()
}
