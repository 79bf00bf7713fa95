package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ServerMetrics contains Prometheus metrics for the carewatch API server.
type ServerMetrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec
	WebsocketClients     prometheus.Gauge
	BroadcastsTotal      *prometheus.CounterVec
	BroadcastsDropped    prometheus.Counter
	EmergenciesRaised    prometheus.Counter
	EmergenciesResolved  prometheus.Counter
}

// NewServerMetrics creates and registers API server metrics.
func NewServerMetrics(namespace string) *ServerMetrics {
	m := &ServerMetrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
			[]string{"method", "path"},
		),
		WebsocketClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "websocket",
				Name:      "clients",
				Help:      "Number of connected websocket clients",
			},
		),
		BroadcastsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "websocket",
				Name:      "broadcasts_total",
				Help:      "Total number of broadcast events by type",
			},
			[]string{"event"},
		),
		BroadcastsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "websocket",
				Name:      "broadcasts_dropped_total",
				Help:      "Total number of broadcast events dropped because the channel was full",
			},
		),
		EmergenciesRaised: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "emergency",
				Name:      "raised_total",
				Help:      "Total number of SOS emergencies raised",
			},
		),
		EmergenciesResolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "emergency",
				Name:      "resolved_total",
				Help:      "Total number of emergencies resolved",
			},
		),
	}

	MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.WebsocketClients,
		m.BroadcastsTotal,
		m.BroadcastsDropped,
		m.EmergenciesRaised,
		m.EmergenciesResolved,
	)

	return m
}
