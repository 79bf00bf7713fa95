package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimulatorMetrics contains Prometheus metrics for the device simulator.
type SimulatorMetrics struct {
	ActiveDevices  prometheus.Gauge
	TelemetrySent  prometheus.Counter
	SOSRaised      prometheus.Counter
	RequestErrors  *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
}

// NewSimulatorMetrics creates and registers simulator metrics.
func NewSimulatorMetrics(namespace string) *SimulatorMetrics {
	m := &SimulatorMetrics{
		ActiveDevices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "active_devices",
				Help:      "Number of simulated devices currently running",
			},
		),
		TelemetrySent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "telemetry_sent_total",
				Help:      "Total number of telemetry pushes sent",
			},
		),
		SOSRaised: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "sos_raised_total",
				Help:      "Total number of simulated SOS alerts raised",
			},
		),
		RequestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "request_errors_total",
				Help:      "Total number of failed requests against the server",
			},
			[]string{"operation"},
		),
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "request_duration_seconds",
				Help:      "Duration of requests against the server",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}

	MustRegister(
		m.ActiveDevices,
		m.TelemetrySent,
		m.SOSRaised,
		m.RequestErrors,
		m.RequestLatency,
	)

	return m
}
