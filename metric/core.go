package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "probestream"

// Metrics contains the pipeline-level metrics shared across components.
// Component-specific metrics are registered separately through the Registry.
type Metrics struct {
	// Lifecycle and health
	ComponentStatus   *prometheus.GaugeVec
	HealthCheckStatus *prometheus.GaugeVec
	ErrorsTotal       *prometheus.CounterVec

	// Decoder
	BytesConsumed     prometheus.Counter
	MessagesExtracted *prometheus.CounterVec
	DecodeWarnings    *prometheus.CounterVec

	// Reset
	ResetsTotal  prometheus.Counter
	SessionEpoch prometheus.Gauge

	// Router
	MessagesRouted  *prometheus.CounterVec
	PendingDepth    prometheus.Gauge
	PendingEvicted  prometheus.Counter
	Undeliverable   *prometheus.CounterVec
	PendingFlushed  prometheus.Counter
	TapDeliveries   prometheus.Counter

	// Log sink
	SinkIngested      *prometheus.CounterVec
	SinkFlushes       prometheus.Counter
	SinkBatchedMode   prometheus.Gauge
	SinkVelocity      prometheus.Gauge
	ArtifactRotations prometheus.Counter
	ArtifactErrors    prometheus.Counter

	// Broker connectivity
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates the core metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		ComponentStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "component",
				Name:      "status",
				Help:      "Component status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"component"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"component"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by component and class",
			},
			[]string{"component", "class"},
		),

		BytesConsumed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "decoder",
				Name:      "bytes_total",
				Help:      "Total stream bytes fed to the extractor",
			},
		),

		MessagesExtracted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "decoder",
				Name:      "messages_total",
				Help:      "Total messages extracted by kind",
			},
			[]string{"kind"},
		),

		DecodeWarnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "decoder",
				Name:      "warnings_total",
				Help:      "Total decode warnings by reason",
			},
			[]string{"reason"},
		),

		ResetsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reset",
				Name:      "resets_total",
				Help:      "Total completed assert/deassert reset cycles",
			},
		),

		SessionEpoch: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "reset",
				Name:      "session_epoch",
				Help:      "Current session epoch",
			},
		),

		MessagesRouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "messages_total",
				Help:      "Total messages routed by kind",
			},
			[]string{"kind"},
		),

		PendingDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "pending_depth",
				Help:      "Messages parked for unregistered window destinations",
			},
		),

		PendingEvicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "pending_evicted_total",
				Help:      "Pending messages evicted by queue overflow",
			},
		),

		Undeliverable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "undeliverable_total",
				Help:      "Messages that could not be delivered or parked, by kind",
			},
			[]string{"kind"},
		),

		PendingFlushed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "pending_flushed_total",
				Help:      "Pending messages delivered on late registration",
			},
		),

		TapDeliveries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "tap_deliveries_total",
				Help:      "Messages fanned out to taps",
			},
		),

		SinkIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sink",
				Name:      "ingested_total",
				Help:      "Messages ingested by the log sink, by kind",
			},
			[]string{"kind"},
		),

		SinkFlushes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sink",
				Name:      "flushes_total",
				Help:      "Batch flushes performed by the log sink",
			},
		),

		SinkBatchedMode: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sink",
				Name:      "batched_mode",
				Help:      "Log sink delivery mode (0=immediate, 1=batched)",
			},
		),

		SinkVelocity: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sink",
				Name:      "velocity",
				Help:      "Observed message velocity in messages per second",
			},
		),

		ArtifactRotations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sink",
				Name:      "artifact_rotations_total",
				Help:      "Log artifacts opened due to session boundaries",
			},
		),

		ArtifactErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sink",
				Name:      "artifact_errors_total",
				Help:      "Artifact store failures",
			},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

func (m *Metrics) mustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		m.ComponentStatus,
		m.HealthCheckStatus,
		m.ErrorsTotal,
		m.BytesConsumed,
		m.MessagesExtracted,
		m.DecodeWarnings,
		m.ResetsTotal,
		m.SessionEpoch,
		m.MessagesRouted,
		m.PendingDepth,
		m.PendingEvicted,
		m.Undeliverable,
		m.PendingFlushed,
		m.TapDeliveries,
		m.SinkIngested,
		m.SinkFlushes,
		m.SinkBatchedMode,
		m.SinkVelocity,
		m.ArtifactRotations,
		m.ArtifactErrors,
		m.NATSConnected,
		m.NATSReconnects,
	)
}

// RecordComponentStatus updates a component's lifecycle status gauge.
func (m *Metrics) RecordComponentStatus(component string, status int) {
	m.ComponentStatus.WithLabelValues(component).Set(float64(status))
}

// RecordHealthStatus updates a component's health gauge.
func (m *Metrics) RecordHealthStatus(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(value)
}

// RecordError increments the error counter for a component.
func (m *Metrics) RecordError(component, class string) {
	m.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordBytesConsumed adds to the decoder byte counter.
func (m *Metrics) RecordBytesConsumed(n int) {
	m.BytesConsumed.Add(float64(n))
}

// RecordMessageExtracted increments the extraction counter for a kind.
func (m *Metrics) RecordMessageExtracted(kind string) {
	m.MessagesExtracted.WithLabelValues(kind).Inc()
}

// RecordDecodeWarning increments the warning counter for a reason.
func (m *Metrics) RecordDecodeWarning(reason string) {
	m.DecodeWarnings.WithLabelValues(reason).Inc()
}

// RecordReset counts one completed reset cycle and moves the epoch gauge.
func (m *Metrics) RecordReset(epoch uint64) {
	m.ResetsTotal.Inc()
	m.SessionEpoch.Set(float64(epoch))
}

// RecordMessageRouted increments the routing counter for a kind.
func (m *Metrics) RecordMessageRouted(kind string) {
	m.MessagesRouted.WithLabelValues(kind).Inc()
}

// RecordUndeliverable increments the undeliverable counter for a kind.
func (m *Metrics) RecordUndeliverable(kind string) {
	m.Undeliverable.WithLabelValues(kind).Inc()
}

// RecordSinkIngested increments the sink ingest counter for a kind.
func (m *Metrics) RecordSinkIngested(kind string) {
	m.SinkIngested.WithLabelValues(kind).Inc()
}

// RecordSinkMode sets the sink mode gauge.
func (m *Metrics) RecordSinkMode(batched bool) {
	value := 0.0
	if batched {
		value = 1.0
	}
	m.SinkBatchedMode.Set(value)
}

// RecordNATSStatus updates the NATS connection gauge.
func (m *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.NATSConnected.Set(value)
}
