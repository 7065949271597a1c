package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace is the metric name prefix for all LapStream metrics.
const Namespace = "lapstream"

// Registry holds all application metrics.
type Registry struct {
	// Connection metrics
	FramesReceived    *prometheus.CounterVec
	ReconnectAttempts prometheus.Counter
	Reconnections     prometheus.Counter
	SendsRejected     prometheus.Counter
	BufferDepth       prometheus.Gauge

	// Intake feed metrics
	FeedPackets       prometheus.Counter
	FeedDecryptErrors prometheus.Counter

	// Fanout metrics
	FanoutClients prometheus.Gauge
	FramesSent    *prometheus.CounterVec
	FramesDropped prometheus.Counter

	// Session metrics
	SessionsStarted prometheus.Counter
	LapsCompleted   prometheus.Counter

	reg *prometheus.Registry
}

// NewRegistry creates a metrics registry with all collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames received from the live connection, by event.",
		}, []string{"event"}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Failed connection attempts that triggered the reconnection policy.",
		}),
		Reconnections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reconnections_total",
			Help:      "Successful reconnections after at least one failed attempt.",
		}),
		SendsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sends_rejected_total",
			Help:      "Outbound sends rejected because the client was not connected.",
		}),
		BufferDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "ring_buffer_depth",
			Help:      "Samples currently retained in the telemetry ring buffer.",
		}),
		FeedPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "feed_packets_total",
			Help:      "Simulator datagrams decoded by the intake feed.",
		}),
		FeedDecryptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "feed_decrypt_errors_total",
			Help:      "Datagrams dropped because decryption or decoding failed.",
		}),
		FanoutClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "fanout_clients",
			Help:      "Consumers currently attached to the fanout server.",
		}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_sent_total",
			Help:      "Frames broadcast to consumers, by event.",
		}, []string{"event"}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames dropped because a consumer was too slow.",
		}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_started_total",
			Help:      "Recording sessions started.",
		}),
		LapsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "laps_completed_total",
			Help:      "Laps detected and completed across all sessions.",
		}),
		reg: reg,
	}

	reg.MustRegister(
		r.FramesReceived,
		r.ReconnectAttempts,
		r.Reconnections,
		r.SendsRejected,
		r.BufferDepth,
		r.FeedPackets,
		r.FeedDecryptErrors,
		r.FanoutClients,
		r.FramesSent,
		r.FramesDropped,
		r.SessionsStarted,
		r.LapsCompleted,
	)

	return r
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
