// Package metrics exposes Prometheus instrumentation for the turn pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voxloop service
type Metrics struct {
	// Turn metrics
	TurnsStarted   prometheus.Counter
	TurnsCompleted prometheus.Counter
	TurnsFailed    prometheus.Counter

	// Per-stage latency, labeled by pipeline stage
	StageDuration *prometheus.HistogramVec

	// Conversation metrics
	HistoryLength prometheus.Gauge

	// WebSocket metrics
	ConnectedClients prometheus.Gauge
}

// New creates all metrics and registers them on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TurnsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxloop_turns_started_total",
			Help: "Total number of conversation turns started",
		}),
		TurnsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxloop_turns_completed_total",
			Help: "Total number of conversation turns completed successfully",
		}),
		TurnsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxloop_turns_failed_total",
			Help: "Total number of conversation turns that failed",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voxloop_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~200s
		}, []string{"stage"}),
		HistoryLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voxloop_history_length",
			Help: "Number of messages in the most recently used conversation",
		}),
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voxloop_connected_clients",
			Help: "Current number of connected WebSocket clients",
		}),
	}
}
