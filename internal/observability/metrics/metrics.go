// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice_qa"

// Metrics holds all Prometheus metrics for the session core.
type Metrics struct {
	// Turn metrics
	TurnsTotal   prometheus.Counter
	TurnsActive  prometheus.Gauge
	TurnDuration prometheus.Histogram

	// Capture metrics
	CaptureStarts      prometheus.Counter
	CaptureRestarts    prometheus.Counter
	CaptureManualStops prometheus.Counter
	CaptureEmpty       prometheus.Counter
	CaptureErrors      *prometheus.CounterVec
	CaptureDuration    prometheus.Histogram

	// Playback metrics
	PlaybackUtterances prometheus.Counter
	PlaybackCancelled  prometheus.Counter
	PlaybackErrors     prometheus.Counter

	// Command and answer metrics
	CommandsTotal   *prometheus.CounterVec
	AnswersCaptured prometheus.Counter

	// Session store metrics
	SessionSaves     prometheus.Counter
	SessionEvictions prometheus.Counter
	StoreErrors      *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		TurnsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of question turns started",
		}),
		TurnsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turns_active",
			Help:      "Number of currently active turns (0 or 1)",
		}),
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of question turns in seconds",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300},
		}),

		CaptureStarts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_starts_total",
			Help:      "Total number of capture sessions started",
		}),
		CaptureRestarts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_restarts_total",
			Help:      "Total number of internal engine restarts absorbed by the capture engine",
		}),
		CaptureManualStops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_manual_stops_total",
			Help:      "Total number of caller-invoked capture stops",
		}),
		CaptureEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_empty_total",
			Help:      "Total number of captures resolved with an empty transcript",
		}),
		CaptureErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Total number of fatal capture errors by class",
		}, []string{"class"}),
		CaptureDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_duration_seconds",
			Help:      "Duration of capture sessions in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		PlaybackUtterances: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_utterances_total",
			Help:      "Total number of utterances spoken",
		}),
		PlaybackCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_cancelled_total",
			Help:      "Total number of utterances cancelled mid-playback",
		}),
		PlaybackErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_errors_total",
			Help:      "Total number of genuine synthesis failures",
		}),

		CommandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of recognized voice commands by kind",
		}, []string{"kind"}),
		AnswersCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_captured_total",
			Help:      "Total number of captures merged into an answer",
		}),

		SessionSaves: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_saves_total",
			Help:      "Total number of session snapshots written",
		}),
		SessionEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_evictions_total",
			Help:      "Total number of sessions evicted by the history cap",
		}),
		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total number of store failures by operation",
		}, []string{"op"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka publish attempts",
		}, []string{"topic", "eventType"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish failures",
		}, []string{"topic", "eventType"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Latency of Kafka publishes in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"topic"}),
	}
}

// RecordTurnStart records a new turn starting.
func (m *Metrics) RecordTurnStart() {
	m.TurnsTotal.Inc()
	m.TurnsActive.Inc()
}

// RecordTurnEnd records a turn ending.
func (m *Metrics) RecordTurnEnd(durationSeconds float64) {
	m.TurnsActive.Dec()
	m.TurnDuration.Observe(durationSeconds)
}

// RecordCaptureStart records a capture session starting.
func (m *Metrics) RecordCaptureStart() {
	m.CaptureStarts.Inc()
}

// RecordCaptureRestart records an internal engine restart.
func (m *Metrics) RecordCaptureRestart() {
	m.CaptureRestarts.Inc()
}

// RecordCaptureEnd records a capture session resolving.
func (m *Metrics) RecordCaptureEnd(empty bool, durationSeconds float64) {
	m.CaptureDuration.Observe(durationSeconds)
	if empty {
		m.CaptureEmpty.Inc()
	}
}

// RecordCaptureError records a fatal capture error.
func (m *Metrics) RecordCaptureError(class string) {
	m.CaptureErrors.WithLabelValues(class).Inc()
}

// RecordCommand records a recognized voice command.
func (m *Metrics) RecordCommand(kind string) {
	m.CommandsTotal.WithLabelValues(kind).Inc()
}

// RecordSessionSave records a snapshot write, with evicted sessions if the
// history cap kicked in.
func (m *Metrics) RecordSessionSave(evicted int) {
	m.SessionSaves.Inc()
	if evicted > 0 {
		m.SessionEvictions.Add(float64(evicted))
	}
}

// RecordStoreError records a store failure for the given operation.
func (m *Metrics) RecordStoreError(op string) {
	m.StoreErrors.WithLabelValues(op).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
