// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "speako"

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Recognition attempt metrics
	RecognitionAttempts prometheus.Counter
	RecognitionActive   prometheus.Gauge
	RecognitionEnds     *prometheus.CounterVec
	RecognitionErrors   *prometheus.CounterVec
	RecognitionRestarts prometheus.Counter
	AttemptDuration     prometheus.Histogram
	StaleEventsDropped  prometheus.Counter

	// Transcript metrics
	TranscriptsInterim prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	// Synthesis metrics
	SynthesisUtterances    prometheus.Counter
	SynthesisCancellations prometheus.Counter
	SynthesisVoiceFallback prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Cloud recognizer metrics
	CloudStreamsOpened prometheus.Counter
	CloudStreamErrors  *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RecognitionAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_attempts_total",
			Help:      "Total number of underlying recognizer instances started",
		}),
		RecognitionActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recognition_active",
			Help:      "Number of currently running recognizer instances",
		}),
		RecognitionEnds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_ends_total",
			Help:      "Total number of recognizer instances that ended",
		}, []string{"reason"}),
		RecognitionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_errors_total",
			Help:      "Total number of classified recognition errors",
		}, []string{"category"}),
		RecognitionRestarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_restarts_total",
			Help:      "Total number of continuous-mode restarts",
		}),
		AttemptDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recognition_attempt_duration_seconds",
			Help:      "Lifetime of a recognizer instance in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		StaleEventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_stale_events_dropped_total",
			Help:      "Platform events ignored because their instance was no longer current",
		}),

		TranscriptsInterim: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_interim_total",
			Help:      "Total number of interim transcript callbacks",
		}),
		TranscriptsFinal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final transcript callbacks",
		}),

		SynthesisUtterances: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_utterances_total",
			Help:      "Total number of synthesis requests issued",
		}),
		SynthesisCancellations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_cancellations_total",
			Help:      "Total number of synthesis cancellations",
		}),
		SynthesisVoiceFallback: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_voice_fallback_total",
			Help:      "Requests whose voice was not found and fell back to the platform default",
		}),

		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		CloudStreamsOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cloud_streams_opened_total",
			Help:      "Total number of cloud recognition streams opened",
		}),
		CloudStreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cloud_stream_errors_total",
			Help:      "Total number of cloud recognition stream errors",
		}, []string{"code"}),
	}
}

// RecordAttemptStart records a recognizer instance starting.
func (m *Metrics) RecordAttemptStart() {
	m.RecognitionAttempts.Inc()
	m.RecognitionActive.Inc()
}

// RecordAttemptEnd records a recognizer instance leaving the running state.
func (m *Metrics) RecordAttemptEnd(reason string, durationSeconds float64) {
	m.RecognitionActive.Dec()
	m.RecognitionEnds.WithLabelValues(reason).Inc()
	m.AttemptDuration.Observe(durationSeconds)
}

// RecordError records a classified recognition error.
func (m *Metrics) RecordError(category string) {
	m.RecognitionErrors.WithLabelValues(category).Inc()
}

// RecordRestart records a continuous-mode restart.
func (m *Metrics) RecordRestart() {
	m.RecognitionRestarts.Inc()
}

// RecordStaleEvent records a dropped event from a superseded instance.
func (m *Metrics) RecordStaleEvent() {
	m.StaleEventsDropped.Inc()
}

// RecordInterimTranscript records an interim callback.
func (m *Metrics) RecordInterimTranscript() {
	m.TranscriptsInterim.Inc()
}

// RecordFinalTranscript records a final callback.
func (m *Metrics) RecordFinalTranscript() {
	m.TranscriptsFinal.Inc()
}

// RecordUtterance records a synthesis request.
func (m *Metrics) RecordUtterance() {
	m.SynthesisUtterances.Inc()
}

// RecordSynthesisCancel records a synthesis cancellation.
func (m *Metrics) RecordSynthesisCancel() {
	m.SynthesisCancellations.Inc()
}

// RecordVoiceFallback records a voice lookup that fell back to the default.
func (m *Metrics) RecordVoiceFallback() {
	m.SynthesisVoiceFallback.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordCloudStreamOpen records a cloud recognition stream being opened.
func (m *Metrics) RecordCloudStreamOpen() {
	m.CloudStreamsOpened.Inc()
}

// RecordCloudStreamError records a cloud stream failure by gRPC code.
func (m *Metrics) RecordCloudStreamError(code string) {
	m.CloudStreamErrors.WithLabelValues(code).Inc()
}
