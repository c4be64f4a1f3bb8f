package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"plate-order-backend/internal/capture"
)

// Metrics contains all Prometheus metrics for the order service
type Metrics struct {
	// Recording metrics
	ActiveRecordings    prometheus.Gauge
	RecordingsStarted   prometheus.Counter
	RecordingsStopped   *prometheus.CounterVec
	RecordingsCancelled prometheus.Counter
	RecordingFailures   *prometheus.CounterVec
	RecordingDuration   prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionDuration prometheus.Histogram

	// Order metrics
	OrdersCreated       *prometheus.CounterVec
	StatusTransitions   *prometheus.CounterVec
	RejectedTransitions *prometheus.CounterVec
	FeedSnapshots       *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveRecordings: f.NewGauge(prometheus.GaugeOpts{
			Name: "plate_active_recordings",
			Help: "Current number of recordings in progress",
		}),
		RecordingsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "plate_recordings_started_total",
			Help: "Total number of recordings started",
		}),
		RecordingsStopped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "plate_recordings_stopped_total",
			Help: "Total number of recordings stopped, by reason",
		}, []string{"reason"}),
		RecordingsCancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "plate_recordings_cancelled_total",
			Help: "Total number of recordings cancelled",
		}),
		RecordingFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "plate_recording_failures_total",
			Help: "Total number of microphone acquisition failures",
		}, []string{"kind"}),
		RecordingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "plate_recording_duration_seconds",
			Help:    "Duration of finished recordings",
			Buckets: prometheus.LinearBuckets(1, 3, 11), // 1s to 31s
		}),

		TranscriptionRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "plate_transcription_requests_total",
			Help: "Total number of transcription requests",
		}),
		TranscriptionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "plate_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "plate_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),

		OrdersCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "plate_orders_created_total",
			Help: "Total number of orders created, by type",
		}, []string{"type"}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "plate_status_transitions_total",
			Help: "Total number of applied status transitions",
		}, []string{"from", "to"}),
		RejectedTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "plate_rejected_transitions_total",
			Help: "Total number of rejected status changes, by reason",
		}, []string{"reason"}),
		FeedSnapshots: f.NewCounterVec(prometheus.CounterOpts{
			Name: "plate_feed_snapshots_total",
			Help: "Total number of order feed snapshots emitted",
		}, []string{"transport"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "plate_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "plate_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordingStarted implements capture.Observer.
func (m *Metrics) RecordingStarted() {
	m.RecordingsStarted.Inc()
	m.ActiveRecordings.Inc()
}

// RecordingStopped implements capture.Observer.
func (m *Metrics) RecordingStopped(reason capture.StopReason, d time.Duration) {
	m.ActiveRecordings.Dec()
	m.RecordingsStopped.WithLabelValues(string(reason)).Inc()
	m.RecordingDuration.Observe(d.Seconds())
}

// RecordingCancelled implements capture.Observer.
func (m *Metrics) RecordingCancelled() {
	m.ActiveRecordings.Dec()
	m.RecordingsCancelled.Inc()
}

// RecordingFailed implements capture.Observer.
func (m *Metrics) RecordingFailed(kind capture.MediaErrorKind) {
	m.RecordingFailures.WithLabelValues(string(kind)).Inc()
}

// ObserveTranscription records one transcription attempt.
func (m *Metrics) ObserveTranscription(d time.Duration, err error) {
	m.TranscriptionRequests.Inc()
	m.TranscriptionDuration.Observe(d.Seconds())
	if err != nil {
		m.TranscriptionFailures.Inc()
	}
}

// OrderCreated counts a persisted order.
func (m *Metrics) OrderCreated(orderType string) {
	m.OrdersCreated.WithLabelValues(orderType).Inc()
}

// Transition counts an applied status change.
func (m *Metrics) Transition(from, to string) {
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

// TransitionRejected counts a refused status change.
func (m *Metrics) TransitionRejected(reason string) {
	m.RejectedTransitions.WithLabelValues(reason).Inc()
}

// FeedSnapshot counts a snapshot pushed by a feed transport.
func (m *Metrics) FeedSnapshot(transport string) {
	m.FeedSnapshots.WithLabelValues(transport).Inc()
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
