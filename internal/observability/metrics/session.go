package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionMetrics instruments the upload/poll/reconcile core. It satisfies the
// PollMetrics and RefreshMetrics interfaces the usecases accept.
type SessionMetrics struct {
	registry *prometheus.Registry
	service  string

	uploadsTotal    *prometheus.CounterVec
	imagesUploaded  prometheus.Counter
	pollAttempts    prometheus.Counter
	pollOutcomes    *prometheus.CounterVec
	pollDuration    *prometheus.HistogramVec
	refreshTotal    *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
}

func NewSessionMetrics(service string) *SessionMetrics {
	registry := prometheus.NewRegistry()

	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardian",
			Subsystem: "session",
			Name:      "uploads_total",
			Help:      "Total upload batches by result.",
		},
		[]string{"service", "result"},
	)
	imagesUploaded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "guardian",
			Subsystem: "session",
			Name:      "images_uploaded_total",
			Help:      "Total images accepted by the backend.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pollAttempts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "guardian",
			Subsystem: "poller",
			Name:      "attempts_total",
			Help:      "Total status requests issued by the poller.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pollOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardian",
			Subsystem: "poller",
			Name:      "outcomes_total",
			Help:      "Per-image poll loop outcomes.",
		},
		[]string{"service", "outcome"},
	)
	pollDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "guardian",
			Subsystem: "poller",
			Name:      "duration_seconds",
			Help:      "Time from first poll to loop completion.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 90, 120},
		},
		[]string{"service", "outcome"},
	)
	refreshTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardian",
			Subsystem: "reconciler",
			Name:      "refresh_total",
			Help:      "Report collection refreshes by mode and result.",
		},
		[]string{"service", "mode", "result"},
	)
	refreshDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "guardian",
			Subsystem: "reconciler",
			Name:      "refresh_duration_seconds",
			Help:      "Report collection refresh duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "mode"},
	)

	registry.MustRegister(
		uploadsTotal, imagesUploaded,
		pollAttempts, pollOutcomes, pollDuration,
		refreshTotal, refreshDuration,
	)

	return &SessionMetrics{
		registry:        registry,
		service:         service,
		uploadsTotal:    uploadsTotal,
		imagesUploaded:  imagesUploaded,
		pollAttempts:    pollAttempts,
		pollOutcomes:    pollOutcomes,
		pollDuration:    pollDuration,
		refreshTotal:    refreshTotal,
		refreshDuration: refreshDuration,
	}
}

func (m *SessionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *SessionMetrics) UploadDone(accepted int, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.uploadsTotal.WithLabelValues(m.service, result).Inc()
	if accepted > 0 {
		m.imagesUploaded.Add(float64(accepted))
	}
}

func (m *SessionMetrics) PollAttempt() {
	m.pollAttempts.Inc()
}

func (m *SessionMetrics) PollOutcome(outcome string, duration time.Duration) {
	m.pollOutcomes.WithLabelValues(m.service, outcome).Inc()
	m.pollDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
}

func (m *SessionMetrics) RefreshDone(mode string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.refreshTotal.WithLabelValues(m.service, mode, result).Inc()
	m.refreshDuration.WithLabelValues(m.service, mode).Observe(duration.Seconds())
}
