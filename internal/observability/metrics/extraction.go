package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/docextract/internal/core/domain"
)

// ExtractionMetrics observes orchestrator runs. It satisfies ports.ExtractionObserver.
type ExtractionMetrics struct {
	documentsTotal   *prometheus.CounterVec
	documentDuration *prometheus.HistogramVec
	confidence       prometheus.Histogram
	attemptsTotal    *prometheus.CounterVec
	attemptDuration  *prometheus.HistogramVec
}

func NewExtractionMetrics(service string, registerer prometheus.Registerer) *ExtractionMetrics {
	constLabels := prometheus.Labels{"service": service}

	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "docextract",
			Subsystem:   "extraction",
			Name:        "documents_total",
			Help:        "Total extracted documents by outcome status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	documentDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "docextract",
			Subsystem:   "extraction",
			Name:        "document_duration_seconds",
			Help:        "End-to-end extraction duration in seconds by outcome status.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	confidence := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "docextract",
			Subsystem:   "extraction",
			Name:        "confidence",
			Help:        "Distribution of final outcome confidence.",
			Buckets:     prometheus.LinearBuckets(0.1, 0.1, 10),
			ConstLabels: constLabels,
		},
	)
	attemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "docextract",
			Subsystem:   "extraction",
			Name:        "attempts_total",
			Help:        "Total engine attempts by engine and outcome.",
			ConstLabels: constLabels,
		},
		[]string{"engine", "outcome"},
	)
	attemptDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "docextract",
			Subsystem:   "extraction",
			Name:        "attempt_duration_seconds",
			Help:        "Engine attempt duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"engine"},
	)

	registerer.MustRegister(documentsTotal, documentDuration, confidence, attemptsTotal, attemptDuration)

	return &ExtractionMetrics{
		documentsTotal:   documentsTotal,
		documentDuration: documentDuration,
		confidence:       confidence,
		attemptsTotal:    attemptsTotal,
		attemptDuration:  attemptDuration,
	}
}

func (m *ExtractionMetrics) ObserveAttempt(engine string, outcome domain.AttemptOutcome, duration time.Duration) {
	if strings.TrimSpace(engine) == "" {
		engine = "unknown"
	}
	m.attemptsTotal.WithLabelValues(engine, string(outcome)).Inc()
	m.attemptDuration.WithLabelValues(engine).Observe(duration.Seconds())
}

func (m *ExtractionMetrics) ObserveOutcome(status domain.Status, confidence float64, duration time.Duration) {
	m.documentsTotal.WithLabelValues(string(status)).Inc()
	m.documentDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
	m.confidence.Observe(confidence)
}
