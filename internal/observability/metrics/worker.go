package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics tracks asynchronous job handling. Extraction-level series come from
// ExtractionMetrics registered on the same registry.
type WorkerMetrics struct {
	registry *prometheus.Registry

	jobsTotal    *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobsInFlight prometheus.Gauge
	queueLag     *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docextract",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Total handled extraction jobs by result.",
		},
		[]string{"service", "result"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docextract",
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Job handling duration in seconds by result.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "result"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docextract",
			Subsystem: "worker",
			Name:      "jobs_in_flight",
			Help:      "Number of jobs currently being extracted.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docextract",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job submission and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(jobsTotal, jobDuration, jobsInFlight, queueLag)

	return &WorkerMetrics{
		registry:     registry,
		jobsTotal:    jobsTotal,
		jobDuration:  jobDuration,
		jobsInFlight: jobsInFlight,
		queueLag:     queueLag,
	}
}

func (m *WorkerMetrics) Registry() prometheus.Registerer {
	return m.registry
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobsInFlight.Inc()
}

// FinishJob records a handled job. A non-nil err means the job could not be stored,
// never that extraction failed.
func (m *WorkerMetrics) FinishJob(service string, duration time.Duration, err error) {
	m.jobsInFlight.Dec()

	result := "stored"
	if err != nil {
		result = "error"
	}

	m.jobsTotal.WithLabelValues(service, result).Inc()
	m.jobDuration.WithLabelValues(service, result).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
