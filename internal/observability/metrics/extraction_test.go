package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/docextract/internal/core/domain"
)

func TestExtractionMetricsCountsOutcomes(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewExtractionMetrics("test", registry)

	m.ObserveAttempt("pdftext", domain.OutcomeRejectedByValidator, 20*time.Millisecond)
	m.ObserveAttempt("tesseract-cli", domain.OutcomeSuccess, time.Second)
	m.ObserveOutcome(domain.StatusPartial, 0.6, 2*time.Second)
	m.ObserveOutcome(domain.StatusPartial, 0.55, time.Second)

	if got := testutil.ToFloat64(m.documentsTotal.WithLabelValues("partial")); got != 2 {
		t.Fatalf("expected 2 partial documents, got %v", got)
	}
	if got := testutil.ToFloat64(m.attemptsTotal.WithLabelValues("pdftext", string(domain.OutcomeRejectedByValidator))); got != 1 {
		t.Fatalf("expected 1 rejected pdftext attempt, got %v", got)
	}
	if n := testutil.CollectAndCount(registry, "docextract_extraction_confidence"); n != 1 {
		t.Fatalf("expected confidence histogram to be registered, got %d series", n)
	}
}

func TestWorkerMetricsSharesRegistry(t *testing.T) {
	w := NewWorkerMetrics("worker")
	NewExtractionMetrics("worker", w.Registry())

	w.StartJob()
	w.FinishJob("worker", time.Second, nil)

	if got := testutil.ToFloat64(w.jobsTotal.WithLabelValues("worker", "stored")); got != 1 {
		t.Fatalf("expected 1 stored job, got %v", got)
	}
	if got := testutil.ToFloat64(w.jobsInFlight); got != 0 {
		t.Fatalf("expected no in-flight jobs, got %v", got)
	}
}

func TestNormalizePathCollapsesDocumentIDs(t *testing.T) {
	if got := normalizePath("/v1/documents/abc"); got != "/v1/documents/{document_id}" {
		t.Fatalf("normalizePath() = %q", got)
	}
	if got := normalizePath("/v1/extract"); got != "/v1/extract" {
		t.Fatalf("normalizePath() = %q", got)
	}
}
