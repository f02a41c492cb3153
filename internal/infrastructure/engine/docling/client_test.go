package docling

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/infrastructure/resilience"
)

const convertJSON = `{
  "status": "success",
  "document": {
    "filename": "report.pdf",
    "text_content": "",
    "json_content": {
      "pages": {"1": {"page_no": 1}, "2": {"page_no": 2}},
      "texts": [
        {"text": "Annual report", "label": "title", "prov": [{"page_no": 1}]},
        {"text": "Revenue grew.", "label": "text", "prov": [{"page_no": 1}]},
        {"text": "Appendix", "label": "text", "prov": [{"page_no": 2}]}
      ],
      "tables": [
        {"prov": [{"page_no": 2}], "data": {"grid": [[{"text": "Q1"}, {"text": "10"}], [{"text": "Q2"}, {"text": "12"}]]}}
      ],
      "pictures": [{"prov": [{"page_no": 1}]}]
    }
  }
}`

func testEngine(url string) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := resilience.NewExecutor(resilience.Config{
		Retry:   resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		Breaker: resilience.BreakerConfig{Disabled: true},
	}, logger)
	return New(url, time.Second, exec, nil, logger)
}

func TestExtractParsesDocument(t *testing.T) {
	var gotFile string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convert/file" {
			http.NotFound(w, r)
			return
		}
		file, header, err := r.FormFile("files")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			return
		}
		defer file.Close()
		gotFile = header.Filename
		_, _ = w.Write([]byte(convertJSON))
	}))
	defer server.Close()

	result, err := testEngine(server.URL).Extract(context.Background(), domain.Document{Name: "/tmp/report.pdf", Data: []byte("%PDF-1.4")}, domain.Scope{})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if gotFile != "report.pdf" {
		t.Fatalf("uploaded file name = %q", gotFile)
	}
	if len(result.Pages) != 2 || result.Pages[0].Text != "Annual report\nRevenue grew." {
		t.Fatalf("unexpected pages: %+v", result.Pages)
	}
	if len(result.Tables) != 1 || result.Tables[0].Page != 2 || result.Tables[0].Data[1][1] != "12" {
		t.Fatalf("unexpected tables: %+v", result.Tables)
	}
	if len(result.Images) != 1 || len(result.Pages[0].Images) != 1 {
		t.Fatalf("unexpected images: %+v", result.Images)
	}
	if !strings.Contains(result.RawText, "Appendix") {
		t.Fatalf("raw text = %q", result.RawText)
	}
}

func TestExtractReducedScopeDropsLaterPages(t *testing.T) {
	var pageRange []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
		}
		pageRange = r.MultipartForm.Value["page_range"]
		_, _ = w.Write([]byte(convertJSON))
	}))
	defer server.Close()

	result, err := testEngine(server.URL).Extract(context.Background(), domain.Document{Name: "report.pdf", Data: []byte("%PDF")}, domain.Scope{MaxPages: 1})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(pageRange) != 2 || pageRange[1] != "1" {
		t.Fatalf("page_range = %v", pageRange)
	}
	if len(result.Pages) != 1 || len(result.Tables) != 0 {
		t.Fatalf("expected only page 1, got %+v", result)
	}
}

func TestExtractMapsUnsupportedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "format not allowed", http.StatusUnsupportedMediaType)
	}))
	defer server.Close()

	_, err := testEngine(server.URL).Extract(context.Background(), domain.Document{Name: "a.xyz", Data: []byte("x")}, domain.Scope{})
	var engineErr *domain.EngineError
	if !errors.As(err, &engineErr) || engineErr.Kind != domain.EngineErrorUnsupportedInput {
		t.Fatalf("expected unsupported input, got %v", err)
	}
	if !strings.Contains(err.Error(), "format not allowed") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestExtractRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(convertJSON))
	}))
	defer server.Close()

	if _, err := testEngine(server.URL).Extract(context.Background(), domain.Document{Name: "a.pdf", Data: []byte("%PDF")}, domain.Scope{}); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestExtractTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := testEngine(server.URL).Extract(ctx, domain.Document{Name: "a.pdf", Data: []byte("%PDF")}, domain.Scope{})
	if !errors.Is(err, domain.ErrEngineTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}
