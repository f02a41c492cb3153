package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/docextract/internal/config"
	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/core/usecase"
	"github.com/kirillkom/docextract/internal/infrastructure/schema"
)

type submitSuccessFake struct{}

func (f submitSuccessFake) Submit(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Job, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit", io.EOF)
	}

	now := time.Now().UTC()
	return &domain.Job{
		ID:          "job-1",
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "job-1_file.txt",
		Status:      domain.JobStatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// extractorFake echoes the document back as a one-page success, or falls back on empty input.
type extractorFake struct {
	seen []domain.Document
}

func (f *extractorFake) Extract(_ context.Context, doc domain.Document) domain.FinalOutcome {
	f.seen = append(f.seen, doc)
	if doc.IsEmpty() {
		return usecase.Normalize(usecase.OutcomeDraft{FileName: doc.Name, Status: domain.StatusFallback, EmptyInput: true})
	}
	text := string(doc.Data)
	return usecase.Normalize(usecase.OutcomeDraft{
		FileName:    doc.Name,
		Status:      domain.StatusSuccess,
		Confidence:  0.95,
		EnginesUsed: []string{"plaintext"},
		Content: &domain.ExtractionResult{
			RawText: text,
			Pages:   []domain.PageResult{{PageNum: 1, Text: text}},
			Tables:  []domain.TableResult{{Page: 1, Data: [][]string{{"a", "b"}}}},
		},
		Attempts: []domain.EngineAttempt{{EngineID: "plaintext", Outcome: domain.OutcomeSuccess}},
	})
}

func newMultipartRequest(t *testing.T, target, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func newRouterForIngestTests(extractor *extractorFake) http.Handler {
	return NewRouter(
		config.Config{MaxUploadBytes: 1 << 20},
		extractor,
		submitSuccessFake{},
		jobsErrFake{},
	).Handler()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newRouterForIngestTests(&extractorFake{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestExtractReturnsSchemaValidEnvelope(t *testing.T) {
	extractor := &extractorFake{}
	handler := newRouterForIngestTests(extractor)

	req := newMultipartRequest(t, "/v1/extract", "notes.txt", []byte("meeting notes"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if err := schema.ValidateJSON(res.Body.Bytes()); err != nil {
		t.Fatalf("ValidateJSON() error = %v", err)
	}
	if len(extractor.seen) != 1 || extractor.seen[0].Name != "notes.txt" {
		t.Fatalf("unexpected extractor calls: %+v", extractor.seen)
	}
}

func TestExtractAcceptsRawBodyWithName(t *testing.T) {
	handler := newRouterForIngestTests(&extractorFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/extract?name=empty.pdf", http.NoBody)
	req.Header.Set("Content-Type", "application/pdf")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty input, got %d", res.Code)
	}
	var env domain.Envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if env.ExtractionInfo.Status != domain.StatusFallback || env.Content.RawText != "" {
		t.Fatalf("unexpected envelope: %+v", env.ExtractionInfo)
	}
}

func TestExtractRawBodyRequiresName(t *testing.T) {
	handler := newRouterForIngestTests(&extractorFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/extract", strings.NewReader("data"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestExtractRejectsOversizedUpload(t *testing.T) {
	handler := NewRouter(config.Config{MaxUploadBytes: 8}, &extractorFake{}, nil, nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/extract?name=big.txt", strings.NewReader(strings.Repeat("x", 64)))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestExtractExportsXLSX(t *testing.T) {
	handler := newRouterForIngestTests(&extractorFake{})

	req := newMultipartRequest(t, "/v1/extract?format=xlsx", "report.txt", []byte("table follows"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != xlsxContentType {
		t.Fatalf("unexpected content type %q", got)
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), "report.xlsx") {
		t.Fatalf("unexpected disposition %q", res.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(res.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected zip container")
	}
}

func TestSubmitDocumentSuccess(t *testing.T) {
	handler := newRouterForIngestTests(&extractorFake{})

	req := newMultipartRequest(t, "/v1/documents", "file.txt", []byte("hello"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}

	var jobResp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&jobResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if jobResp["id"] != "job-1" || jobResp["status"] != "uploaded" {
		t.Fatalf("unexpected response: %+v", jobResp)
	}
}

func TestSubmitDocumentMissingMultipartField(t *testing.T) {
	handler := newRouterForIngestTests(&extractorFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetJobByIDReturnsJob(t *testing.T) {
	handler := newRouterForIngestTests(&extractorFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/job-7", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var job domain.Job
	if err := json.NewDecoder(res.Body).Decode(&job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job.ID != "job-7" {
		t.Fatalf("unexpected job: %+v", job)
	}
}
