package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/docextract/internal/config"
	"github.com/kirillkom/docextract/internal/core/domain"
)

type submitErrFake struct {
	err error
}

func (f submitErrFake) Submit(context.Context, string, string, io.Reader) (*domain.Job, error) {
	return nil, f.err
}

type jobsErrFake struct {
	err error
}

func (f jobsErrFake) GetByID(_ context.Context, id string) (*domain.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	now := time.Now().UTC()
	return &domain.Job{ID: id, Filename: "a.pdf", Status: domain.JobStatusProcessing, CreatedAt: now, UpdatedAt: now}, nil
}

func TestGetJobByIDReturns404ForNotFound(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		nil,
		nil,
		jobsErrFake{err: domain.WrapError(domain.ErrJobNotFound, "get job", errors.New("id=missing"))},
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestSubmitMapsTemporaryErrorTo503(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		nil,
		submitErrFake{err: domain.WrapError(domain.ErrTemporary, "publish job queued event", errors.New("nats down"))},
		nil,
	).Handler()

	req := newMultipartRequest(t, "/v1/documents", "scan.pdf", []byte("%PDF-1.4"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "submit", errors.New("x")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrJobNotFound, "get", errors.New("x")), http.StatusNotFound},
		{domain.NewEngineError("pdftext", domain.EngineErrorUnsupportedInput, nil), http.StatusUnsupportedMediaType},
		{domain.WrapError(domain.ErrTemporary, "open", errors.New("x")), http.StatusServiceUnavailable},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
