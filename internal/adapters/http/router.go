package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/docextract/internal/config"
	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/core/ports"
	"github.com/kirillkom/docextract/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/docextract/internal/observability/metrics"
)

const (
	serviceName = "api"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Router struct {
	cfg       config.Config
	extractor ports.DocumentExtractor
	submitter ports.JobSubmitter
	jobs      ports.JobReader
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger

	maxInFlight int
	queueWait   time.Duration
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// WithBackpressure bounds concurrent requests; waiting longer than wait for a slot yields 503.
func WithBackpressure(maxInFlight int, wait time.Duration) RouterOption {
	return func(rt *Router) {
		rt.maxInFlight = maxInFlight
		rt.queueWait = wait
	}
}

func NewRouter(
	cfg config.Config,
	extractor ports.DocumentExtractor,
	submitter ports.JobSubmitter,
	jobs ports.JobReader,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		cfg:       cfg,
		extractor: extractor,
		submitter: submitter,
		jobs:      jobs,
		logger:    slog.Default(),
		queueWait: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/extract", rt.extractDocument)
	mux.HandleFunc("POST /v1/documents", rt.submitDocument)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getJobByID)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var onLimited func()
	if rt.metrics != nil {
		onLimited = func() { rt.metrics.RecordRateLimited(serviceName) }
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.queueWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, onLimited)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// extractDocument runs the orchestrator synchronously. Every well-formed upload gets 200 with
// an envelope, including fallback outcomes.
func (rt *Router) extractDocument(w http.ResponseWriter, r *http.Request) {
	if rt.extractor == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "extraction is not configured"})
		return
	}

	name, data, err := rt.readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, "extract", int64(len(data)))
	}

	outcome := rt.extractor.Extract(r.Context(), domain.Document{Name: name, Data: data})
	env := outcome.Envelope()

	rt.logger.Info("sync_extraction_done",
		"request_id", requestIDFromContext(r.Context()),
		"file_name", name,
		"status", outcome.Status,
		"confidence", outcome.Confidence,
	)

	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName(name)))
		if err := xlsx.Write(w, env); err != nil {
			rt.logger.Error("xlsx_export_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (rt *Router) submitDocument(w http.ResponseWriter, r *http.Request) {
	if rt.submitter == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "job submission is not configured"})
		return
	}
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, "documents", header.Size)
	}

	job, err := rt.submitter.Submit(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getJobByID(w http.ResponseWriter, r *http.Request) {
	if rt.jobs == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "job store is not configured"})
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	job, err := rt.jobs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// readUpload accepts either a multipart "file" field or a raw body named by ?name=.
func (rt *Router) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", nil, err
			}
			return "", nil, domain.WrapError(domain.ErrInvalidInput, "read upload", fmt.Errorf("multipart field 'file' is required: %w", err))
		}
		defer file.Close()
		data, err := readAll(file)
		if err != nil {
			return "", nil, err
		}
		return header.Filename, data, nil
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		return "", nil, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("query parameter 'name' is required for raw uploads"))
	}
	data, err := readAll(r.Body)
	if err != nil {
		return "", nil, err
	}
	return name, data, nil
}

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	return data, nil
}

func exportName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." {
		base = "document"
	}
	return base + ".xlsx"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
