// Package tesseract recognizes rendered pages in-process through libtesseract (gosseract).
// Builds without the "ocr" tag link a stub recognizer that reports the engine unavailable.
package tesseract

import (
	"context"
	"log/slog"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/infrastructure/engine"
	"github.com/kirillkom/docextract/internal/infrastructure/raster"
)

const ID = "tesseract"

type Config struct {
	Lang string
}

// recognizer is one libtesseract handle. Handles are not safe for concurrent use.
type recognizer interface {
	Recognize(png []byte) (engine.Recognition, error)
	Close() error
}

type Engine struct {
	cfg        Config
	rasterizer *raster.Rasterizer
	gate       *engine.Gate
	logger     *slog.Logger
	open       func(lang string) (recognizer, error)
}

func New(cfg Config, rasterizer *raster.Rasterizer, gate *engine.Gate, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if gate == nil {
		gate = engine.NewGate(1)
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	return &Engine{cfg: cfg, rasterizer: rasterizer, gate: gate, logger: logger, open: newRecognizer}
}

func (e *Engine) ID() string              { return ID }
func (e *Engine) Kind() domain.EngineKind { return domain.EngineKindOCR }

func (e *Engine) Extract(ctx context.Context, doc domain.Document, scope domain.Scope) (*domain.ExtractionResult, error) {
	if _, err := engine.RequireFormat(ID, doc.Data, raster.FormatPDF, raster.FormatImage); err != nil {
		return nil, err
	}
	if err := e.gate.Acquire(ctx); err != nil {
		return nil, engine.Fail(ctx, ID, err)
	}
	defer e.gate.Release()

	rec, err := e.open(e.cfg.Lang)
	if err != nil {
		return nil, engine.Fail(ctx, ID, err)
	}
	defer func() {
		if err := rec.Close(); err != nil {
			e.logger.Warn("tesseract_close_failed", "error", err)
		}
	}()

	pages, err := e.rasterizer.Pages(ctx, doc.Data, scope)
	if err != nil {
		return nil, engine.Fail(ctx, ID, err)
	}

	return engine.RecognizePages(ctx, ID, pages, func(_ context.Context, page raster.Page) (engine.Recognition, error) {
		return rec.Recognize(page.PNG)
	}, e.logger)
}
