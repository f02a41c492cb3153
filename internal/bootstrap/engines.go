package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/kirillkom/docextract/internal/config"
	"github.com/kirillkom/docextract/internal/core/ports"
	"github.com/kirillkom/docextract/internal/core/usecase"
	"github.com/kirillkom/docextract/internal/infrastructure/engine"
	"github.com/kirillkom/docextract/internal/infrastructure/engine/docling"
	"github.com/kirillkom/docextract/internal/infrastructure/engine/pdftext"
	"github.com/kirillkom/docextract/internal/infrastructure/engine/plaintext"
	"github.com/kirillkom/docextract/internal/infrastructure/engine/tesseract"
	"github.com/kirillkom/docextract/internal/infrastructure/engine/tesseractcli"
	"github.com/kirillkom/docextract/internal/infrastructure/profiler/pdfprofile"
	"github.com/kirillkom/docextract/internal/infrastructure/raster"
	"github.com/kirillkom/docextract/internal/infrastructure/resilience"
)

// BuildChain instantiates the engines named in chain, in that order. Docling is skipped when
// no URL is configured; any other unknown name is an error.
func BuildChain(cfg config.Config, chain []string, logger *slog.Logger) ([]ports.EngineAdapter, error) {
	runner := raster.ExecRunner{Logger: logger}
	rasterizer := raster.NewRasterizer(raster.Config{
		Pdftoppm: cfg.PdftoppmBin,
		DPI:      cfg.OCRDPI,
		MaxDim:   cfg.OCRMaxImageDim,
	}, runner, logger)
	ocrGate := engine.NewGate(cfg.OCRConcurrency)

	seen := make(map[string]bool, len(chain))
	engines := make([]ports.EngineAdapter, 0, len(chain))
	for _, id := range chain {
		if seen[id] {
			return nil, fmt.Errorf("engine %q listed twice in chain", id)
		}
		seen[id] = true

		switch id {
		case docling.ID:
			if cfg.DoclingURL == "" {
				logger.Warn("engine_disabled", "engine", id, "reason", "DOCLING_URL is empty")
				continue
			}
			executor := resilience.NewExecutor(resilience.EngineConfig(cfg.DoclingRetries, cfg.DoclingBreakerOpen), logger)
			engines = append(engines, docling.New(cfg.DoclingURL, cfg.DoclingTimeout, executor, engine.NewGate(cfg.DoclingConcurrency), logger))
		case pdftext.ID:
			engines = append(engines, pdftext.New(logger))
		case plaintext.ID:
			engines = append(engines, plaintext.New())
		case tesseract.ID:
			engines = append(engines, tesseract.New(tesseract.Config{Lang: cfg.TesseractLang}, rasterizer, ocrGate, logger))
		case tesseractcli.ID:
			engines = append(engines, tesseractcli.New(tesseractcli.Config{
				Tesseract:   cfg.TesseractBin,
				Lang:        cfg.TesseractLang,
				TessdataDir: cfg.OCRTessdataDir,
				PSM:         cfg.TesseractPSM,
			}, rasterizer, runner, ocrGate, logger))
		default:
			return nil, fmt.Errorf("unknown engine %q in chain", id)
		}
	}
	if len(engines) == 0 {
		return nil, fmt.Errorf("engine chain %v has no usable engines", chain)
	}
	return engines, nil
}

// NewOrchestrator wires profiler, chain and policy. observer may be nil.
func NewOrchestrator(cfg config.Config, logger *slog.Logger, observer ports.ExtractionObserver) (*usecase.Orchestrator, error) {
	policy, chainIDs, err := cfg.Policy()
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	chain, err := BuildChain(cfg, chainIDs, logger)
	if err != nil {
		return nil, fmt.Errorf("build engine chain: %w", err)
	}
	profiler := pdfprofile.New(pdfprofile.Config{SamplePages: cfg.ProfileSamplePages}, logger)

	opts := []usecase.Option{usecase.WithLogger(logger)}
	if observer != nil {
		opts = append(opts, usecase.WithObserver(observer))
	}
	ids := make([]string, 0, len(chain))
	for _, e := range chain {
		ids = append(ids, e.ID())
	}
	logger.Info("orchestrator_ready", "chain", ids, "max_attempts", policy.MaxAttempts, "partial_floor", policy.PartialFloor)
	return usecase.NewOrchestrator(profiler, chain, policy, opts...), nil
}
