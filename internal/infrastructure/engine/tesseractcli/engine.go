package tesseractcli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/infrastructure/engine"
	"github.com/kirillkom/docextract/internal/infrastructure/raster"
)

const ID = "tesseract-cli"

type Config struct {
	Tesseract   string
	Lang        string
	TessdataDir string
	// PSM is the page segmentation mode; 0 keeps the tesseract default.
	PSM int
}

// Engine recognizes rendered pages with the tesseract binary in TSV mode, which yields the
// text and per-word confidences in a single run.
type Engine struct {
	cfg        Config
	rasterizer *raster.Rasterizer
	runner     raster.Runner
	gate       *engine.Gate
	logger     *slog.Logger
}

func New(cfg Config, rasterizer *raster.Rasterizer, runner raster.Runner, gate *engine.Gate, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = raster.ExecRunner{Logger: logger}
	}
	if gate == nil {
		gate = engine.NewGate(1)
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	return &Engine{cfg: cfg, rasterizer: rasterizer, runner: runner, gate: gate, logger: logger}
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

	pages, err := e.rasterizer.Pages(ctx, doc.Data, scope)
	if err != nil {
		return nil, engine.Fail(ctx, ID, err)
	}

	tmpDir, err := os.MkdirTemp("", "docextract-tess-*")
	if err != nil {
		return nil, engine.Fail(ctx, ID, fmt.Errorf("create temp dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("temp_dir_cleanup_failed", "path", tmpDir, "error", err)
		}
	}()

	return engine.RecognizePages(ctx, ID, pages, func(ctx context.Context, page raster.Page) (engine.Recognition, error) {
		path := filepath.Join(tmpDir, fmt.Sprintf("page-%d.png", page.Num))
		if err := os.WriteFile(path, page.PNG, 0o600); err != nil {
			return engine.Recognition{}, fmt.Errorf("write page image: %w", err)
		}
		out, stderr, err := e.runner.Run(ctx, e.cfg.Tesseract, e.args(path)...)
		if err != nil {
			return engine.Recognition{}, fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(string(stderr)))
		}
		return ParseTSV(string(out)), nil
	}, e.logger)
}

func (e *Engine) args(path string) []string {
	args := []string{path, "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return append(args, "tsv")
}

// ParseTSV rebuilds text from tesseract TSV output. Words on the same line are joined with a
// space, lines with a newline and paragraphs with a blank line. Confidence is the mean word
// confidence scaled to [0,1].
func ParseTSV(raw string) engine.Recognition {
	type lineKey struct{ block, par, line string }

	var (
		b        strings.Builder
		current  lineKey
		lastPar  string
		started  bool
		confSum  float64
		words    int
		lineOpen bool
	)
	for i, ln := range strings.Split(raw, "\n") {
		if i == 0 || strings.TrimSpace(ln) == "" {
			continue
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		key := lineKey{block: cols[2], par: cols[3], line: cols[4]}
		switch {
		case !started:
			started = true
		case key != current:
			b.WriteByte('\n')
			if key.block+"/"+key.par != lastPar {
				b.WriteByte('\n')
			}
			lineOpen = false
		}
		if lineOpen {
			b.WriteByte(' ')
		}
		b.WriteString(word)
		lineOpen = true
		current = key
		lastPar = key.block + "/" + key.par

		if conf, err := strconv.ParseFloat(cols[10], 64); err == nil && conf >= 0 {
			confSum += conf
			words++
		}
	}

	rec := engine.Recognition{Text: b.String(), Words: words}
	if words > 0 {
		rec.Confidence = min(confSum/float64(words)/100.0, 1)
	}
	return rec
}
