// Package raster turns documents into page images for the OCR engines: PDFs through
// pdftoppm, raster inputs directly. Large pages are downscaled before recognition.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"golang.org/x/image/draw"

	"github.com/kirillkom/docextract/internal/core/domain"
)

type Config struct {
	Pdftoppm string
	DPI      int
	// MaxDim bounds the longer image side in pixels; 0 disables downscaling.
	MaxDim int
}

// Page is one rendered page as PNG bytes. Num is 1-based.
type Page struct {
	Num int
	PNG []byte
}

type Rasterizer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewRasterizer(cfg Config, runner Runner, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Rasterizer{cfg: cfg, runner: runner, logger: logger}
}

// Pages renders up to scope.MaxPages pages (0 = all).
func (r *Rasterizer) Pages(ctx context.Context, data []byte, scope domain.Scope) ([]Page, error) {
	switch Detect(data) {
	case FormatPDF:
		return r.pdfPages(ctx, data, scope)
	case FormatImage:
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, domain.WrapError(domain.ErrUnsupportedInput, "decode image", err)
		}
		encoded, err := encodePNG(Downscale(img, r.cfg.MaxDim))
		if err != nil {
			return nil, err
		}
		return []Page{{Num: 1, PNG: encoded}}, nil
	default:
		return nil, domain.WrapError(domain.ErrUnsupportedInput, "rasterize", errors.New("input is neither pdf nor image"))
	}
}

var pageSuffix = regexp.MustCompile(`-(\d+)\.png$`)

func (r *Rasterizer) pdfPages(ctx context.Context, data []byte, scope domain.Scope) ([]Page, error) {
	tmpDir, err := os.MkdirTemp("", "docextract-pp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			r.logger.Warn("temp_dir_cleanup_failed", "path", tmpDir, "error", err)
		}
	}()

	input := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(r.cfg.DPI), "-png"}
	if scope.MaxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(scope.MaxPages))
	}
	args = append(args, input, prefix)
	if _, stderr, err := r.runner.Run(ctx, r.cfg.Pdftoppm, args...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(stderr), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	if len(matches) == 0 {
		return nil, errors.New("pdftoppm produced no images")
	}

	pages := make([]Page, 0, len(matches))
	for _, path := range matches {
		m := pageSuffix.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rendered page: %w", err)
		}
		pages = append(pages, Page{Num: num, PNG: r.shrink(raw)})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Num < pages[j].Num })
	if scope.MaxPages > 0 && len(pages) > scope.MaxPages {
		pages = pages[:scope.MaxPages]
	}
	return pages, nil
}

// shrink downscales an encoded page and keeps the original bytes on any failure.
func (r *Rasterizer) shrink(raw []byte) []byte {
	if r.cfg.MaxDim <= 0 {
		return raw
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil || max(cfg.Width, cfg.Height) <= r.cfg.MaxDim {
		return raw
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return raw
	}
	out, err := encodePNG(Downscale(img, r.cfg.MaxDim))
	if err != nil {
		return raw
	}
	return out
}

// Downscale keeps the aspect ratio so the longer side is at most maxDim.
func Downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || max(w, h) <= maxDim {
		return img
	}
	scale := float64(maxDim) / float64(max(w, h))
	dst := image.NewRGBA(image.Rect(0, 0, max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
