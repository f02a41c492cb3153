package pdfprofile

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/infrastructure/pdfdoc"
	"github.com/kirillkom/docextract/internal/infrastructure/raster"
)

type Config struct {
	// SamplePages bounds how many leading pages are inspected; 0 inspects all.
	SamplePages int
	// MinGlyphChars is the text length below which a drawn page counts as scanned.
	MinGlyphChars int
}

func DefaultConfig() Config {
	return Config{SamplePages: 0, MinGlyphChars: 50}
}

type Profiler struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinGlyphChars <= 0 {
		cfg.MinGlyphChars = DefaultConfig().MinGlyphChars
	}
	if cfg.SamplePages < 0 {
		cfg.SamplePages = 0
	}
	return &Profiler{cfg: cfg, logger: logger}
}

// Profile never fails: unreadable inputs get an UNKNOWN profile.
func (p *Profiler) Profile(ctx context.Context, doc domain.Document) domain.DocumentProfile {
	size := doc.SizeBytes()
	switch raster.Detect(doc.Data) {
	case raster.FormatPDF:
		return p.profilePDF(ctx, doc)
	case raster.FormatImage:
		return domain.NewDocumentProfile(1, false, true, []int{0}, 0, size)
	case raster.FormatText:
		pages := 1 + strings.Count(string(doc.Data), "\f")
		return domain.NewDocumentProfile(pages, strings.TrimSpace(string(doc.Data)) != "", false, nil, 0, size)
	default:
		return domain.UnknownProfile(size)
	}
}

func (p *Profiler) profilePDF(ctx context.Context, doc domain.Document) domain.DocumentProfile {
	size := doc.SizeBytes()
	pdf, err := pdfdoc.Open(doc.Data)
	if err != nil {
		p.logger.Warn("profile_open_failed", "file_name", doc.Name, "error", err)
		return domain.UnknownProfile(size)
	}

	pageCount := pdf.NumPages()
	if pageCount == 0 {
		return domain.UnknownProfile(size)
	}

	sampled := pageCount
	if p.cfg.SamplePages > 0 {
		sampled = min(pageCount, p.cfg.SamplePages)
	}

	var (
		hasText   bool
		hasImages bool
		scanned   []int
	)
	for num := 1; num <= sampled; num++ {
		if ctx.Err() != nil {
			sampled = num - 1
			break
		}
		text, _ := pdf.PageText(num)
		glyphs := utf8.RuneCountInString(text)
		images := pdf.PageImages(num)

		if glyphs > 0 {
			hasText = true
		}
		if images > 0 {
			hasImages = true
		}
		if glyphs < p.cfg.MinGlyphChars && (images > 0 || pdf.HasContentStream(num)) {
			scanned = append(scanned, num-1)
		}
	}
	if sampled == 0 {
		return domain.UnknownProfile(size)
	}

	profile := domain.NewDocumentProfile(pageCount, hasText, hasImages, scanned, sampled, size)
	info := pdf.Info()
	profile.Author = info.Author
	profile.CreationDate = info.CreationDate

	p.logger.Debug("document_profiled",
		"file_name", doc.Name,
		"pages", pageCount,
		"sampled", sampled,
		"scanned", len(scanned),
		"strategy_hint", profile.StrategyHint,
	)
	return profile
}
