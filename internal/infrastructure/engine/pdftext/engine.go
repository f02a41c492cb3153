package pdftext

import (
	"context"
	"log/slog"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/infrastructure/engine"
	"github.com/kirillkom/docextract/internal/infrastructure/pdfdoc"
	"github.com/kirillkom/docextract/internal/infrastructure/raster"
	"github.com/kirillkom/docextract/internal/infrastructure/tables"
)

const ID = "pdftext"

// Engine reads the embedded text layer of PDFs page by page, detects whitespace-aligned
// tables in it and reports image XObjects as image regions so scanned pages can be filled by
// OCR later.
type Engine struct {
	tables *tables.Detector
	logger *slog.Logger
}

func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{tables: tables.NewDetector(tables.DefaultConfig()), logger: logger}
}

func (e *Engine) ID() string              { return ID }
func (e *Engine) Kind() domain.EngineKind { return domain.EngineKindTextLayer }

func (e *Engine) Extract(ctx context.Context, doc domain.Document, scope domain.Scope) (*domain.ExtractionResult, error) {
	if _, err := engine.RequireFormat(ID, doc.Data, raster.FormatPDF); err != nil {
		return nil, err
	}
	pdf, err := pdfdoc.Open(doc.Data)
	if err != nil {
		return nil, engine.Unsupported(ID, err)
	}

	total := pdf.NumPages()
	if total == 0 {
		return nil, engine.Unsupported(ID, pdfdoc.ErrNotPDF)
	}

	result := &domain.ExtractionResult{EngineID: ID}
	for num := 1; num <= scope.Limit(total); num++ {
		if err := ctx.Err(); err != nil {
			return nil, engine.Fail(ctx, ID, err)
		}
		text, err := pdf.PageText(num)
		if err != nil {
			e.logger.Debug("pdftext_page_unreadable", "file_name", doc.Name, "page", num, "error", err)
		}
		page := domain.PageResult{PageNum: num, Text: text, ExtractionMethod: domain.MethodNative}
		for _, data := range e.pageTables(pdf, num) {
			table := domain.TableResult{Page: num, Data: data}
			page.Tables = append(page.Tables, table)
			result.Tables = append(result.Tables, table)
		}
		for i := 0; i < pdf.PageImages(num); i++ {
			img := domain.ImageResult{Page: num, Type: "embedded"}
			page.Images = append(page.Images, img)
			result.Images = append(result.Images, img)
		}
		result.Pages = append(result.Pages, page)
	}

	info := pdf.Info()
	result.Metadata = domain.EngineMetadata{Author: info.Author, CreationDate: info.CreationDate}
	result.RawText = engine.JoinPages(result.Pages)
	return result, nil
}

func (e *Engine) pageTables(pdf *pdfdoc.Doc, num int) [][][]string {
	glyphs, err := pdf.PageGlyphs(num)
	if err != nil {
		e.logger.Debug("pdftext_layout_unreadable", "page", num, "error", err)
		return nil
	}
	fragments := make([]tables.Fragment, 0, len(glyphs))
	for _, g := range glyphs {
		fragments = append(fragments, tables.Fragment{X: g.X, Y: g.Y, Width: g.Width, FontSize: g.FontSize, Text: g.Text})
	}
	return e.tables.Detect(fragments)
}
