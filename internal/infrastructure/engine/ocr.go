package engine

import (
	"context"
	"log/slog"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/infrastructure/raster"
)

// Recognition is the OCR output for one page image. Confidence is the mean word
// confidence in [0,1]; Words is the number of words it averages over.
type Recognition struct {
	Text       string
	Confidence float64
	Words      int
}

type RecognizeFunc func(ctx context.Context, page raster.Page) (Recognition, error)

// RecognizePages runs recognize over every page and assembles an OCR result. A failing page
// is logged and left empty; the call fails only when no page could be recognized.
func RecognizePages(ctx context.Context, id string, pages []raster.Page, recognize RecognizeFunc, logger *slog.Logger) (*domain.ExtractionResult, error) {
	result := &domain.ExtractionResult{EngineID: id}

	var (
		confSum  float64
		words    int
		failures int
		lastErr  error
	)
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, Fail(ctx, id, err)
		}
		rec, err := recognize(ctx, page)
		if err != nil {
			failures++
			lastErr = err
			logger.Warn("ocr_page_failed", "engine", id, "page", page.Num, "error", err)
			result.Pages = append(result.Pages, domain.PageResult{PageNum: page.Num, ExtractionMethod: domain.MethodOCR})
			continue
		}
		result.Pages = append(result.Pages, domain.PageResult{
			PageNum:          page.Num,
			Text:             rec.Text,
			ExtractionMethod: domain.MethodOCR,
		})
		confSum += rec.Confidence * float64(rec.Words)
		words += rec.Words
	}
	if len(pages) > 0 && failures == len(pages) {
		return nil, Fail(ctx, id, lastErr)
	}

	result.RawText = JoinPages(result.Pages)
	if words > 0 {
		result.EngineConfidence = domain.Confidence(confSum / float64(words))
	}
	return result, nil
}
