package plaintext

import (
	"context"
	"errors"
	"strings"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/infrastructure/engine"
	"github.com/kirillkom/docextract/internal/infrastructure/raster"
)

const ID = "plaintext"

// Engine reads UTF-8 text documents. Form feeds split pages.
type Engine struct{}

func New() *Engine {
	return &Engine{}
}

func (e *Engine) ID() string              { return ID }
func (e *Engine) Kind() domain.EngineKind { return domain.EngineKindTextLayer }

func (e *Engine) Extract(ctx context.Context, doc domain.Document, scope domain.Scope) (*domain.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, engine.Fail(ctx, ID, err)
	}
	if !raster.IsText(doc.Data) || len(doc.Data) == 0 {
		return nil, engine.Unsupported(ID, errors.New("unsupported binary format: "+doc.Name))
	}

	chunks := strings.Split(string(doc.Data), "\f")
	limit := scope.Limit(len(chunks))

	result := &domain.ExtractionResult{EngineID: ID}
	for i, chunk := range chunks[:limit] {
		result.Pages = append(result.Pages, domain.PageResult{
			PageNum:          i + 1,
			Text:             strings.TrimSpace(chunk),
			ExtractionMethod: domain.MethodNative,
		})
	}
	result.RawText = engine.JoinPages(result.Pages)
	return result, nil
}
