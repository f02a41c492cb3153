// Package engine holds helpers shared by the engine adapters.
package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/infrastructure/raster"
)

// Gate bounds concurrent calls into an adapter that is not safe for unbounded parallelism.
type Gate struct {
	slots chan struct{}
}

func NewGate(size int) *Gate {
	return &Gate{slots: make(chan struct{}, max(1, size))}
}

func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) Release() {
	<-g.slots
}

// Fail maps any adapter failure onto an EngineError. A fired deadline wins over whatever
// error the underlying call produced.
func Fail(ctx context.Context, id string, err error) *domain.EngineError {
	if err == nil {
		err = errors.New("unknown failure")
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewEngineError(id, domain.EngineErrorTimeout, err)
	}
	return domain.AsEngineError(id, err)
}

// Unsupported is a shorthand for UNSUPPORTED_INPUT failures.
func Unsupported(id string, err error) *domain.EngineError {
	return domain.NewEngineError(id, domain.EngineErrorUnsupportedInput, err)
}

// RequireFormat fails fast with UNSUPPORTED_INPUT when the input is none of the formats.
func RequireFormat(id string, data []byte, formats ...raster.Format) (raster.Format, error) {
	got := raster.Detect(data)
	for _, f := range formats {
		if got == f {
			return got, nil
		}
	}
	return got, Unsupported(id, errors.New("input format "+string(got)+" not handled"))
}

// JoinPages builds raw text from page texts, skipping blank pages.
func JoinPages(pages []domain.PageResult) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if text := strings.TrimSpace(p.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
