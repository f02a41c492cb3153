package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docextract/internal/core/domain"
)

// DocumentExtractor is the inbound contract of the orchestrator. It never returns an error.
type DocumentExtractor interface {
	Extract(ctx context.Context, doc domain.Document) domain.FinalOutcome
}

// JobSubmitter is the inbound contract for asynchronous uploads.
type JobSubmitter interface {
	Submit(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Job, error)
}

// JobReader is the inbound read model for job state.
type JobReader interface {
	GetByID(ctx context.Context, id string) (*domain.Job, error)
}

// JobProcessor is the inbound contract for asynchronous job processing.
type JobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}
