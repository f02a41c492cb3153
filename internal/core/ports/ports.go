package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/docextract/internal/core/domain"
)

// EngineAdapter wraps one external extraction capability. Implementations must honor
// ctx cancellation and return only *domain.EngineError on failure.
type EngineAdapter interface {
	ID() string
	Kind() domain.EngineKind
	Extract(ctx context.Context, doc domain.Document, scope domain.Scope) (*domain.ExtractionResult, error)
}

// DocumentProfiler inspects a document once. It never fails.
type DocumentProfiler interface {
	Profile(ctx context.Context, doc domain.Document) domain.DocumentProfile
}

// ResultValidator scores a raw engine result against the document profile.
type ResultValidator interface {
	Score(result domain.ExtractionResult, profile domain.DocumentProfile) float64
}

// ExtractionObserver receives per-attempt and per-document signals (metrics sinks).
type ExtractionObserver interface {
	ObserveAttempt(engine string, outcome domain.AttemptOutcome, duration time.Duration)
	ObserveOutcome(status domain.Status, confidence float64, duration time.Duration)
}

// JobRepository persists asynchronous job state and outcomes. SaveOutcome also marks the job done.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error
	SaveOutcome(ctx context.Context, id string, outcome domain.Envelope) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes extraction requests and completed outcomes.
type MessageQueue interface {
	PublishJobQueued(ctx context.Context, jobID string) error
	SubscribeJobQueued(ctx context.Context, handler func(context.Context, string) error) error
	PublishOutcome(ctx context.Context, jobID string, outcome domain.Envelope) error
}
