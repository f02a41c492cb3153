package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/core/ports"
)

type SubmitJobUseCase struct {
	repo    ports.JobRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	now     func() time.Time
}

func NewSubmitJobUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *SubmitJobUseCase {
	return &SubmitJobUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		now:     time.Now,
	}
}

// Submit stores the upload, records a job and queues it for extraction.
func (uc *SubmitJobUseCase) Submit(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Job, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit job", fmt.Errorf("filename is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := uc.now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	job := &domain.Job{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Status:      domain.JobStatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := uc.queue.PublishJobQueued(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish job queued event: %w", err)
	}

	return job, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		return "document.bin"
	}
	return base
}
