package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/core/ports"
)

// ProcessJobUseCase runs the extractor for a queued job. Extraction itself never fails;
// only loading the source or persisting the outcome can mark a job failed.
type ProcessJobUseCase struct {
	repo      ports.JobRepository
	storage   ports.ObjectStorage
	extractor ports.DocumentExtractor
	queue     ports.MessageQueue
}

func NewProcessJobUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	extractor ports.DocumentExtractor,
	queue ports.MessageQueue,
) *ProcessJobUseCase {
	return &ProcessJobUseCase{
		repo:      repo,
		storage:   storage,
		extractor: extractor,
		queue:     queue,
	}
}

func (uc *ProcessJobUseCase) ProcessByID(ctx context.Context, jobID string) error {
	if err := uc.repo.UpdateStatus(ctx, jobID, domain.JobStatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	envelope, err := uc.extract(ctx, jobID)
	if err != nil {
		if failErr := uc.markFailed(ctx, jobID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveOutcome(ctx, jobID, envelope); err != nil {
		err = fmt.Errorf("save outcome: %w", err)
		if failErr := uc.markFailed(ctx, jobID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if uc.queue != nil {
		if err := uc.queue.PublishOutcome(ctx, jobID, envelope); err != nil {
			return fmt.Errorf("publish outcome: %w", err)
		}
	}
	return nil
}

func (uc *ProcessJobUseCase) extract(ctx context.Context, jobID string) (domain.Envelope, error) {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("fetch job by id: %w", err)
	}

	data, err := uc.load(ctx, job.StoragePath)
	if err != nil {
		return domain.Envelope{}, err
	}

	outcome := uc.extractor.Extract(ctx, domain.Document{Name: job.Filename, Data: data})
	return outcome.Envelope(), nil
}

func (uc *ProcessJobUseCase) load(ctx context.Context, key string) ([]byte, error) {
	rc, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "read source document", err)
	}
	return data, nil
}

func (uc *ProcessJobUseCase) markFailed(ctx context.Context, jobID string, processErr error) error {
	return uc.repo.UpdateStatus(ctx, jobID, domain.JobStatusFailed, processErr.Error())
}
