package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/docextract/internal/core/domain"
)

type JobRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewJobRepository(db *sql.DB, dialect Dialect) *JobRepository {
	return &JobRepository{db: db, dialect: dialect, now: time.Now}
}

func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if r.dialect == DialectPostgres {
		// Serialize bootstrap DDL across api/worker startups.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, r.dialect.schema()); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO extraction_jobs (
	id, filename, mime_type, storage_path, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`),
		job.ID, job.Filename, job.MimeType, job.StoragePath, string(job.Status), job.Error, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

const selectJob = `
SELECT id, filename, mime_type, storage_path, status, error_message, outcome, created_at, updated_at
FROM extraction_jobs
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var status string
	var outcomeRaw []byte

	if err := row.Scan(
		&job.ID, &job.Filename, &job.MimeType, &job.StoragePath, &status, &job.Error,
		&outcomeRaw, &job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	if len(outcomeRaw) > 0 {
		var env domain.Envelope
		if err := json.Unmarshal(outcomeRaw, &env); err != nil {
			return nil, fmt.Errorf("unmarshal outcome: %w", err)
		}
		job.Outcome = &env
	}
	return &job, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(selectJob+`WHERE id = $1`), id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return job, nil
}

// ListRecent returns the newest jobs first.
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(selectJob+`ORDER BY created_at DESC LIMIT $1`), limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`
UPDATE extraction_jobs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`), id, string(status), errMessage, r.now().UTC())
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return ensureAffected(res, "update job status", id)
}

// SaveOutcome stores the envelope and marks the job done.
func (r *JobRepository) SaveOutcome(ctx context.Context, id string, outcome domain.Envelope) error {
	raw, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`
UPDATE extraction_jobs
SET status = $2, error_message = '', outcome_status = $3, confidence = $4, outcome = $5, updated_at = $6
WHERE id = $1
`), id, string(domain.JobStatusDone), string(outcome.ExtractionInfo.Status), outcome.ExtractionInfo.Confidence, string(raw), r.now().UTC())
	if err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	return ensureAffected(res, "save outcome", id)
}

func ensureAffected(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return domain.WrapError(domain.ErrJobNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}
