package cliadapter

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/infrastructure/repository/sqlstore"
)

// history records CLI runs in a local sqlite file through the same job store the services use.
type history struct {
	repo  *sqlstore.JobRepository
	close func() error
}

func openHistory(ctx context.Context, path string) (*history, error) {
	db, err := sqlstore.OpenDB(sqlstore.DialectSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	repo := sqlstore.NewJobRepository(db, sqlstore.DialectSQLite)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare history db: %w", err)
	}
	return &history{repo: repo, close: db.Close}, nil
}

func (h *history) record(ctx context.Context, inputPath string, doc domain.Document, env domain.Envelope) error {
	abs, err := filepath.Abs(inputPath)
	if err != nil {
		abs = inputPath
	}
	now := time.Now().UTC()
	job := &domain.Job{
		ID:          uuid.NewString(),
		Filename:    doc.Name,
		MimeType:    http.DetectContentType(doc.Data),
		StoragePath: abs,
		Status:      domain.JobStatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.repo.Create(ctx, job); err != nil {
		return err
	}
	return h.repo.SaveOutcome(ctx, job.ID, env)
}

func historyAction(c *cli.Context) error {
	h, err := openHistory(c.Context, c.String("db"))
	if err != nil {
		return err
	}
	defer h.close()

	jobs, err := h.repo.ListRecent(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	w := c.App.Writer
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}

	fmt.Fprintf(w, "%-20s %-32s %-9s %-10s %s\n", "Created", "File", "Status", "Confidence", "Engines")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, job := range jobs {
		status, confidence, engines := "-", "-", "-"
		if job.Outcome != nil {
			status = string(job.Outcome.ExtractionInfo.Status)
			confidence = fmt.Sprintf("%.2f", job.Outcome.ExtractionInfo.Confidence)
			engines = strings.Join(job.Outcome.ExtractionInfo.EngineUsed, ",")
		}
		fmt.Fprintf(w, "%-20s %-32s %-9s %-10s %s\n",
			job.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			truncate(job.Filename, 32),
			status,
			confidence,
			engines,
		)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
