package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/docextract/internal/config"
	"github.com/kirillkom/docextract/internal/core/ports"
	"github.com/kirillkom/docextract/internal/core/usecase"
	"github.com/kirillkom/docextract/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docextract/internal/infrastructure/repository/sqlstore"
	"github.com/kirillkom/docextract/internal/infrastructure/resilience"
	"github.com/kirillkom/docextract/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue        ports.MessageQueue
	Repo         ports.JobRepository
	Orchestrator *usecase.Orchestrator
	SubmitUC     *usecase.SubmitJobUseCase
	ProcessUC    *usecase.ProcessJobUseCase

	closeFn func()
}

// New wires the service graph shared by the api and worker processes.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, observer ports.ExtractionObserver) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dialect, err := sqlstore.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		return nil, err
	}
	db, err := sqlstore.OpenDB(dialect, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	repo := sqlstore.NewJobRepository(db, dialect)
	if cfg.DatabaseAutoMigrate {
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	brokerResilience := resilience.DefaultConfig()
	brokerResilience.Retry.MaxAttempts = cfg.BrokerPublishRetries
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResultSubject:      cfg.NATSResultSubject,
		Concurrency:        cfg.WorkerConcurrency,
		ResilienceExecutor: resilience.NewExecutor(brokerResilience, logger),
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	orchestrator, err := NewOrchestrator(cfg, logger, observer)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:        queue,
		Repo:         repo,
		Orchestrator: orchestrator,
		SubmitUC:     usecase.NewSubmitJobUseCase(repo, storage, queue),
		ProcessUC:    usecase.NewProcessJobUseCase(repo, storage, orchestrator, queue),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
