package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/docextract/internal/bootstrap"
	"github.com/kirillkom/docextract/internal/config"
	"github.com/kirillkom/docextract/internal/observability/logging"
	"github.com/kirillkom/docextract/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	extractionMetrics := metrics.NewExtractionMetrics("worker", workerMetrics.Registry())

	app, err := bootstrap.New(ctx, cfg, logger, extractionMetrics)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_failed", "error", err)
		}
	}()

	// One job may walk the whole chain, each attempt bounded by its timeout.
	jobTimeout := cfg.AttemptTimeout*time.Duration(max(1, cfg.MaxAttempts)) + time.Minute

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "concurrency", cfg.WorkerConcurrency)
	err = app.Queue.SubscribeJobQueued(ctx, func(handlerCtx context.Context, jobID string) error {
		if job, err := app.Repo.GetByID(handlerCtx, jobID); err == nil {
			workerMetrics.ObserveQueueLag("worker", time.Since(job.CreatedAt))
		}

		workerMetrics.StartJob()
		start := time.Now()
		processCtx, cancel := context.WithTimeout(handlerCtx, jobTimeout)
		defer cancel()
		err := app.ProcessUC.ProcessByID(processCtx, jobID)
		workerMetrics.FinishJob("worker", time.Since(start), err)
		return err
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
