package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/docextract/internal/adapters/http"
	"github.com/kirillkom/docextract/internal/bootstrap"
	"github.com/kirillkom/docextract/internal/config"
	"github.com/kirillkom/docextract/internal/observability/logging"
	"github.com/kirillkom/docextract/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	extractionMetrics := metrics.NewExtractionMetrics("api", httpMetrics.Registry())

	app, err := bootstrap.New(ctx, cfg, logger, extractionMetrics)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(
		cfg,
		app.Orchestrator,
		app.SubmitUC,
		app.Repo,
		httpadapter.WithMetrics(httpMetrics),
		httpadapter.WithLogger(logger),
		httpadapter.WithBackpressure(cfg.WorkerConcurrency*4, 250*time.Millisecond),
	).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.AttemptTimeout*time.Duration(max(1, cfg.MaxAttempts)) + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
