package main

import (
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/docextract/internal/adapters/mcp"
	"github.com/kirillkom/docextract/internal/bootstrap"
	"github.com/kirillkom/docextract/internal/config"
	"github.com/kirillkom/docextract/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg := config.Load()
	// stdout carries the MCP protocol.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)

	orchestrator, err := bootstrap.NewOrchestrator(cfg, logger, nil)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}

	handler := mcpadapter.NewHandler(orchestrator, mcpadapter.Options{
		Root:     cfg.MCPDocumentRoot,
		MaxBytes: cfg.MaxUploadBytes,
		Logger:   logger,
	})
	if err := server.ServeStdio(mcpadapter.NewServer(handler, version)); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
