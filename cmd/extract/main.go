package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	cliadapter "github.com/kirillkom/docextract/internal/adapters/cli"
	"github.com/kirillkom/docextract/internal/bootstrap"
	"github.com/kirillkom/docextract/internal/config"
	"github.com/kirillkom/docextract/internal/core/ports"
	"github.com/kirillkom/docextract/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "extract", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	newExtractor := func(c *cli.Context) (ports.DocumentExtractor, error) {
		runCfg := cfg
		if policy := c.String("policy"); policy != "" {
			runCfg.PolicyFile = policy
		}
		if chain := c.String("chain"); chain != "" {
			runCfg.EngineChain = splitChain(chain)
		}
		return bootstrap.NewOrchestrator(runCfg, logger, nil)
	}

	app := cliadapter.NewApp(newExtractor, logger, version)
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func splitChain(raw string) []string {
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
