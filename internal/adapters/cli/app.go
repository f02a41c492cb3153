// Package cliadapter is the command-line surface: single-file runs, batches, envelope
// validation and the local run history.
package cliadapter

import (
	"log/slog"
	"slices"

	"github.com/urfave/cli/v2"

	"github.com/kirillkom/docextract/internal/core/ports"
	"github.com/kirillkom/docextract/internal/infrastructure/schema"
)

// ExtractorFactory builds the extractor lazily so commands that do not extract never touch
// engine configuration.
type ExtractorFactory func(c *cli.Context) (ports.DocumentExtractor, error)

type App struct {
	newExtractor ExtractorFactory
	logger       *slog.Logger
}

func NewApp(newExtractor ExtractorFactory, logger *slog.Logger, version string) *cli.App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{newExtractor: newExtractor, logger: logger}

	outputFlags := []cli.Flag{
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "directory for <file>.extracted.json/.txt (default: next to the input)"},
		&cli.BoolFlag{Name: "xlsx", Usage: "also write <name>.xlsx with the extracted tables"},
		&cli.StringFlag{Name: "db", Usage: "sqlite file recording every run", EnvVars: []string{"EXTRACT_HISTORY_DB"}},
		&cli.BoolFlag{Name: "strict", Usage: "exit with status 2 when an outcome is fallback"},
	}

	return &cli.App{
		Name:    "extract",
		Usage:   "extract text, tables and images from documents; never fails",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "policy", Usage: "YAML policy file", EnvVars: []string{"EXTRACT_POLICY_FILE"}},
			&cli.StringFlag{Name: "chain", Usage: "comma-separated engine chain", EnvVars: []string{"ENGINE_CHAIN"}},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "extract one document and print its envelope",
				ArgsUsage: "<file>",
				Flags: slices.Concat(outputFlags, []cli.Flag{
					&cli.BoolFlag{Name: "text", Usage: "print raw text instead of the envelope"},
					&cli.BoolFlag{Name: "trace", Usage: "print the orchestrator state trace to stderr"},
				}),
				Action: a.runAction,
			},
			{
				Name:      "batch",
				Usage:     "extract many documents concurrently",
				ArgsUsage: "<file|dir>...",
				Flags: slices.Concat(outputFlags, []cli.Flag{
					&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Value: 4, Usage: "concurrent documents"},
				}),
				Action: a.batchAction,
			},
			{
				Name:      "validate",
				Usage:     "check envelope JSON files against the schema",
				ArgsUsage: "<envelope.json>...",
				Action:    validateAction,
			},
			{
				Name:  "history",
				Usage: "list recorded runs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Required: true, EnvVars: []string{"EXTRACT_HISTORY_DB"}},
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: historyAction,
			},
			{
				Name:  "schema",
				Usage: "print the envelope JSON schema",
				Action: func(c *cli.Context) error {
					_, err := c.App.Writer.Write(schema.Source())
					return err
				},
			},
		},
	}
}
