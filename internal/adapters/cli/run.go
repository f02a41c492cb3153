package cliadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/core/usecase"
	"github.com/kirillkom/docextract/internal/infrastructure/schema"
)

type tracer interface {
	ExtractWithTrace(ctx context.Context, doc domain.Document) (domain.FinalOutcome, []usecase.State)
}

func (a *App) runAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("run expects exactly one file", 1)
	}
	path := c.Args().First()
	data, err := os.ReadFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("read %s: %v", path, err), 1)
	}

	extractor, err := a.newExtractor(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("configure extractor: %v", err), 1)
	}

	doc := domain.Document{Name: filepath.Base(path), Data: data}
	var outcome domain.FinalOutcome
	if t, ok := extractor.(tracer); ok && c.Bool("trace") {
		var trace []usecase.State
		outcome, trace = t.ExtractWithTrace(c.Context, doc)
		states := make([]string, len(trace))
		for i, s := range trace {
			states[i] = string(s)
		}
		fmt.Fprintln(c.App.ErrWriter, strings.Join(states, " -> "))
	} else {
		outcome = extractor.Extract(c.Context, doc)
	}
	env := outcome.Envelope()

	out, err := writeOutputs(path, env, outputOptions{dir: c.String("out"), xlsx: c.Bool("xlsx")})
	if err != nil {
		return err
	}
	a.logger.Info("outputs_written", "json", out.JSON, "text", out.Text, "xlsx", out.XLSX)

	if dbPath := c.String("db"); dbPath != "" {
		h, err := openHistory(c.Context, dbPath)
		if err != nil {
			return err
		}
		defer h.close()
		if err := h.record(c.Context, path, doc, env); err != nil {
			a.logger.Warn("history_record_failed", "file_name", doc.Name, "error", err)
		}
	}

	if c.Bool("text") {
		fmt.Fprintln(c.App.Writer, env.Content.RawText)
	} else {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(env); err != nil {
			return fmt.Errorf("print envelope: %w", err)
		}
	}

	if c.Bool("strict") && outcome.Status == domain.StatusFallback {
		return cli.Exit("", 2)
	}
	return nil
}

func validateAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("validate expects at least one file", 1)
	}
	failed := 0
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err == nil {
			err = schema.ValidateJSON(data)
		}
		if err != nil {
			failed++
			fmt.Fprintf(c.App.Writer, "FAIL %s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(c.App.Writer, "ok   %s\n", path)
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d envelopes invalid", failed, c.NArg()), 1)
	}
	return nil
}
