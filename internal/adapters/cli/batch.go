package cliadapter

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/core/ports"
)

type batchJob struct {
	Path string
}

type batchResult struct {
	Path       string
	Status     domain.Status
	Confidence float64
	Engines    []string
	Elapsed    time.Duration
	Err        error
}

func (a *App) batchAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("batch expects files or directories", 1)
	}
	paths, err := collectInputs(c.Args().Slice())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if len(paths) == 0 {
		return cli.Exit("no input files found", 1)
	}

	extractor, err := a.newExtractor(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("configure extractor: %v", err), 1)
	}

	var hist *history
	if dbPath := c.String("db"); dbPath != "" {
		hist, err = openHistory(c.Context, dbPath)
		if err != nil {
			return err
		}
		defer hist.close()
	}

	workers := max(1, c.Int("workers"))
	opts := outputOptions{dir: c.String("out"), xlsx: c.Bool("xlsx")}
	a.logger.Info("batch_started", "files", len(paths), "workers", workers)

	jobs := make(chan batchJob, len(paths))
	results := make(chan batchResult, len(paths))
	var wg sync.WaitGroup
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go a.batchWorker(c, extractor, hist, opts, &wg, jobs, results)
	}
	for _, p := range paths {
		jobs <- batchJob{Path: p}
	}
	close(jobs)
	wg.Wait()
	close(results)

	collected := make([]batchResult, 0, len(paths))
	for r := range results {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].Path < collected[j].Path })

	return printBatchSummary(c, collected)
}

// batchWorker turns read or write failures into per-file errors; extraction itself cannot fail.
func (a *App) batchWorker(c *cli.Context, extractor ports.DocumentExtractor, hist *history, opts outputOptions, wg *sync.WaitGroup, jobs <-chan batchJob, results chan<- batchResult) {
	defer wg.Done()
	for job := range jobs {
		start := time.Now()
		result := batchResult{Path: job.Path}

		data, err := os.ReadFile(job.Path)
		if err != nil {
			result.Err = fmt.Errorf("read: %w", err)
			results <- result
			continue
		}

		doc := domain.Document{Name: filepath.Base(job.Path), Data: data}
		outcome := extractor.Extract(c.Context, doc)
		env := outcome.Envelope()
		result.Status = outcome.Status
		result.Confidence = outcome.Confidence
		result.Engines = outcome.EnginesUsed

		if _, err := writeOutputs(job.Path, env, opts); err != nil {
			result.Err = err
		}
		if hist != nil {
			if err := hist.record(c.Context, job.Path, doc, env); err != nil {
				a.logger.Warn("history_record_failed", "file_name", doc.Name, "error", err)
			}
		}
		result.Elapsed = time.Since(start)
		a.logger.Info("batch_file_done", "file", job.Path, "status", result.Status, "elapsed_ms", result.Elapsed.Milliseconds())
		results <- result
	}
}

func printBatchSummary(c *cli.Context, results []batchResult) error {
	w := c.App.Writer
	counts := map[domain.Status]int{}
	failed := 0

	fmt.Fprintf(w, "%-40s %-9s %-10s %s\n", "File", "Status", "Confidence", "Engines")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "%-40s %-9s %-10s %v\n", truncate(r.Path, 40), "error", "-", r.Err)
			continue
		}
		counts[r.Status]++
		fmt.Fprintf(w, "%-40s %-9s %-10.2f %s\n", truncate(r.Path, 40), r.Status, r.Confidence, strings.Join(r.Engines, ","))
	}
	fmt.Fprintf(w, "\nTotal: %d  success: %d  partial: %d  fallback: %d  errors: %d\n",
		len(results), counts[domain.StatusSuccess], counts[domain.StatusPartial], counts[domain.StatusFallback], failed)

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d files could not be processed", failed), 1)
	}
	if c.Bool("strict") && counts[domain.StatusFallback] > 0 {
		return cli.Exit("", 2)
	}
	return nil
}

// collectInputs expands directories into their regular files, skipping hidden entries and
// previously written outputs.
func collectInputs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if p != arg && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(name, ".") || isOutputFile(name) {
				return nil
			}
			paths = append(paths, p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return paths, nil
}
