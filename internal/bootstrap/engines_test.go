package bootstrap

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/kirillkom/docextract/internal/config"
	"github.com/kirillkom/docextract/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildChainKeepsConfiguredOrder(t *testing.T) {
	cfg := config.Config{DoclingURL: "http://docling:5001", OCRConcurrency: 1, DoclingConcurrency: 1}

	chain, err := BuildChain(cfg, []string{"tesseract-cli", "pdftext", "docling", "plaintext"}, discardLogger())
	if err != nil {
		t.Fatalf("BuildChain() error = %v", err)
	}
	ids := make([]string, 0, len(chain))
	for _, e := range chain {
		ids = append(ids, e.ID())
	}
	if !slices.Equal(ids, []string{"tesseract-cli", "pdftext", "docling", "plaintext"}) {
		t.Fatalf("unexpected chain: %v", ids)
	}
	if chain[0].Kind() != domain.EngineKindOCR || chain[2].Kind() != domain.EngineKindUnified {
		t.Fatalf("unexpected kinds: %s, %s", chain[0].Kind(), chain[2].Kind())
	}
}

func TestBuildChainSkipsDoclingWithoutURL(t *testing.T) {
	chain, err := BuildChain(config.Config{}, []string{"docling", "plaintext"}, discardLogger())
	if err != nil {
		t.Fatalf("BuildChain() error = %v", err)
	}
	if len(chain) != 1 || chain[0].ID() != "plaintext" {
		t.Fatalf("expected only plaintext, got %d engines", len(chain))
	}
}

func TestBuildChainRejectsUnknownAndDuplicateEngines(t *testing.T) {
	if _, err := BuildChain(config.Config{}, []string{"abbyy"}, discardLogger()); err == nil || !strings.Contains(err.Error(), "unknown engine") {
		t.Fatalf("expected unknown engine error, got %v", err)
	}
	if _, err := BuildChain(config.Config{}, []string{"pdftext", "pdftext"}, discardLogger()); err == nil {
		t.Fatalf("expected duplicate engine error")
	}
	if _, err := BuildChain(config.Config{}, []string{"docling"}, discardLogger()); err == nil {
		t.Fatalf("expected error for chain without usable engines")
	}
}

func TestNewOrchestratorAppliesPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("chain: [plaintext]\npartial_floor: 0.3\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	cfg := config.Load()
	cfg.PolicyFile = path

	orch, err := NewOrchestrator(cfg, discardLogger(), nil)
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	if orch.Policy().PartialFloor != 0.3 {
		t.Fatalf("expected partial floor 0.3, got %v", orch.Policy().PartialFloor)
	}
}

func TestNewOrchestratorExtractsPlainText(t *testing.T) {
	cfg := config.Load()
	cfg.EngineChain = []string{"plaintext"}
	cfg.PolicyFile = ""

	orch, err := NewOrchestrator(cfg, discardLogger(), nil)
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	text := strings.Repeat("The committee approved the annual budget for the regional office. ", 4)
	outcome := orch.Extract(t.Context(), domain.Document{Name: "minutes.txt", Data: []byte(text)})

	if outcome.Status == domain.StatusFallback {
		t.Fatalf("expected plain text to be extracted, got fallback: %+v", outcome.AttemptLog)
	}
	if !slices.Equal(outcome.EnginesUsed, []string{"plaintext"}) {
		t.Fatalf("unexpected engines: %v", outcome.EnginesUsed)
	}
}
