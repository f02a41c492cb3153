package localfs

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/docextract/internal/core/domain"
)

func TestSaveAndOpen(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.Save(context.Background(), "job-1_report.pdf", strings.NewReader("%PDF-1.4")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rc, err := s.Open(context.Background(), "job-1_report.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	raw, _ := io.ReadAll(rc)
	if string(raw) != "%PDF-1.4" {
		t.Fatalf("unexpected content %q", raw)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, key := range []string{"../escape", "a/b", "", ".hidden"} {
		if err := s.Save(context.Background(), key, strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("Save(%q) error = %v, want invalid input", key, err)
		}
	}
}

func TestOpenMissingKey(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.Open(context.Background(), "missing.pdf"); !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("Open() error = %v, want not found", err)
	}
}
