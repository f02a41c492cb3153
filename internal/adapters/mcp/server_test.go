package mcpadapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/core/usecase"
)

type extractorFake struct {
	docs []domain.Document
}

func (f *extractorFake) Extract(_ context.Context, doc domain.Document) domain.FinalOutcome {
	f.docs = append(f.docs, doc)
	text := string(doc.Data)
	return usecase.Normalize(usecase.OutcomeDraft{
		FileName:    doc.Name,
		Status:      domain.StatusSuccess,
		Confidence:  0.9,
		EnginesUsed: []string{"plaintext"},
		Content:     &domain.ExtractionResult{RawText: text, Pages: []domain.PageResult{{PageNum: 1, Text: text}}},
		Attempts:    []domain.EngineAttempt{{EngineID: "plaintext", Outcome: domain.OutcomeSuccess}},
	})
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = ToolName
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("expected tool content")
	}
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
	}
	return ""
}

func TestExtractReadsPathInsideRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "memo.txt"), []byte("board memo"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	fake := &extractorFake{}
	h := NewHandler(fake, Options{Root: root})

	res, err := h.Extract(context.Background(), callRequest(map[string]any{"path": "memo.txt"}))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}

	var env domain.Envelope
	if err := json.Unmarshal([]byte(resultText(t, res)), &env); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if env.ExtractionInfo.FileName != "memo.txt" || env.Content.RawText != "board memo" {
		t.Fatalf("unexpected envelope: %+v", env.ExtractionInfo)
	}
}

func TestExtractRejectsEscapingPath(t *testing.T) {
	root := t.TempDir()
	h := NewHandler(&extractorFake{}, Options{Root: filepath.Join(root, "docs")})

	res, err := h.Extract(context.Background(), callRequest(map[string]any{"path": "../../etc/passwd"}))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	// Cleaning against "/" keeps the path under the root, so the file simply does not exist.
	if !res.IsError {
		t.Fatalf("expected tool error")
	}
}

func TestExtractInlineContentAsText(t *testing.T) {
	fake := &extractorFake{}
	h := NewHandler(fake, Options{})

	res, err := h.Extract(context.Background(), callRequest(map[string]any{
		"content_base64": base64.StdEncoding.EncodeToString([]byte("inline text")),
		"file_name":      "inline.txt",
		"format":         "text",
	}))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := resultText(t, res); got != "inline text" {
		t.Fatalf("unexpected text %q", got)
	}
	if len(fake.docs) != 1 || fake.docs[0].Name != "inline.txt" {
		t.Fatalf("unexpected docs: %+v", fake.docs)
	}
}

func TestExtractRequiresInput(t *testing.T) {
	h := NewHandler(&extractorFake{}, Options{})

	res, err := h.Extract(context.Background(), callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "required") {
		t.Fatalf("expected required-argument tool error")
	}
}

func TestExtractPathDisabledWithoutRoot(t *testing.T) {
	h := NewHandler(&extractorFake{}, Options{})

	res, err := h.Extract(context.Background(), callRequest(map[string]any{"path": "a.pdf"}))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error when path access is disabled")
	}
}

func TestToolDeclaresName(t *testing.T) {
	if Tool().Name != ToolName {
		t.Fatalf("unexpected tool name %q", Tool().Name)
	}
}
