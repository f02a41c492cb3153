// Package mcpadapter exposes the extractor as an MCP tool.
package mcpadapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/core/ports"
)

const ToolName = "extract_document"

type Options struct {
	// Root confines the "path" argument. Empty disables path access entirely.
	Root     string
	MaxBytes int64
	Logger   *slog.Logger
}

type Handler struct {
	extractor ports.DocumentExtractor
	opts      Options
	logger    *slog.Logger
}

func NewHandler(extractor ports.DocumentExtractor, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 64 << 20
	}
	return &Handler{extractor: extractor, opts: opts, logger: logger}
}

func NewServer(h *Handler, version string) *server.MCPServer {
	s := server.NewMCPServer("docextract", version, server.WithToolCapabilities(false))
	s.AddTool(Tool(), h.Extract)
	return s
}

func Tool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription("Extract text, tables and images from a document. Always returns an outcome envelope; "+
			"status is success, partial or fallback."),
		mcp.WithString("path", mcp.Description("Document path relative to the server's document root.")),
		mcp.WithString("content_base64", mcp.Description("Document bytes, base64 encoded. Used when path is empty.")),
		mcp.WithString("file_name", mcp.Description("Name reported in the envelope for inline content.")),
		mcp.WithString("format", mcp.Description("Response format: json (default) or text."), mcp.Enum("json", "text")),
	)
}

// Extract handles a tool call. Bad arguments become tool errors; extraction never does.
func (h *Handler) Extract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := h.document(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcome := h.extractor.Extract(ctx, doc)
	h.logger.Info("mcp_extraction_done",
		"file_name", doc.Name,
		"status", outcome.Status,
		"confidence", outcome.Confidence,
	)

	if strings.EqualFold(req.GetString("format", "json"), "text") {
		return mcp.NewToolResultText(outcome.Content.RawText), nil
	}
	raw, err := json.MarshalIndent(outcome.Envelope(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (h *Handler) document(req mcp.CallToolRequest) (domain.Document, error) {
	path := strings.TrimSpace(req.GetString("path", ""))
	inline := strings.TrimSpace(req.GetString("content_base64", ""))

	switch {
	case path != "":
		resolved, err := h.resolve(path)
		if err != nil {
			return domain.Document{}, err
		}
		info, err := os.Stat(resolved)
		if err != nil {
			return domain.Document{}, fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Size() > h.opts.MaxBytes {
			return domain.Document{}, fmt.Errorf("document %s exceeds %d bytes", path, h.opts.MaxBytes)
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return domain.Document{}, fmt.Errorf("read %s: %w", path, err)
		}
		return domain.Document{Name: filepath.Base(resolved), Data: data}, nil
	case inline != "":
		data, err := base64.StdEncoding.DecodeString(inline)
		if err != nil {
			return domain.Document{}, fmt.Errorf("decode content_base64: %w", err)
		}
		if int64(len(data)) > h.opts.MaxBytes {
			return domain.Document{}, fmt.Errorf("document exceeds %d bytes", h.opts.MaxBytes)
		}
		name := strings.TrimSpace(req.GetString("file_name", ""))
		if name == "" {
			name = "document"
		}
		return domain.Document{Name: name, Data: data}, nil
	default:
		return domain.Document{}, errors.New("either path or content_base64 is required")
	}
}

func (h *Handler) resolve(path string) (string, error) {
	if h.opts.Root == "" {
		return "", errors.New("path access is disabled; send content_base64 instead")
	}
	root, err := filepath.Abs(h.opts.Root)
	if err != nil {
		return "", fmt.Errorf("resolve document root: %w", err)
	}
	full := filepath.Join(root, filepath.Clean("/"+path))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the document root", path)
	}
	return full, nil
}
