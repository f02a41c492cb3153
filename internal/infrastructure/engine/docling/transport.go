package docling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/kirillkom/docextract/internal/core/domain"
)

func (e *Engine) convert(ctx context.Context, doc domain.Document, scope domain.Scope) (*convertResponse, error) {
	body, contentType, err := buildMultipart(doc, scope)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/convert/file", body)
	if err != nil {
		return nil, fmt.Errorf("create convert request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docling convert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &HTTPStatusError{
			Operation:  "convert",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}

	var out convertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode convert response: %w", err)
	}
	return &out, nil
}

func buildMultipart(doc domain.Document, scope domain.Scope) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := filepath.Base(doc.Name)
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	part, err := w.CreateFormFile("files", name)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}

	fields := [][2]string{
		{"to_formats", "json"},
		{"to_formats", "text"},
		{"do_ocr", "false"},
		{"do_table_structure", "true"},
	}
	if scope.MaxPages > 0 {
		fields = append(fields, [2]string{"page_range", "1"}, [2]string{"page_range", strconv.Itoa(scope.MaxPages)})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
