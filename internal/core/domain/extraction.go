package domain

import (
	"slices"
	"strings"
	"unicode/utf8"
)

type EngineKind string

const (
	EngineKindUnified   EngineKind = "unified"
	EngineKindTextLayer EngineKind = "text_layer"
	EngineKindOCR       EngineKind = "ocr"
)

const (
	MethodNative = "native"
	MethodOCR    = "ocr"
	MethodHybrid = "hybrid"
)

// Scope narrows an engine call. MaxPages == 0 means every page.
type Scope struct {
	MaxPages int
}

func (s Scope) Limit(total int) int {
	if s.MaxPages <= 0 || s.MaxPages > total {
		return total
	}
	return s.MaxPages
}

type TableResult struct {
	Page int        `json:"page"`
	Data [][]string `json:"data"`
}

type ImageResult struct {
	Page          int    `json:"page"`
	Type          string `json:"type"`
	ExtractedText string `json:"extracted_text"`
}

type PageResult struct {
	PageNum          int
	Text             string
	Tables           []TableResult
	Images           []ImageResult
	ExtractionMethod string
}

// HasText reports whether the page carries more than minChars non-space characters.
func (p PageResult) HasText(minChars int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(p.Text)) > minChars
}

// EngineMetadata is document metadata an engine happened to read.
type EngineMetadata struct {
	Author       string
	CreationDate string
}

// ExtractionResult is produced by an engine adapter. Ownership moves to the caller on return.
type ExtractionResult struct {
	RawText  string
	Pages    []PageResult
	Tables   []TableResult
	Images   []ImageResult
	EngineID string

	// EngineConfidence is an optional self-reported quality estimate in [0,1].
	EngineConfidence *float64
	Metadata         EngineMetadata
}

func (r *ExtractionResult) Clone() *ExtractionResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Pages = make([]PageResult, len(r.Pages))
	for i, p := range r.Pages {
		p.Tables = cloneTables(p.Tables)
		p.Images = slices.Clone(p.Images)
		out.Pages[i] = p
	}
	out.Tables = cloneTables(r.Tables)
	out.Images = slices.Clone(r.Images)
	if r.EngineConfidence != nil {
		v := *r.EngineConfidence
		out.EngineConfidence = &v
	}
	return &out
}

// PageText returns the text of page pageNum (1-based) and whether such a page exists.
func (r *ExtractionResult) PageText(pageNum int) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, p := range r.Pages {
		if p.PageNum == pageNum {
			return p.Text, true
		}
	}
	return "", false
}

func cloneTables(in []TableResult) []TableResult {
	if in == nil {
		return nil
	}
	out := make([]TableResult, len(in))
	for i, t := range in {
		rows := make([][]string, len(t.Data))
		for j, row := range t.Data {
			rows[j] = slices.Clone(row)
		}
		out[i] = TableResult{Page: t.Page, Data: rows}
	}
	return out
}

// Confidence is a helper for engines and tests that self-report a score.
func Confidence(v float64) *float64 {
	return &v
}
