// Package docling adapts a docling-serve instance (layout-aware conversion with tables and
// pictures) as the unified engine.
package docling

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/infrastructure/engine"
	"github.com/kirillkom/docextract/internal/infrastructure/resilience"
)

const ID = "docling"

type Engine struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	gate       *engine.Gate
	logger     *slog.Logger
}

func New(baseURL string, timeout time.Duration, executor *resilience.Executor, gate *engine.Gate, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig(), logger)
	}
	if gate == nil {
		gate = engine.NewGate(1)
	}
	return &Engine{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
		gate:       gate,
		logger:     logger,
	}
}

func (e *Engine) ID() string              { return ID }
func (e *Engine) Kind() domain.EngineKind { return domain.EngineKindUnified }

func (e *Engine) Extract(ctx context.Context, doc domain.Document, scope domain.Scope) (*domain.ExtractionResult, error) {
	if doc.IsEmpty() {
		return nil, engine.Unsupported(ID, domain.ErrInvalidInput)
	}
	if err := e.gate.Acquire(ctx); err != nil {
		return nil, engine.Fail(ctx, ID, err)
	}
	defer e.gate.Release()

	resp, err := resilience.Do(ctx, e.executor, "docling.convert", func(ctx context.Context) (*convertResponse, error) {
		return e.convert(ctx, doc, scope)
	}, classifyDoclingError)
	if err != nil {
		return nil, engine.Fail(ctx, ID, mapDoclingError(err))
	}
	return toResult(resp, scope)
}

type convertResponse struct {
	Document struct {
		Filename    string           `json:"filename"`
		TextContent string           `json:"text_content"`
		MDContent   string           `json:"md_content"`
		JSONContent *doclingDocument `json:"json_content"`
	} `json:"document"`
	Status         string  `json:"status"`
	Errors         []any   `json:"errors"`
	ProcessingTime float64 `json:"processing_time"`
}

type provenance struct {
	PageNo int `json:"page_no"`
}

type doclingDocument struct {
	Texts []struct {
		Text  string       `json:"text"`
		Label string       `json:"label"`
		Prov  []provenance `json:"prov"`
	} `json:"texts"`
	Tables []struct {
		Prov []provenance `json:"prov"`
		Data struct {
			Grid [][]struct {
				Text string `json:"text"`
			} `json:"grid"`
		} `json:"data"`
	} `json:"tables"`
	Pictures []struct {
		Prov     []provenance `json:"prov"`
		Captions []struct {
			Ref string `json:"$ref"`
		} `json:"captions"`
	} `json:"pictures"`
	Pages map[string]struct {
		PageNo int `json:"page_no"`
	} `json:"pages"`
}

func pageOf(prov []provenance) int {
	if len(prov) == 0 || prov[0].PageNo < 1 {
		return 1
	}
	return prov[0].PageNo
}

func toResult(resp *convertResponse, scope domain.Scope) (*domain.ExtractionResult, error) {
	if resp.Status == "failure" {
		return nil, domain.NewEngineError(ID, domain.EngineErrorInternal, errConversionFailed)
	}

	result := &domain.ExtractionResult{EngineID: ID}
	doc := resp.Document.JSONContent
	if doc == nil {
		result.RawText = strings.TrimSpace(firstNonEmpty(resp.Document.TextContent, resp.Document.MDContent))
		return result, nil
	}

	pageCount := 0
	for _, p := range doc.Pages {
		pageCount = max(pageCount, p.PageNo)
	}
	limit := scope.Limit(pageCount)
	inScope := func(page int) bool { return scope.MaxPages <= 0 || page <= limit }

	texts := make(map[int][]string)
	for _, t := range doc.Texts {
		page := pageOf(t.Prov)
		if text := strings.TrimSpace(t.Text); text != "" && inScope(page) {
			texts[page] = append(texts[page], text)
			pageCount = max(pageCount, page)
		}
	}

	pages := make(map[int]*domain.PageResult)
	ensure := func(n int) *domain.PageResult {
		if p, ok := pages[n]; ok {
			return p
		}
		p := &domain.PageResult{PageNum: n, ExtractionMethod: domain.MethodNative}
		pages[n] = p
		return p
	}
	for n := 1; n <= scope.Limit(pageCount); n++ {
		ensure(n).Text = strings.Join(texts[n], "\n")
	}

	for _, table := range doc.Tables {
		page := pageOf(table.Prov)
		if !inScope(page) {
			continue
		}
		rows := make([][]string, 0, len(table.Data.Grid))
		for _, row := range table.Data.Grid {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				cells = append(cells, cell.Text)
			}
			rows = append(rows, cells)
		}
		t := domain.TableResult{Page: page, Data: rows}
		ensure(page).Tables = append(ensure(page).Tables, t)
		result.Tables = append(result.Tables, t)
	}

	for _, pic := range doc.Pictures {
		page := pageOf(pic.Prov)
		if !inScope(page) {
			continue
		}
		img := domain.ImageResult{Page: page, Type: "picture"}
		ensure(page).Images = append(ensure(page).Images, img)
		result.Images = append(result.Images, img)
	}

	nums := make([]int, 0, len(pages))
	for n := range pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		result.Pages = append(result.Pages, *pages[n])
	}

	result.RawText = engine.JoinPages(result.Pages)
	if scope.MaxPages <= 0 && strings.TrimSpace(resp.Document.TextContent) != "" {
		result.RawText = strings.TrimSpace(resp.Document.TextContent)
	}
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
