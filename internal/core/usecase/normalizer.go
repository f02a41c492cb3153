package usecase

import (
	"slices"
	"strings"
	"time"

	"github.com/kirillkom/docextract/internal/core/domain"
)

// OutcomeDraft is the loosely filled result of a run before normalization.
type OutcomeDraft struct {
	FileName       string
	ProcessingTime time.Duration
	Status         domain.Status
	Confidence     float64
	EnginesUsed    []string
	Content        *domain.ExtractionResult
	Method         string
	Profile        domain.DocumentProfile
	Attempts       []domain.EngineAttempt
	EmptyInput     bool
}

// FallbackText is the placeholder raw text of a fallback outcome.
func FallbackText(fileName string) string {
	return "Failed to extract content from " + fileName
}

// Normalize turns a draft into a schema-conformant FinalOutcome. It never fails: any
// draft that cannot stand as success or partial is demoted to fallback.
func Normalize(d OutcomeDraft) domain.FinalOutcome {
	status := d.Status
	if !status.Valid() {
		status = domain.StatusFallback
	}
	confidence := clamp01(d.Confidence)

	var content domain.ExtractionResult
	if status != domain.StatusFallback {
		if d.Content == nil || confidence <= 0 {
			status = domain.StatusFallback
		} else {
			content = *d.Content.Clone()
			if strings.TrimSpace(content.RawText) == "" {
				content.RawText = joinPages(content.Pages)
			}
			if strings.TrimSpace(content.RawText) == "" {
				status = domain.StatusFallback
			}
		}
	}

	attempts := slices.Clone(d.Attempts)
	if attempts == nil {
		attempts = []domain.EngineAttempt{}
	}

	if status == domain.StatusFallback {
		raw := FallbackText(d.FileName)
		if d.EmptyInput {
			raw = ""
		}
		return domain.FinalOutcome{
			FileName:       d.FileName,
			ProcessingTime: max(d.ProcessingTime, 0),
			Status:         domain.StatusFallback,
			Confidence:     0,
			EnginesUsed:    []string{},
			Content: domain.ExtractionResult{
				RawText: raw,
				Pages:   []domain.PageResult{},
				Tables:  []domain.TableResult{},
				Images:  []domain.ImageResult{},
			},
			Metadata: domain.OutcomeMetadata{
				TotalPages:           d.Profile.PageCount,
				TextExtractionMethod: fallbackMethod(d.Profile),
				Author:               optional(d.Profile.Author),
				CreationDate:         optional(d.Profile.CreationDate),
			},
			AttemptLog: attempts,
		}
	}

	for i := range content.Pages {
		if content.Pages[i].PageNum < 1 {
			content.Pages[i].PageNum = i + 1
		}
		if content.Pages[i].Tables == nil {
			content.Pages[i].Tables = []domain.TableResult{}
		}
		if content.Pages[i].Images == nil {
			content.Pages[i].Images = []domain.ImageResult{}
		}
	}
	if content.Pages == nil {
		content.Pages = []domain.PageResult{}
	}
	if len(content.Tables) == 0 {
		content.Tables = []domain.TableResult{}
		for _, p := range content.Pages {
			for _, t := range p.Tables {
				if t.Page == 0 {
					t.Page = p.PageNum
				}
				content.Tables = append(content.Tables, t)
			}
		}
	}
	if len(content.Images) == 0 {
		content.Images = []domain.ImageResult{}
		for _, p := range content.Pages {
			for _, img := range p.Images {
				if img.Page == 0 {
					img.Page = p.PageNum
				}
				content.Images = append(content.Images, img)
			}
		}
	}

	method := d.Method
	if method == "" {
		method = pageMethod(content.Pages, domain.MethodNative)
	}

	author := firstNonEmpty(d.Profile.Author, content.Metadata.Author)
	created := firstNonEmpty(d.Profile.CreationDate, content.Metadata.CreationDate)

	return domain.FinalOutcome{
		FileName:       d.FileName,
		ProcessingTime: max(d.ProcessingTime, 0),
		Status:         status,
		Confidence:     confidence,
		EnginesUsed:    attemptedEngines(d.EnginesUsed, attempts),
		Content:        content,
		Metadata: domain.OutcomeMetadata{
			TotalPages:           max(d.Profile.PageCount, len(content.Pages)),
			TextExtractionMethod: method,
			Author:               optional(author),
			CreationDate:         optional(created),
		},
		AttemptLog: attempts,
	}
}

// attemptedEngines drops duplicates and any engine that never appears in the log.
func attemptedEngines(engines []string, attempts []domain.EngineAttempt) []string {
	logged := make(map[string]bool, len(attempts))
	for _, a := range attempts {
		logged[a.EngineID] = true
	}
	out := make([]string, 0, len(engines))
	for _, e := range engines {
		if logged[e] && !slices.Contains(out, e) {
			out = append(out, e)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func optional(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}
