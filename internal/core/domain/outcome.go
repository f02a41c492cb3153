package domain

import (
	"slices"
	"time"
)

type Status string

const (
	StatusSuccess  Status = "success"
	StatusPartial  Status = "partial"
	StatusFallback Status = "fallback"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusPartial, StatusFallback:
		return true
	default:
		return false
	}
}

type OutcomeMetadata struct {
	TotalPages           int
	TextExtractionMethod string
	CreationDate         *string
	Author               *string
}

// FinalOutcome is the terminal artifact for one document.
type FinalOutcome struct {
	FileName       string
	ProcessingTime time.Duration
	Status         Status
	Confidence     float64
	EnginesUsed    []string
	Content        ExtractionResult
	Metadata       OutcomeMetadata
	AttemptLog     []EngineAttempt
}

// Envelope is the wire shape of a FinalOutcome.
type Envelope struct {
	ExtractionInfo EnvelopeInfo      `json:"extraction_info"`
	Content        EnvelopeContent   `json:"content"`
	Metadata       EnvelopeMetadata  `json:"metadata"`
	AttemptLog     []EnvelopeAttempt `json:"attempt_log"`
}

type EnvelopeInfo struct {
	FileName         string   `json:"file_name"`
	ProcessingTimeMS float64  `json:"processing_time_ms"`
	EngineUsed       []string `json:"engine_used"`
	Status           Status   `json:"status"`
	Confidence       float64  `json:"confidence"`
}

type EnvelopeContent struct {
	RawText string         `json:"raw_text"`
	Pages   []EnvelopePage `json:"pages"`
	Tables  []TableResult  `json:"tables"`
	Images  []ImageResult  `json:"images"`
}

type EnvelopePage struct {
	PageNum int           `json:"page_num"`
	Text    string        `json:"text"`
	Tables  []TableResult `json:"tables"`
	Images  []ImageResult `json:"images"`
}

type EnvelopeMetadata struct {
	TotalPages           int     `json:"total_pages"`
	TextExtractionMethod string  `json:"text_extraction_method"`
	CreationDate         *string `json:"creation_date"`
	Author               *string `json:"author"`
}

type EnvelopeAttempt struct {
	Engine     string         `json:"engine"`
	Outcome    AttemptOutcome `json:"outcome"`
	DurationMS float64        `json:"duration_ms"`
}

// Envelope converts the outcome to its wire shape. Every collection is non-nil.
func (o FinalOutcome) Envelope() Envelope {
	pages := make([]EnvelopePage, 0, len(o.Content.Pages))
	for _, p := range o.Content.Pages {
		pages = append(pages, EnvelopePage{
			PageNum: p.PageNum,
			Text:    p.Text,
			Tables:  nonNilTables(p.Tables),
			Images:  nonNilImages(p.Images),
		})
	}

	attempts := make([]EnvelopeAttempt, 0, len(o.AttemptLog))
	for _, a := range o.AttemptLog {
		attempts = append(attempts, EnvelopeAttempt{
			Engine:     a.EngineID,
			Outcome:    a.Outcome,
			DurationMS: millis(a.Duration),
		})
	}

	engines := slices.Clone(o.EnginesUsed)
	if engines == nil {
		engines = []string{}
	}

	return Envelope{
		ExtractionInfo: EnvelopeInfo{
			FileName:         o.FileName,
			ProcessingTimeMS: millis(o.ProcessingTime),
			EngineUsed:       engines,
			Status:           o.Status,
			Confidence:       o.Confidence,
		},
		Content: EnvelopeContent{
			RawText: o.Content.RawText,
			Pages:   pages,
			Tables:  nonNilTables(o.Content.Tables),
			Images:  nonNilImages(o.Content.Images),
		},
		Metadata: EnvelopeMetadata{
			TotalPages:           o.Metadata.TotalPages,
			TextExtractionMethod: o.Metadata.TextExtractionMethod,
			CreationDate:         o.Metadata.CreationDate,
			Author:               o.Metadata.Author,
		},
		AttemptLog: attempts,
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func nonNilTables(in []TableResult) []TableResult {
	if in == nil {
		return []TableResult{}
	}
	out := make([]TableResult, len(in))
	for i, t := range in {
		if t.Data == nil {
			t.Data = [][]string{}
		}
		out[i] = t
	}
	return out
}

func nonNilImages(in []ImageResult) []ImageResult {
	if in == nil {
		return []ImageResult{}
	}
	return slices.Clone(in)
}
