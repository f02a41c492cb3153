package domain

import (
	"slices"
	"time"
)

// Document is the raw input handed to the pipeline. Data is read-only for every stage.
type Document struct {
	Name string
	Data []byte
}

func (d Document) SizeBytes() int64 {
	return int64(len(d.Data))
}

// IsEmpty reports a genuinely empty input (no bytes at all).
func (d Document) IsEmpty() bool {
	return len(d.Data) == 0
}

type StrategyHint string

const (
	StrategyTextNative StrategyHint = "TEXT_NATIVE"
	StrategyHybrid     StrategyHint = "HYBRID"
	StrategyScanOnly   StrategyHint = "SCAN_ONLY"
	StrategyUnknown    StrategyHint = "UNKNOWN"
)

// DocumentProfile is the cheap structural summary computed once per document.
type DocumentProfile struct {
	PageCount       int
	HasEmbeddedText bool
	HasImages       bool
	SizeBytes       int64
	StrategyHint    StrategyHint
	Author          string
	CreationDate    string

	scannedPages []int
	sampled      int
}

// NewDocumentProfile builds an immutable profile. scanned holds 0-based page indices;
// sampled is the number of pages inspected (0 means all PageCount pages).
func NewDocumentProfile(pageCount int, hasText, hasImages bool, scanned []int, sampled int, size int64) DocumentProfile {
	if pageCount < 0 {
		pageCount = 0
	}
	if size < 0 {
		size = 0
	}
	set := slices.Clone(scanned)
	slices.Sort(set)
	set = slices.Compact(set)
	if sampled <= 0 || sampled > pageCount {
		sampled = pageCount
	}

	p := DocumentProfile{
		PageCount:       pageCount,
		HasEmbeddedText: hasText,
		HasImages:       hasImages,
		SizeBytes:       size,
		scannedPages:    set,
		sampled:         sampled,
	}
	p.StrategyHint = p.selectHint()
	return p
}

// UnknownProfile is what the profiler returns for inputs it cannot open.
func UnknownProfile(size int64) DocumentProfile {
	p := NewDocumentProfile(0, false, false, nil, 0, size)
	p.StrategyHint = StrategyUnknown
	return p
}

func (p DocumentProfile) EstimatedScannedPages() []int {
	return slices.Clone(p.scannedPages)
}

func (p DocumentProfile) IsScanned(pageIndex int) bool {
	_, found := slices.BinarySearch(p.scannedPages, pageIndex)
	return found
}

// ScannedRatio is the share of inspected pages estimated to be scanned.
func (p DocumentProfile) ScannedRatio() float64 {
	if p.sampled == 0 {
		return 0
	}
	return float64(len(p.scannedPages)) / float64(p.sampled)
}

// ExpectsStructure reports whether tables/images are likely present.
func (p DocumentProfile) ExpectsStructure() bool {
	return p.HasImages || p.StrategyHint == StrategyHybrid || p.StrategyHint == StrategyScanOnly
}

func (p DocumentProfile) selectHint() StrategyHint {
	if p.PageCount == 0 {
		return StrategyUnknown
	}
	ratio := p.ScannedRatio()
	switch {
	case p.HasEmbeddedText && ratio < 0.1:
		return StrategyTextNative
	case ratio > 0.9:
		return StrategyScanOnly
	default:
		return StrategyHybrid
	}
}

type JobStatus string

const (
	JobStatusUploaded   JobStatus = "uploaded"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// Job tracks an asynchronously processed document. Failed only covers storage or
// persistence failures; extraction itself always produces an outcome.
type Job struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mime_type"`
	StoragePath string    `json:"storage_path"`
	Status      JobStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
	Outcome     *Envelope `json:"outcome,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
