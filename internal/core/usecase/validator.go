package usecase

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/docextract/internal/core/domain"
)

// ScoringConfig holds the validator rubric. Weights are additive; the garble weight is
// subtracted. All fields are exposed through the policy file.
type ScoringConfig struct {
	TextVolumeWeight   float64 `yaml:"text_volume_weight"`
	PageCoverageWeight float64 `yaml:"page_coverage_weight"`
	StructureWeight    float64 `yaml:"structure_weight"`
	GarblePenalty      float64 `yaml:"garble_penalty"`

	// GarbleSaturation is the garble ratio at which the full penalty applies.
	GarbleSaturation   float64 `yaml:"garble_saturation"`
	MinPageChars       int     `yaml:"min_page_chars"`
	TargetCharsPerPage int     `yaml:"target_chars_per_page"`
	RepeatRunLength    int     `yaml:"repeat_run_length"`
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		TextVolumeWeight:   0.2,
		PageCoverageWeight: 0.6,
		StructureWeight:    0.2,
		GarblePenalty:      0.3,
		GarbleSaturation:   0.3,
		MinPageChars:       20,
		TargetCharsPerPage: 100,
		RepeatRunLength:    5,
	}
}

func (c ScoringConfig) normalize() ScoringConfig {
	out := c
	def := DefaultScoringConfig()
	if out.TextVolumeWeight < 0 {
		out.TextVolumeWeight = def.TextVolumeWeight
	}
	if out.PageCoverageWeight < 0 {
		out.PageCoverageWeight = def.PageCoverageWeight
	}
	if out.StructureWeight < 0 {
		out.StructureWeight = def.StructureWeight
	}
	if out.GarblePenalty < 0 {
		out.GarblePenalty = def.GarblePenalty
	}
	if out.GarbleSaturation <= 0 {
		out.GarbleSaturation = def.GarbleSaturation
	}
	if out.MinPageChars < 0 {
		out.MinPageChars = def.MinPageChars
	}
	if out.TargetCharsPerPage <= 0 {
		out.TargetCharsPerPage = def.TargetCharsPerPage
	}
	if out.RepeatRunLength < 2 {
		out.RepeatRunLength = def.RepeatRunLength
	}
	return out
}

// Validator is the pure confidence scorer. The zero value is not usable; use NewValidator.
type Validator struct {
	cfg ScoringConfig
}

func NewValidator(cfg ScoringConfig) Validator {
	return Validator{cfg: cfg.normalize()}
}

func (v Validator) Score(result domain.ExtractionResult, profile domain.DocumentProfile) float64 {
	text := strings.TrimSpace(result.RawText)
	if text == "" {
		return 0
	}

	expected := max(profile.PageCount, len(result.Pages), 1)

	volume := float64(utf8.RuneCountInString(text)) / float64(expected*v.cfg.TargetCharsPerPage)
	score := v.cfg.TextVolumeWeight * min(volume, 1)
	score += v.cfg.PageCoverageWeight * v.pageCoverage(result, text, expected)
	score += v.cfg.StructureWeight * structureCredit(result, profile)
	score -= v.cfg.GarblePenalty * min(garbleRatio(text, v.cfg.RepeatRunLength)/v.cfg.GarbleSaturation, 1)

	if result.EngineConfidence != nil {
		score = min(score, *result.EngineConfidence)
	}
	return clamp01(score)
}

func (v Validator) pageCoverage(result domain.ExtractionResult, text string, expected int) float64 {
	if len(result.Pages) > 0 {
		covered := 0
		for _, p := range result.Pages {
			if p.HasText(v.cfg.MinPageChars) {
				covered++
			}
		}
		return min(float64(covered)/float64(expected), 1)
	}

	// No page breakdown: form feeds separate pages (pdftotext convention).
	segments := strings.Split(text, "\f")
	if len(segments) > 1 {
		covered := 0
		for _, s := range segments {
			if utf8.RuneCountInString(strings.TrimSpace(s)) > v.cfg.MinPageChars {
				covered++
			}
		}
		return min(float64(covered)/float64(expected), 1)
	}
	perPage := float64(utf8.RuneCountInString(text)) / float64(expected)
	if perPage > float64(v.cfg.MinPageChars) {
		return 1
	}
	return perPage / float64(max(v.cfg.MinPageChars, 1))
}

func structureCredit(result domain.ExtractionResult, profile domain.DocumentProfile) float64 {
	if !profile.ExpectsStructure() {
		return 1
	}
	if len(result.Tables) > 0 || len(result.Images) > 0 {
		return 1
	}
	for _, p := range result.Pages {
		if len(p.Tables) > 0 || len(p.Images) > 0 {
			return 1
		}
	}
	return 0
}

// garbleRatio is the share of non-printable runes plus the share of runes sitting in
// runs of at least runLen identical non-space runes. Rule characters never form runs.
func garbleRatio(text string, runLen int) float64 {
	total := 0
	bad := 0
	repeated := 0

	var prev rune
	run := 0
	flush := func() {
		if run >= runLen {
			repeated += run
		}
	}

	for _, r := range text {
		total++
		if r == utf8.RuneError || (!unicode.IsPrint(r) && !unicode.IsSpace(r)) {
			bad++
		}
		if unicode.IsSpace(r) || isRuleRune(r) {
			flush()
			run = 0
			prev = r
			continue
		}
		if r == prev {
			run++
		} else {
			flush()
			run = 1
		}
		prev = r
	}
	flush()

	if total == 0 {
		return 0
	}
	return float64(bad+repeated) / float64(total)
}

// isRuleRune covers characters used for visual rules ("-----", "=====") in real text.
func isRuleRune(r rune) bool {
	switch r {
	case '-', '=', '_', '.', '*', '~':
		return true
	}
	return false
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
