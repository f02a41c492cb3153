package usecase

import (
	"cmp"
	"slices"
	"strings"

	"github.com/kirillkom/docextract/internal/core/domain"
)

type MergeInput struct {
	Base         domain.EngineAttempt
	Attempts     []domain.EngineAttempt
	Profile      domain.DocumentProfile
	MinPageChars int
}

type MergeOutput struct {
	Content     domain.ExtractionResult
	EnginesUsed []string
	Method      string
	FilledPages int
	Confidence  float64
}

// MergeResults starts from the base result and fills pages that lack text but carry an
// image region with OCR text from other attempts. Existing page text is never replaced
// by shorter text, and structures always come from the base.
func MergeResults(in MergeInput) MergeOutput {
	out := MergeOutput{Confidence: in.Base.Confidence}
	if in.Base.Result == nil {
		out.Method = fallbackMethod(in.Profile)
		return out
	}

	content := in.Base.Result.Clone()
	baseMethod := domain.MethodNative
	if in.Base.EngineKind == domain.EngineKindOCR {
		baseMethod = domain.MethodOCR
	}
	for i := range content.Pages {
		if content.Pages[i].ExtractionMethod == "" {
			content.Pages[i].ExtractionMethod = baseMethod
		}
	}
	if len(content.Pages) > 0 {
		content.Pages = extendSkeleton(content.Pages, in.Profile.PageCount, baseMethod)
	}

	pagesCoverRaw := sameWords(content.RawText, joinPages(content.Pages))
	var filled []string

	donors := ocrDonors(in)
	used := map[string]bool{in.Base.EngineID: true}
	for i := range content.Pages {
		page := &content.Pages[i]
		if page.HasText(in.MinPageChars) {
			continue
		}
		if len(page.Images) == 0 && !in.Profile.IsScanned(page.PageNum-1) {
			continue
		}
		current := len([]rune(strings.TrimSpace(page.Text)))
		for _, d := range donors {
			text, ok := d.Result.PageText(page.PageNum)
			text = strings.TrimSpace(text)
			if !ok || len([]rune(text)) <= current {
				continue
			}
			page.Text = text
			page.ExtractionMethod = domain.MethodOCR
			filled = append(filled, text)
			used[d.EngineID] = true
			out.FilledPages++
			break
		}
	}

	// Raw text the base pages do not account for (e.g. a document-level text dump) is kept
	// and the filled pages are appended to it.
	switch {
	case out.FilledPages == 0:
	case pagesCoverRaw || strings.TrimSpace(content.RawText) == "":
		content.RawText = joinPages(content.Pages)
	default:
		content.RawText = strings.Join(append([]string{strings.TrimSpace(content.RawText)}, filled...), "\n\n")
	}

	out.Content = *content
	out.EnginesUsed = enginesInLogOrder(in.Attempts, used, in.Base.EngineID)
	out.Method = pageMethod(content.Pages, baseMethod)
	return out
}

// extendSkeleton adds empty pages so every page of the document has a slot.
func extendSkeleton(pages []domain.PageResult, pageCount int, method string) []domain.PageResult {
	present := make(map[int]bool, len(pages))
	for _, p := range pages {
		present[p.PageNum] = true
	}
	for n := 1; n <= pageCount; n++ {
		if !present[n] {
			pages = append(pages, domain.PageResult{PageNum: n, ExtractionMethod: method})
		}
	}
	slices.SortStableFunc(pages, func(a, b domain.PageResult) int {
		return cmp.Compare(a.PageNum, b.PageNum)
	})
	return pages
}

// ocrDonors returns OCR attempts with usable results, best confidence first.
func ocrDonors(in MergeInput) []domain.EngineAttempt {
	var donors []domain.EngineAttempt
	for _, a := range in.Attempts {
		if a.Result == nil || a.EngineKind != domain.EngineKindOCR || a.Confidence <= 0 {
			continue
		}
		if a.EngineID == in.Base.EngineID && a.ChainIndex == in.Base.ChainIndex && a.StartedAt.Equal(in.Base.StartedAt) {
			continue
		}
		donors = append(donors, a)
	}
	slices.SortStableFunc(donors, func(a, b domain.EngineAttempt) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return donors
}

func enginesInLogOrder(attempts []domain.EngineAttempt, used map[string]bool, base string) []string {
	engines := make([]string, 0, len(used))
	seen := make(map[string]bool, len(used))
	for _, a := range attempts {
		if used[a.EngineID] && !seen[a.EngineID] {
			seen[a.EngineID] = true
			engines = append(engines, a.EngineID)
		}
	}
	if !seen[base] && base != "" {
		engines = append(engines, base)
	}
	return engines
}

func pageMethod(pages []domain.PageResult, baseMethod string) string {
	textPages, ocrPages := 0, 0
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		textPages++
		if p.ExtractionMethod == domain.MethodOCR {
			ocrPages++
		}
	}
	switch {
	case textPages == 0:
		return baseMethod
	case ocrPages == textPages:
		return domain.MethodOCR
	case ocrPages > 0:
		return domain.MethodHybrid
	default:
		return domain.MethodNative
	}
}

// sameWords compares texts ignoring how whitespace separates the words.
func sameWords(a, b string) bool {
	return slices.Equal(strings.Fields(a), strings.Fields(b))
}

func joinPages(pages []domain.PageResult) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if text := strings.TrimSpace(p.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func fallbackMethod(profile domain.DocumentProfile) string {
	if profile.StrategyHint == domain.StrategyScanOnly {
		return domain.MethodOCR
	}
	return domain.MethodNative
}
