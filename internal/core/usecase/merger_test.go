package usecase

import (
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/docextract/internal/core/domain"
)

func TestMergeFillsImagePagesFromOCR(t *testing.T) {
	profile := domain.NewDocumentProfile(3, true, true, []int{2}, 0, 100)
	base := domain.EngineAttempt{
		EngineID:   "pdftext",
		EngineKind: domain.EngineKindTextLayer,
		ChainIndex: 1,
		Confidence: 0.6,
		Result: &domain.ExtractionResult{
			RawText: "page one text that is long enough\n\npage two text that is long enough",
			Pages: []domain.PageResult{
				{PageNum: 1, Text: "page one text that is long enough"},
				{PageNum: 2, Text: "page two text that is long enough"},
			},
		},
	}
	ocr := domain.EngineAttempt{
		EngineID:   "tesseract",
		EngineKind: domain.EngineKindOCR,
		ChainIndex: 2,
		Confidence: 0.3,
		Result: &domain.ExtractionResult{Pages: []domain.PageResult{
			{PageNum: 1, Text: "garbled ocr of page one"},
			{PageNum: 3, Text: "scanned appendix recognized by ocr"},
		}},
	}

	out := MergeResults(MergeInput{Base: base, Attempts: []domain.EngineAttempt{base, ocr}, Profile: profile, MinPageChars: 20})

	if out.FilledPages != 1 {
		t.Fatalf("expected 1 filled page, got %d", out.FilledPages)
	}
	if out.Content.Pages[0].Text != "page one text that is long enough" {
		t.Fatalf("native page text must be kept, got %q", out.Content.Pages[0].Text)
	}
	if out.Content.Pages[2].Text != "scanned appendix recognized by ocr" || out.Content.Pages[2].ExtractionMethod != domain.MethodOCR {
		t.Fatalf("unexpected page 3: %+v", out.Content.Pages[2])
	}
	if !strings.Contains(out.Content.RawText, "scanned appendix") {
		t.Fatalf("raw text must include filled page: %q", out.Content.RawText)
	}
	if out.Method != domain.MethodHybrid {
		t.Fatalf("expected hybrid, got %s", out.Method)
	}
	if !reflect.DeepEqual(out.EnginesUsed, []string{"pdftext", "tesseract"}) {
		t.Fatalf("unexpected engines: %v", out.EnginesUsed)
	}
	if len(base.Result.Pages) != 2 {
		t.Fatalf("merge must not mutate the base result")
	}
}

func TestMergeWithoutDonorsKeepsBase(t *testing.T) {
	result := textPages(2, 100)
	base := domain.EngineAttempt{EngineID: "docling", EngineKind: domain.EngineKindUnified, Confidence: 0.95, Result: &result}

	out := MergeResults(MergeInput{Base: base, Attempts: []domain.EngineAttempt{base}, Profile: textNativeProfile(2), MinPageChars: 20})

	if out.FilledPages != 0 || out.Content.RawText != result.RawText {
		t.Fatalf("base content must pass through unchanged")
	}
	if out.Method != domain.MethodNative {
		t.Fatalf("expected native, got %s", out.Method)
	}
	if !reflect.DeepEqual(out.EnginesUsed, []string{"docling"}) {
		t.Fatalf("unexpected engines: %v", out.EnginesUsed)
	}
}

func TestMergeOCRBaseReportsOCR(t *testing.T) {
	result := textPages(1, 100)
	base := domain.EngineAttempt{EngineID: "tesseract", EngineKind: domain.EngineKindOCR, Confidence: 0.8, Result: &result}

	out := MergeResults(MergeInput{Base: base, Attempts: []domain.EngineAttempt{base}, MinPageChars: 20})

	if out.Method != domain.MethodOCR {
		t.Fatalf("expected ocr, got %s", out.Method)
	}
}

func TestMergeKeepsRawTextNotCarriedByPages(t *testing.T) {
	profile := domain.NewDocumentProfile(2, true, true, []int{1}, 0, 100)
	base := domain.EngineAttempt{
		EngineID:   "docling",
		EngineKind: domain.EngineKindUnified,
		Confidence: 0.55,
		Result: &domain.ExtractionResult{
			RawText: "Annual report\n\nintroduction paragraph long enough to count\n\nfootnote placed outside any page",
			Pages: []domain.PageResult{
				{PageNum: 1, Text: "introduction paragraph long enough to count"},
				{PageNum: 2, Images: []domain.ImageResult{{Page: 2, Type: "scan"}}},
			},
		},
	}
	ocr := domain.EngineAttempt{
		EngineID:   "tesseract",
		EngineKind: domain.EngineKindOCR,
		ChainIndex: 1,
		Confidence: 0.4,
		Result: &domain.ExtractionResult{Pages: []domain.PageResult{
			{PageNum: 2, Text: "scanned balance sheet recognized by ocr"},
		}},
	}

	out := MergeResults(MergeInput{Base: base, Attempts: []domain.EngineAttempt{base, ocr}, Profile: profile, MinPageChars: 20})

	if out.FilledPages != 1 {
		t.Fatalf("expected 1 filled page, got %d", out.FilledPages)
	}
	want := "Annual report\n\nintroduction paragraph long enough to count\n\nfootnote placed outside any page\n\nscanned balance sheet recognized by ocr"
	if out.Content.RawText != want {
		t.Fatalf("raw text = %q, want %q", out.Content.RawText, want)
	}
}

func TestMergeRebuildsRawTextWhenPagesCoverIt(t *testing.T) {
	profile := domain.NewDocumentProfile(2, true, true, []int{1}, 0, 100)
	base := domain.EngineAttempt{
		EngineID:   "pdftext",
		EngineKind: domain.EngineKindTextLayer,
		Confidence: 0.5,
		Result: &domain.ExtractionResult{
			RawText: "first page text long enough to count",
			Pages: []domain.PageResult{
				{PageNum: 1, Text: "first page text long enough to count"},
				{PageNum: 2},
			},
		},
	}
	ocr := domain.EngineAttempt{
		EngineID:   "tesseract",
		EngineKind: domain.EngineKindOCR,
		ChainIndex: 1,
		Confidence: 0.4,
		Result:     &domain.ExtractionResult{Pages: []domain.PageResult{{PageNum: 2, Text: "second page from ocr"}}},
	}

	out := MergeResults(MergeInput{Base: base, Attempts: []domain.EngineAttempt{base, ocr}, Profile: profile, MinPageChars: 20})

	if want := "first page text long enough to count\n\nsecond page from ocr"; out.Content.RawText != want {
		t.Fatalf("raw text = %q, want %q", out.Content.RawText, want)
	}
}
