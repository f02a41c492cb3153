package pdfprofile

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/kirillkom/docextract/internal/core/domain"
)

func TestProfileNonPDFInputs(t *testing.T) {
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}

	cases := []struct {
		name    string
		data    []byte
		hint    domain.StrategyHint
		pages   int
		scanned bool
	}{
		{name: "empty", data: nil, hint: domain.StrategyUnknown},
		{name: "binary", data: []byte{0x00, 0xde, 0xad, 0xbe, 0xef}, hint: domain.StrategyUnknown},
		{name: "malformed pdf", data: []byte("%PDF-1.7 truncated"), hint: domain.StrategyUnknown},
		{name: "text", data: []byte("page one\fpage two"), hint: domain.StrategyTextNative, pages: 2},
		{name: "image", data: img.Bytes(), hint: domain.StrategyScanOnly, pages: 1, scanned: true},
	}

	p := New(DefaultConfig(), nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			profile := p.Profile(context.Background(), domain.Document{Name: tc.name, Data: tc.data})
			if profile.StrategyHint != tc.hint {
				t.Fatalf("hint = %s, want %s", profile.StrategyHint, tc.hint)
			}
			if profile.PageCount != tc.pages {
				t.Fatalf("pages = %d, want %d", profile.PageCount, tc.pages)
			}
			if profile.IsScanned(0) != tc.scanned {
				t.Fatalf("IsScanned(0) = %v, want %v", profile.IsScanned(0), tc.scanned)
			}
			if profile.SizeBytes != int64(len(tc.data)) {
				t.Fatalf("size = %d, want %d", profile.SizeBytes, len(tc.data))
			}
		})
	}
}
