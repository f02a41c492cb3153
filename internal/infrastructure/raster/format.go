package raster

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"unicode/utf8"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kirillkom/docextract/internal/infrastructure/pdfdoc"
)

type Format string

const (
	FormatPDF     Format = "pdf"
	FormatImage   Format = "image"
	FormatText    Format = "text"
	FormatUnknown Format = "unknown"
)

// Detect sniffs the input bytes. Names and MIME types are never trusted.
func Detect(data []byte) Format {
	switch {
	case len(data) == 0:
		return FormatUnknown
	case pdfdoc.LooksLikePDF(data):
		return FormatPDF
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return FormatImage
	}
	if IsText(data) {
		return FormatText
	}
	return FormatUnknown
}

// IsText reports valid UTF-8 without NUL bytes.
func IsText(data []byte) bool {
	return utf8.Valid(data) && !bytes.ContainsRune(data, 0)
}
