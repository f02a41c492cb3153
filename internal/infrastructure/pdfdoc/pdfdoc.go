// Package pdfdoc wraps github.com/ledongthuc/pdf with panic-safe page accessors shared by
// the profiler and the text-layer engine. The parser panics on some malformed streams.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrNotPDF = errors.New("not a pdf document")

// Doc is an opened PDF. It is read-only and safe for sequential use only.
type Doc struct {
	reader *pdf.Reader
}

// LooksLikePDF checks the magic header within the first KiB, as readers tolerate leading junk.
func LooksLikePDF(data []byte) bool {
	head := data[:min(len(data), 1024)]
	return bytes.Contains(head, []byte("%PDF-"))
}

func Open(data []byte) (doc *Doc, err error) {
	if !LooksLikePDF(data) {
		return nil, ErrNotPDF
	}
	defer func() {
		if p := recover(); p != nil {
			doc, err = nil, fmt.Errorf("open pdf: panic: %v", p)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &Doc{reader: r}, nil
}

func (d *Doc) NumPages() (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	return d.reader.NumPage()
}

// PageText returns the trimmed plain text of page num (1-based).
func (d *Doc) PageText(num int) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("read page %d: panic: %v", num, p)
		}
	}()
	page := d.reader.Page(num)
	if page.V.IsNull() {
		return "", fmt.Errorf("read page %d: missing page object", num)
	}
	raw, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("read page %d: %w", num, err)
	}
	return strings.TrimSpace(raw), nil
}

// Glyph is one positioned character of a page's text layer.
type Glyph struct {
	X, Y     float64
	Width    float64
	FontSize float64
	Text     string
}

// PageGlyphs returns the positioned characters of page num (1-based).
func (d *Doc) PageGlyphs(num int) (glyphs []Glyph, err error) {
	defer func() {
		if p := recover(); p != nil {
			glyphs, err = nil, fmt.Errorf("read page %d layout: panic: %v", num, p)
		}
	}()
	page := d.reader.Page(num)
	if page.V.IsNull() {
		return nil, fmt.Errorf("read page %d layout: missing page object", num)
	}
	content := page.Content()
	glyphs = make([]Glyph, 0, len(content.Text))
	for _, t := range content.Text {
		glyphs = append(glyphs, Glyph{X: t.X, Y: t.Y, Width: t.W, FontSize: t.FontSize, Text: t.S})
	}
	return glyphs, nil
}

// PageImages counts image XObjects referenced from the page resources.
func (d *Doc) PageImages(num int) (count int) {
	defer func() {
		if recover() != nil {
			count = 0
		}
	}()
	page := d.reader.Page(num)
	if page.V.IsNull() {
		return 0
	}
	xObjects := page.V.Key("Resources").Key("XObject")
	if xObjects.IsNull() || xObjects.Kind() != pdf.Dict {
		return 0
	}
	for _, key := range xObjects.Keys() {
		obj := xObjects.Key(key)
		if obj.IsNull() {
			continue
		}
		if sub := obj.Key("Subtype"); !sub.IsNull() && sub.Name() == "Image" {
			count++
		}
	}
	return count
}

// HasContentStream reports whether the page draws anything at all.
func (d *Doc) HasContentStream(num int) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	page := d.reader.Page(num)
	return !page.V.IsNull() && !page.V.Key("Contents").IsNull()
}

type Info struct {
	Author       string
	CreationDate string
}

// Info reads the trailer /Info dictionary. Missing keys yield empty strings.
func (d *Doc) Info() (info Info) {
	defer func() {
		if recover() != nil {
			info = Info{}
		}
	}()
	dict := d.reader.Trailer().Key("Info")
	if dict.IsNull() {
		return Info{}
	}
	return Info{
		Author:       strings.TrimSpace(dict.Key("Author").Text()),
		CreationDate: FormatDate(dict.Key("CreationDate").Text()),
	}
}

// FormatDate converts a PDF date ("D:20240131120000+01'00'") to RFC 3339 when possible and
// returns the input unchanged otherwise.
func FormatDate(raw string) string {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "D:")
	if len(s) < 8 {
		return strings.TrimSpace(raw)
	}
	year, month, day := s[0:4], s[4:6], s[6:8]
	hh, mm, ss := "00", "00", "00"
	if len(s) >= 10 {
		hh = s[8:10]
	}
	if len(s) >= 12 {
		mm = s[10:12]
	}
	if len(s) >= 14 {
		ss = s[12:14]
	}
	for _, part := range []string{year, month, day, hh, mm, ss} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return strings.TrimSpace(raw)
			}
		}
	}
	zone := "Z"
	if len(s) > 14 {
		rest := strings.ReplaceAll(s[14:], "'", "")
		if len(rest) >= 5 && (rest[0] == '+' || rest[0] == '-') {
			zone = rest[0:3] + ":" + rest[3:5]
		}
	}
	return fmt.Sprintf("%s-%s-%sT%s:%s:%s%s", year, month, day, hh, mm, ss, zone)
}
