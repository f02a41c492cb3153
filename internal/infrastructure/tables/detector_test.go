package tables

import (
	"reflect"
	"testing"
)

// glyphs lays text out one fragment per rune with a fixed advance, as PDF readers report it.
func glyphs(text string, x, y float64) []Fragment {
	const size, advance = 10.0, 6.0
	out := make([]Fragment, 0, len(text))
	for i, r := range []rune(text) {
		out = append(out, Fragment{X: x + float64(i)*advance, Y: y, Width: advance, FontSize: size, Text: string(r)})
	}
	return out
}

func page(lines ...[]Fragment) []Fragment {
	var out []Fragment
	for _, l := range lines {
		out = append(out, l...)
	}
	return out
}

func rowAt(y float64, cells map[float64]string) []Fragment {
	var out []Fragment
	for x, text := range cells {
		out = append(out, glyphs(text, x, y)...)
	}
	return out
}

func TestDetectFindsAlignedTable(t *testing.T) {
	frags := page(
		glyphs("Quarterly summary for the northern region", 72, 750),
		rowAt(700, map[float64]string{72: "Item", 200: "Qty", 300: "Price"}),
		rowAt(686, map[float64]string{72: "Apples", 212: "3", 300: "1.20"}),
		rowAt(672, map[float64]string{72: "Pears", 206: "12", 300: "0.80"}),
		glyphs("Totals are preliminary.", 72, 600),
	)

	got := NewDetector(DefaultConfig()).Detect(frags)

	want := [][][]string{{
		{"Item", "Qty", "Price"},
		{"Apples", "3", "1.20"},
		{"Pears", "12", "0.80"},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Detect() = %v, want %v", got, want)
	}
}

func TestDetectIgnoresProse(t *testing.T) {
	frags := page(
		glyphs("The committee met on Tuesday to review results.", 72, 700),
		glyphs("Minutes were circulated to all members afterwards.", 72, 686),
	)
	if got := NewDetector(DefaultConfig()).Detect(frags); len(got) != 0 {
		t.Fatalf("expected no tables, got %v", got)
	}
}

func TestDetectSplitsTablesAtLargeGap(t *testing.T) {
	frags := page(
		rowAt(700, map[float64]string{72: "a", 200: "b"}),
		rowAt(686, map[float64]string{72: "c", 200: "d"}),
		rowAt(500, map[float64]string{72: "e", 200: "f"}),
		rowAt(486, map[float64]string{72: "g", 200: "h"}),
	)
	got := NewDetector(DefaultConfig()).Detect(frags)
	if len(got) != 2 {
		t.Fatalf("expected 2 tables, got %v", got)
	}
	if got[1][0][0] != "e" || got[1][1][1] != "h" {
		t.Fatalf("unexpected second table %v", got[1])
	}
}

func TestDetectRejectsSparseGrid(t *testing.T) {
	frags := page(
		rowAt(700, map[float64]string{72: "a", 200: "b"}),
		rowAt(686, map[float64]string{300: "c", 400: "d"}),
	)
	cfg := DefaultConfig()
	cfg.MinOccupancy = 0.9
	if got := NewDetector(cfg).Detect(frags); len(got) != 0 {
		t.Fatalf("expected sparse grid to be rejected, got %v", got)
	}
}

func TestDetectSingleRowIsNotATable(t *testing.T) {
	frags := rowAt(700, map[float64]string{72: "Name", 200: "Value"})
	if got := NewDetector(DefaultConfig()).Detect(frags); len(got) != 0 {
		t.Fatalf("expected no tables, got %v", got)
	}
}
