// Package tables finds whitespace-aligned tables in positioned page text. Glyphs are grouped
// into rows by baseline, rows are split into cells at wide horizontal gaps, and runs of
// consecutive multi-cell rows become a table whose columns are the merged cell spans.
package tables

import (
	"cmp"
	"math"
	"slices"
	"strings"
)

// Fragment is a positioned piece of text in PDF user space (Y grows upwards).
type Fragment struct {
	X        float64
	Y        float64
	Width    float64
	FontSize float64
	Text     string
}

type Config struct {
	MinRows int
	MinCols int

	// BaselineTolerance is how far (points) glyph baselines may differ within one row.
	BaselineTolerance float64

	// CellGapEm splits a row into cells where the horizontal gap exceeds this many ems.
	CellGapEm float64

	// RowGapEm ends a table where the baseline distance to the next row exceeds this many ems.
	RowGapEm float64

	// MinOccupancy is the share of grid cells that must carry text.
	MinOccupancy float64
}

func DefaultConfig() Config {
	return Config{
		MinRows:           2,
		MinCols:           2,
		BaselineTolerance: 2.0,
		CellGapEm:         1.0,
		RowGapEm:          2.0,
		MinOccupancy:      0.5,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()
	if out.MinRows < 2 {
		out.MinRows = def.MinRows
	}
	if out.MinCols < 2 {
		out.MinCols = def.MinCols
	}
	if out.BaselineTolerance <= 0 {
		out.BaselineTolerance = def.BaselineTolerance
	}
	if out.CellGapEm <= 0 {
		out.CellGapEm = def.CellGapEm
	}
	if out.RowGapEm <= 0 {
		out.RowGapEm = def.RowGapEm
	}
	if out.MinOccupancy <= 0 || out.MinOccupancy > 1 {
		out.MinOccupancy = def.MinOccupancy
	}
	return out
}

type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg.normalize()}
}

type cell struct {
	left, right float64
	text        string
}

type row struct {
	y        float64
	fontSize float64
	cells    []cell
}

// Detect returns the tables found among the fragments of one page, top to bottom. Each
// table is a rectangular grid of trimmed cell texts.
func (d *Detector) Detect(fragments []Fragment) [][][]string {
	rows := d.rows(fragments)

	var tables [][][]string
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= d.cfg.MinRows {
			if grid := d.grid(rows[start:end]); grid != nil {
				tables = append(tables, grid)
			}
		}
		start = -1
	}
	for i, r := range rows {
		if len(r.cells) < d.cfg.MinCols {
			flush(i)
			continue
		}
		if start >= 0 {
			prev := rows[i-1]
			if prev.y-r.y > d.cfg.RowGapEm*max(prev.fontSize, r.fontSize) {
				flush(i)
			}
		}
		if start < 0 {
			start = i
		}
	}
	flush(len(rows))
	return tables
}

// rows groups fragments by baseline and splits each row into cells.
func (d *Detector) rows(fragments []Fragment) []row {
	sorted := slices.Clone(fragments)
	slices.SortStableFunc(sorted, func(a, b Fragment) int {
		if math.Abs(a.Y-b.Y) > d.cfg.BaselineTolerance {
			return cmp.Compare(b.Y, a.Y)
		}
		return cmp.Compare(a.X, b.X)
	})

	var rows []row
	var line []Fragment
	emit := func() {
		if len(line) > 0 {
			rows = append(rows, d.splitCells(line))
		}
		line = nil
	}
	for _, f := range sorted {
		if f.Text == "" {
			continue
		}
		if len(line) > 0 && math.Abs(line[0].Y-f.Y) > d.cfg.BaselineTolerance {
			emit()
		}
		line = append(line, f)
	}
	emit()
	return rows
}

func (d *Detector) splitCells(line []Fragment) row {
	slices.SortStableFunc(line, func(a, b Fragment) int { return cmp.Compare(a.X, b.X) })

	r := row{y: line[0].Y}
	var b strings.Builder
	var current cell
	open := false
	closeCell := func() {
		if open {
			current.text = strings.TrimSpace(b.String())
			if current.text != "" {
				r.cells = append(r.cells, current)
			}
		}
		b.Reset()
		open = false
	}
	for _, f := range line {
		r.fontSize = max(r.fontSize, f.FontSize)
		gap := d.cfg.CellGapEm * max(f.FontSize, 1)
		if open && f.X-current.right > gap {
			closeCell()
		}
		if !open {
			current = cell{left: f.X, right: f.X}
			open = true
		}
		b.WriteString(f.Text)
		current.right = max(current.right, f.X+f.Width)
	}
	closeCell()
	return r
}

// grid derives columns from overlapping cell spans and lays the cells out on them.
func (d *Detector) grid(rows []row) [][]string {
	type span struct{ left, right float64 }
	var spans []span
	for _, r := range rows {
		for _, c := range r.cells {
			spans = append(spans, span{c.left, c.right})
		}
	}
	slices.SortFunc(spans, func(a, b span) int { return cmp.Compare(a.left, b.left) })

	var columns []span
	for _, s := range spans {
		if n := len(columns); n > 0 && s.left <= columns[n-1].right+d.cfg.BaselineTolerance {
			columns[n-1].right = max(columns[n-1].right, s.right)
			continue
		}
		columns = append(columns, s)
	}
	if len(columns) < d.cfg.MinCols {
		return nil
	}

	grid := make([][]string, len(rows))
	filled := 0
	for i, r := range rows {
		grid[i] = make([]string, len(columns))
		for _, c := range r.cells {
			col := slices.IndexFunc(columns, func(s span) bool {
				return c.left >= s.left-d.cfg.BaselineTolerance && c.left <= s.right
			})
			if col < 0 {
				continue
			}
			if grid[i][col] == "" {
				filled++
				grid[i][col] = c.text
			} else {
				grid[i][col] += " " + c.text
			}
		}
	}
	if float64(filled)/float64(len(rows)*len(columns)) < d.cfg.MinOccupancy {
		return nil
	}
	return grid
}
