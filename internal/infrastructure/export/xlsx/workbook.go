// Package xlsx exports an outcome envelope as a spreadsheet: a summary sheet with the attempt
// log and one sheet per extracted table.
package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/docextract/internal/core/domain"
)

const summarySheet = "Summary"

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

func Write(w io.Writer, env domain.Envelope) error {
	f, err := Build(env)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func WriteFile(path string, env domain.Envelope) error {
	f, err := Build(env)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx save %s: %w", path, err)
	}
	return nil
}

// Build returns the workbook; the caller closes it.
func Build(env domain.Envelope) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	if err := writeSummary(f, env); err != nil {
		return nil, err
	}
	for i, table := range env.Content.Tables {
		name := tableSheetName(i+1, table.Page)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
		for r, row := range table.Data {
			values := make([]any, len(row))
			for c, v := range row {
				values[c] = v
			}
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				return nil, fmt.Errorf("write table %d row %d: %w", i+1, r+1, err)
			}
		}
	}
	index, _ := f.GetSheetIndex(summarySheet)
	f.SetActiveSheet(index)
	return f, nil
}

func writeSummary(f *excelize.File, env domain.Envelope) error {
	info := env.ExtractionInfo
	rows := [][]any{
		{"File", info.FileName},
		{"Status", string(info.Status)},
		{"Confidence", info.Confidence},
		{"Processing time (ms)", info.ProcessingTimeMS},
		{"Engines used", strings.Join(info.EngineUsed, ", ")},
		{"Total pages", env.Metadata.TotalPages},
		{"Extraction method", env.Metadata.TextExtractionMethod},
		{"Tables", len(env.Content.Tables)},
		{},
		{"Engine", "Outcome", "Duration (ms)"},
	}
	for _, a := range env.AttemptLog {
		rows = append(rows, []any{a.Engine, string(a.Outcome), a.DurationMS})
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 22)
	_ = f.SetColWidth(summarySheet, "B", "B", 36)
	_ = f.SetColWidth(summarySheet, "C", "C", 14)
	return nil
}

func tableSheetName(n, page int) string {
	name := fmt.Sprintf("Table %d", n)
	if page > 0 {
		name = fmt.Sprintf("Table %d (p%d)", n, page)
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}
