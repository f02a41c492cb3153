package cliadapter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/infrastructure/export/xlsx"
)

type outputOptions struct {
	dir  string
	xlsx bool
}

type written struct {
	JSON string
	Text string
	XLSX string
}

// outputSuffix keeps the input's own extension in every output name, so report.pdf and
// report.txt in one directory never share outputs and a .txt input is never rewritten.
const outputSuffix = ".extracted"

// writeOutputs stores <file>.extracted.json (indented envelope) and <file>.extracted.txt
// (raw text) where <file> is the input's base name including its extension.
func writeOutputs(inputPath string, env domain.Envelope, opts outputOptions) (written, error) {
	dir := opts.dir
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return written{}, fmt.Errorf("create output dir: %w", err)
	}
	base := filepath.Base(inputPath)
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "document"
	}
	base += outputSuffix

	out := written{
		JSON: filepath.Join(dir, base+".json"),
		Text: filepath.Join(dir, base+".txt"),
	}
	if opts.xlsx {
		out.XLSX = filepath.Join(dir, base+".xlsx")
	}
	for _, target := range []string{out.JSON, out.Text, out.XLSX} {
		if target != "" && samePath(target, inputPath) {
			return written{}, fmt.Errorf("output %s would overwrite the input", target)
		}
	}

	raw, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return written{}, fmt.Errorf("marshal envelope: %w", err)
	}
	if err := os.WriteFile(out.JSON, append(raw, '\n'), 0o644); err != nil {
		return written{}, fmt.Errorf("write %s: %w", out.JSON, err)
	}
	if err := os.WriteFile(out.Text, []byte(env.Content.RawText), 0o644); err != nil {
		return written{}, fmt.Errorf("write %s: %w", out.Text, err)
	}
	if out.XLSX != "" {
		if err := xlsx.WriteFile(out.XLSX, env); err != nil {
			return written{}, err
		}
	}
	return out, nil
}

// isOutputFile reports whether name is something writeOutputs produced.
func isOutputFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".json", ".txt", ".xlsx":
		return strings.HasSuffix(strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name))), outputSuffix)
	}
	return false
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if absA == absB {
		return true
	}
	infoA, errA := os.Stat(absA)
	infoB, errB := os.Stat(absB)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}
