//go:build ocr

package tesseract

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/kirillkom/docextract/internal/infrastructure/engine"
)

type gosseractRecognizer struct {
	client *gosseract.Client
}

func newRecognizer(lang string) (recognizer, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(strings.Split(lang, "+")...); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set tesseract language: %w", err)
	}
	return &gosseractRecognizer{client: client}, nil
}

func (g *gosseractRecognizer) Recognize(png []byte) (engine.Recognition, error) {
	if err := g.client.SetImageFromBytes(png); err != nil {
		return engine.Recognition{}, fmt.Errorf("set image: %w", err)
	}
	text, err := g.client.Text()
	if err != nil {
		return engine.Recognition{}, fmt.Errorf("recognize: %w", err)
	}

	rec := engine.Recognition{Text: strings.TrimSpace(text)}
	boxes, err := g.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return rec, nil
	}
	var sum float64
	for _, box := range boxes {
		if box.Confidence < 0 {
			continue
		}
		sum += box.Confidence
		rec.Words++
	}
	if rec.Words > 0 {
		rec.Confidence = min(sum/float64(rec.Words)/100.0, 1)
	}
	return rec, nil
}

func (g *gosseractRecognizer) Close() error {
	return g.client.Close()
}
