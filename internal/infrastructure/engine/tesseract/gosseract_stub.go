//go:build !ocr

package tesseract

import "errors"

// ErrOCRNotEnabled is returned when the binary was built without the "ocr" tag.
var ErrOCRNotEnabled = errors.New("in-process OCR not enabled; rebuild with -tags ocr")

func newRecognizer(string) (recognizer, error) {
	return nil, ErrOCRNotEnabled
}
