package ocr

import (
	"fmt"
	"strings"
	"time"
)

// NewEngine selects a Recognizer by name: "tesseract" (the default when kind
// is empty) or "remote", which needs remoteURL.
func NewEngine(kind, remoteURL string, timeout time.Duration, tc TesseractConfig) (Recognizer, error) {
	switch strings.ToLower(kind) {
	case "", "tesseract":
		return NewTesseractEngine(tc), nil
	case "remote":
		if remoteURL == "" {
			return nil, fmt.Errorf("remote OCR engine requires a URL")
		}
		return NewRemoteEngine(remoteURL, timeout), nil
	}
	return nil, fmt.Errorf("unknown OCR engine %q", kind)
}
