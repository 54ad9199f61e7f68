// Package ocr turns invoice files into per-page text for the engine.
package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-templates/internal/config"
)

// Extractor extracts per-page text from a document file.
type Extractor interface {
	ExtractPages(ctx context.Context, path string) ([]string, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "native":
		return NewNativePDF(), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		m := NewMistralOCR(cfg.MistralKey, cfg.MistralModel, cfg.MistralRPS)
		m.retry.MaxAttempts = cfg.MaxRetries + 1
		return m, nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}
