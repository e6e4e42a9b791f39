// Package tess adapts the gosseract client to ocr.Engine. It needs cgo and
// the tesseract development libraries, so it is kept apart from package ocr.
package tess

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/household-docs/internal/ocr"
)

type Config struct {
	Language    string
	TessdataDir string
}

// Engine wraps a single gosseract client. The client is not safe for
// concurrent use; wrap it in ocr.LazyEngine.
type Engine struct {
	client *gosseract.Client
}

// New constructs the client and applies the language settings.
func New(cfg Config) (*Engine, error) {
	client := gosseract.NewClient()
	if cfg.TessdataDir != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataDir); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	lang := cfg.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set language: %w", err)
	}
	return &Engine{client: client}, nil
}

// Lazy returns the process-wide primary engine wrapper.
func Lazy(cfg Config) *ocr.LazyEngine {
	return ocr.NewLazyEngine("gosseract", func() (ocr.Engine, error) {
		return New(cfg)
	})
}

func (e *Engine) Name() string { return "gosseract" }

func (e *Engine) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := e.client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	return e.client.Text()
}

func (e *Engine) Close() error {
	return e.client.Close()
}
