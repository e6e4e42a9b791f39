package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/household-docs/constants"
	"github.com/joseph-ayodele/household-docs/internal/entity"
)

// extractImage runs OCR on an image, converting HEIC/HEIF photos to PNG first.
func (e *Extractor) extractImage(ctx context.Context, path, ext string) (entity.ExtractedText, error) {
	if !constants.IsHEIC(ext) {
		return e.recognize(ctx, path, []string{path})
	}
	png, cleanup, err := e.convertHEIC(ctx, path)
	defer cleanup()
	if err != nil {
		return entity.ExtractedText{}, &TextExtractionError{Path: path, Causes: []error{err}}
	}
	return e.recognize(ctx, path, []string{png})
}

// convertHEIC renders the photo to a temporary PNG; cleanup removes it.
func (e *Extractor) convertHEIC(ctx context.Context, in string) (string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "docpipe-heic-*")
	if err != nil {
		return "", func() {}, err
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.tmp.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}
	out := filepath.Join(tmpDir, "page.png")

	var args []string
	switch filepath.Base(e.cfg.HeicConverter) {
	case "heif-convert", "magick":
		args = []string{in, out}
	case "sips":
		args = []string{"-s", "format", "png", in, "--out", out}
	default:
		return "", cleanup, fmt.Errorf("HEIC not supported: converter must be one of heif-convert | magick | sips, got %q", e.cfg.HeicConverter)
	}
	if _, err := e.runner.Run(ctx, e.cfg.HeicConverter, args...); err != nil {
		return "", cleanup, err
	}
	if _, err := os.Stat(out); err != nil {
		return "", cleanup, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}
	e.logger.Debug("ocr.heic.converted", "path", in, "converter", e.cfg.HeicConverter)
	return out, cleanup, nil
}
