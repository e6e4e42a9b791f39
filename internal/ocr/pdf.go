package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextLayer reads the embedded text of a PDF without OCR.
type TextLayer func(ctx context.Context, path string) (text string, pages int, err error)

// readTextLayer tries the pure-Go reader first and pdftotext second.
func (e *Extractor) readTextLayer(ctx context.Context, path string) (string, int, error) {
	text, pages, err := readPDFLibrary(path)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, pages, nil
	}
	if err != nil {
		e.logger.Debug("ocr.pdf.library_failed", "path", path, "error", err)
	}
	return e.pdfToText(ctx, path)
}

func readPDFLibrary(path string) (text string, pages int, err error) {
	// the reader panics on some malformed fonts
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	rd, err := r.GetPlainText()
	if err != nil {
		return "", 0, err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rd); err != nil {
		return "", 0, err
	}
	return buf.String(), r.NumPage(), nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (string, int, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, err
	}
	text := string(out)
	// A form-feed \f is used as page separator by default
	return text, 1 + strings.Count(strings.TrimRight(text, "\f"), "\f"), nil
}

// rasterize renders each PDF page to a PNG. The returned cleanup removes them.
func (e *Extractor) rasterize(ctx context.Context, path string) ([]string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "docpipe-pp-*")
	if err != nil {
		return nil, func() {}, err
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.tmp.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	if _, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix); err != nil {
		return nil, cleanup, err
	}

	// prefix-1.png, prefix-2.png, ...
	matches, _ := filepath.Glob(prefix + "-*.png")
	sortPages(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, cleanup, fmt.Errorf("pdftoppm produced no images")
	}
	return matches, cleanup, nil
}

// sortPages orders page images numerically; pdftoppm zero-pads only when
// the page count needs it.
func sortPages(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		if len(paths[i]) != len(paths[j]) {
			return len(paths[i]) < len(paths[j])
		}
		return paths[i] < paths[j]
	})
}
