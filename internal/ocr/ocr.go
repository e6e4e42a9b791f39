package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/household-docs/constants"
	"github.com/joseph-ayodele/household-docs/internal/async"
	"github.com/joseph-ayodele/household-docs/internal/entity"
)

// DefaultMinNativeChars is the trimmed length a PDF text layer must exceed
// before OCR is skipped.
const DefaultMinNativeChars = 50

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Language    string // default "eng"
	DPI         int    // rasterization DPI for scanned PDFs, default 300
	MaxPages    int    // 0 = no limit
	TessdataDir string

	// HeicConverter is one of heif-convert | magick | sips; empty -> "magick".
	HeicConverter string

	MinNativeChars int
}

// Extractor turns a document into raw text: native text where the file has
// it, the primary OCR engine otherwise, and the secondary engine when the
// primary fails.
type Extractor struct {
	cfg       Config
	runner    Runner
	logger    *slog.Logger
	primary   Engine
	secondary Engine
	pool      *async.Pool
	textLayer TextLayer
}

type Option func(*Extractor)

func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithPrimary sets the preferred OCR engine. Nil disables it.
func WithPrimary(engine Engine) Option {
	return func(e *Extractor) { e.primary = engine }
}

func WithSecondary(engine Engine) Option {
	return func(e *Extractor) {
		if engine != nil {
			e.secondary = engine
		}
	}
}

// WithPool runs OCR calls on a bounded worker pool.
func WithPool(p *async.Pool) Option {
	return func(e *Extractor) { e.pool = p }
}

func WithTextLayer(fn TextLayer) Option {
	return func(e *Extractor) {
		if fn != nil {
			e.textLayer = fn
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.HeicConverter == "" {
		cfg.HeicConverter = "magick"
	}
	if cfg.MinNativeChars <= 0 {
		cfg.MinNativeChars = DefaultMinNativeChars
	}
	e := &Extractor{cfg: cfg, runner: ExecRunner{Logger: logger}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	if e.secondary == nil {
		e.secondary = &CLIEngine{
			Binary:      cfg.Tesseract,
			Language:    cfg.Language,
			TessdataDir: cfg.TessdataDir,
			Runner:      e.runner,
		}
	}
	if e.textLayer == nil {
		e.textLayer = e.readTextLayer
	}
	return e
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (entity.ExtractedText, error) {
	return e.ExtractDocument(ctx, entity.RawDocument{Path: path, Ext: filepath.Ext(path)})
}

// ExtractDocument is Extract with a MIME hint for files without a useful extension.
func (e *Extractor) ExtractDocument(ctx context.Context, doc entity.RawDocument) (entity.ExtractedText, error) {
	start := time.Now()
	ext := doc.Ext
	if ext == "" {
		ext = filepath.Ext(doc.Path)
	}
	format := constants.FormatFromHint(ext, doc.ContentType)
	e.logger.Debug("ocr.extract.start", "path", doc.Path, "format", format)

	var (
		res entity.ExtractedText
		err error
	)
	switch format {
	case constants.CSV, constants.TXT:
		res, err = e.extractPlain(doc.Path)
	case constants.PDF:
		res, err = e.extractPDF(ctx, doc.Path)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, doc.Path, ext)
	default:
		err = &TextExtractionError{Path: doc.Path, Causes: []error{fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)}}
	}
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("ocr.extract.failed", "path", doc.Path, "format", format, "error", err)
		return res, err
	}
	e.logger.Info("ocr.extract.ok",
		"path", doc.Path,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) extractPlain(path string) (entity.ExtractedText, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.ExtractedText{}, &TextExtractionError{Path: path, Causes: []error{err}}
	}
	return entity.ExtractedText{Text: string(data), Method: entity.ExtractionNative, Pages: 1}, nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (entity.ExtractedText, error) {
	text, pages, err := e.textLayer(ctx, path)
	if err != nil {
		e.logger.Warn("ocr.pdf.no_text_layer", "path", path, "error", err)
	} else if len(strings.TrimSpace(text)) > e.cfg.MinNativeChars {
		return entity.ExtractedText{Text: Normalize(text), Method: entity.ExtractionNative, Pages: pages}, nil
	}

	images, cleanup, err := e.rasterize(ctx, path)
	defer cleanup()
	if err != nil {
		return entity.ExtractedText{}, &TextExtractionError{Path: path, Causes: []error{err}}
	}
	return e.recognize(ctx, path, images)
}

// recognize runs the primary engine over every page image and falls back to
// the secondary engine when the primary is missing or fails.
func (e *Extractor) recognize(ctx context.Context, path string, images []string) (entity.ExtractedText, error) {
	var causes []error
	if e.primary != nil {
		text, err := e.runEngine(ctx, e.primary, images)
		if err == nil {
			return entity.ExtractedText{Text: text, Method: entity.ExtractionPrimaryOCR, Pages: len(images)}, nil
		}
		if ctx.Err() != nil {
			return entity.ExtractedText{}, ctx.Err()
		}
		e.logger.Warn("ocr.primary.failed", "engine", e.primary.Name(), "path", path, "error", err)
		causes = append(causes, err)
	}

	text, err := e.runEngine(ctx, e.secondary, images)
	if err == nil {
		return entity.ExtractedText{Text: text, Method: entity.ExtractionFallbackOCR, Pages: len(images)}, nil
	}
	if ctx.Err() != nil {
		return entity.ExtractedText{}, ctx.Err()
	}
	causes = append(causes, err)
	return entity.ExtractedText{}, &TextExtractionError{Path: path, Causes: causes}
}

func (e *Extractor) runEngine(ctx context.Context, engine Engine, images []string) (string, error) {
	run := func(ctx context.Context) (string, error) {
		var b strings.Builder
		for _, img := range images {
			txt, err := engine.Recognize(ctx, img)
			if err != nil {
				return "", fmt.Errorf("%s: %w", engine.Name(), err)
			}
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(txt)
		}
		return Normalize(b.String()), nil
	}
	if e.pool == nil {
		return run(ctx)
	}
	return async.Run(ctx, e.pool, run)
}
