// Package ingest feeds files from disk through the document pipeline and
// persists what comes out: receipts are stored, statement rows imported.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/household-docs/constants"
	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/pipeline"
)

// DocumentProcessor is the pipeline entry point the runner depends on.
type DocumentProcessor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Sink persists a pipeline result for a household.
type Sink interface {
	Persist(ctx context.Context, householdID string, res *pipeline.Result) (Persisted, error)
}

// Persisted describes what a Sink stored.
type Persisted struct {
	ReceiptID string
	Import    *entity.ImportResult
}

// FileResult is the per-file outcome.
type FileResult struct {
	SourcePath   string
	HashHex      string
	Deduplicated bool
	DocumentType entity.DocumentType
	Method       constants.ProcessingMethod
	Persisted    Persisted
	Result       *pipeline.Result
	Elapsed      time.Duration
	Err          string
}

// DirStats summarizes a directory run.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Runner processes files for a household. Files whose content was already
// processed by this runner are reported as deduplicated and skipped.
type Runner struct {
	proc   DocumentProcessor
	sink   Sink
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

type Option func(*Runner)

// WithSink persists each successful result.
func WithSink(s Sink) Option {
	return func(r *Runner) { r.sink = s }
}

func NewRunner(proc DocumentProcessor, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{proc: proc, logger: logger, seen: map[string]struct{}{}}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ProcessFile runs one file through the pipeline. The returned error is
// also recorded in FileResult.Err.
func (r *Runner) ProcessFile(ctx context.Context, householdID, path string, declared entity.DocumentType) (FileResult, error) {
	start := time.Now()
	out := FileResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return r.fail(out, fmt.Errorf("abs path: %w", err))
	}
	out.SourcePath = abs
	if !supported(abs) {
		return r.fail(out, fmt.Errorf("unsupported or missing extension: %q", filepath.Ext(abs)))
	}

	key, err := pipeline.ContentKey(abs)
	if err != nil {
		return r.fail(out, err)
	}
	out.HashHex = key[strings.IndexByte(key, ':')+1:]
	if !r.claim(key) {
		out.Deduplicated = true
		r.logger.Info("ingest.file.deduplicated", "path", abs, "hash", out.HashHex)
		return out, nil
	}

	res, err := r.proc.Process(ctx, pipeline.Request{
		Path:         abs,
		DeclaredType: declared,
		HouseholdID:  householdID,
	})
	if err != nil {
		r.release(key)
		out.Elapsed = time.Since(start)
		return r.fail(out, err)
	}
	out.Result = res
	out.DocumentType = res.DocumentType
	out.Method = res.Method

	if r.sink != nil {
		p, err := r.sink.Persist(ctx, householdID, res)
		if err != nil {
			out.Elapsed = time.Since(start)
			return r.fail(out, fmt.Errorf("persist: %w", err))
		}
		out.Persisted = p
	}
	out.Elapsed = time.Since(start)
	r.logger.Info("ingest.file.ok",
		"path", abs,
		"doc_type", res.DocumentType,
		"method", res.Method,
		"elapsed_ms", out.Elapsed.Milliseconds(),
	)
	return out, nil
}

func (r *Runner) fail(out FileResult, err error) (FileResult, error) {
	out.Err = err.Error()
	r.logger.Warn("ingest.file.failed", "path", out.SourcePath, "error", err)
	return out, err
}

func (r *Runner) claim(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[key]; ok {
		return false
	}
	r.seen[key] = struct{}{}
	return true
}

// release forgets a key so a failed file can be retried.
func (r *Runner) release(key string) {
	r.mu.Lock()
	delete(r.seen, key)
	r.mu.Unlock()
}
