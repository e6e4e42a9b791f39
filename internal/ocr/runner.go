package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// maxStderr caps the tool output kept on a CommandError.
const maxStderr = 512

// Runner executes the external extraction tools (pdftotext, pdftoppm,
// tesseract, HEIC converters). Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandError is a failed tool invocation with the tail of its stderr.
type CommandError struct {
	Tool   string
	Err    error
	Stderr string
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Missing reports whether the tool is not installed.
func (e *CommandError) Missing() bool {
	return errors.Is(e.Err, exec.ErrNotFound) || errors.Is(e.Err, fs.ErrNotExist)
}

// ExecRunner runs tools with os/exec and returns stdout.
type ExecRunner struct {
	Logger *slog.Logger
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tool := filepath.Base(name)
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		cerr := &CommandError{Tool: tool, Err: err, Stderr: tail(strings.TrimSpace(errb.String()), maxStderr)}
		logger.Warn("ocr.exec.failed",
			"tool", tool,
			"missing", cerr.Missing(),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", cerr,
		)
		return nil, cerr
	}
	logger.Debug("ocr.exec.ok",
		"tool", tool,
		"args", len(args),
		"duration_ms", time.Since(start).Milliseconds(),
		"stdout_bytes", out.Len(),
	)
	return out.Bytes(), nil
}

// tail keeps the last max bytes of s: tools print the cause last.
func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := len(s) - max
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "..." + s[cut:]
}
