package ocr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Engine recognizes the text in a single raster image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// ErrEngineDisabled is returned by engines that were switched off in config.
var ErrEngineDisabled = errors.New("ocr engine disabled")

// LazyEngine builds its underlying engine on first use and keeps it for the
// life of the process. A failed build is not remembered, so the next call
// tries again. Recognition is serialized because the wrapped client is
// stateful.
type LazyEngine struct {
	name  string
	build func() (Engine, error)

	mu     sync.Mutex
	engine atomic.Pointer[Engine]
	builds atomic.Int32
}

func NewLazyEngine(name string, build func() (Engine, error)) *LazyEngine {
	return &LazyEngine{name: name, build: build}
}

func (l *LazyEngine) Name() string { return l.name }

// Builds reports how many times construction was attempted.
func (l *LazyEngine) Builds() int { return int(l.builds.Load()) }

// Instance returns the shared engine, building it if needed.
func (l *LazyEngine) Instance() (Engine, error) {
	if e := l.engine.Load(); e != nil {
		return *e, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.instanceLocked()
}

func (l *LazyEngine) instanceLocked() (Engine, error) {
	if e := l.engine.Load(); e != nil {
		return *e, nil
	}
	l.builds.Add(1)
	e, err := l.build()
	if err != nil {
		return nil, fmt.Errorf("%s: build engine: %w", l.name, err)
	}
	l.engine.Store(&e)
	return e, nil
}

func (l *LazyEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, err := l.instanceLocked()
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.Recognize(ctx, imagePath)
}

// CLIEngine shells out to the tesseract binary.
type CLIEngine struct {
	Binary      string
	Language    string
	TessdataDir string
	Runner      Runner
}

func (c *CLIEngine) Name() string { return "tesseract-cli" }

func (c *CLIEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	args := []string{imagePath, "stdout", "-l", c.Language}
	if c.TessdataDir != "" {
		args = append(args, "--tessdata-dir", c.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, err := c.Runner.Run(ctx, c.Binary, args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
