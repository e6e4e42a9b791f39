package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string // directories to watch (recursive)
	InitialScan bool     // emit files already present
	SkipHidden  bool
	Debounce    time.Duration // coalesce write bursts for the same file
}

// StartWatcher emits paths of accepted files as they are created or
// finish being written under the configured roots.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	var initial []string
	addDir := func(root string) error {
		filter := walkFilter{root: root, skipHidden: cfg.SkipHidden}
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			candidate, err := filter.step(path, d)
			if err != nil {
				return err
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && candidate {
				initial = append(initial, path)
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addDir(r); err != nil {
			logger.Error("ingest.watch.add_root_failed", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	go func() {
		done := make(chan struct{})
		ready := make(chan string)
		pending := map[string]*time.Timer{}
		defer close(errCh)
		defer close(evCh)
		defer func() {
			close(done)
			for _, t := range pending {
				t.Stop()
			}
			if err := w.Close(); err != nil {
				logger.Warn("ingest.watch.close_failed", "error", err)
			}
		}()

		send := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !send(p) {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case p := <-ready:
				delete(pending, p)
				if !send(p) {
					return
				}
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() {
						if err := addDir(e.Name); err != nil {
							logger.Warn("ingest.watch.add_dir_failed", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write)) || !supported(e.Name) {
					continue
				}
				if cfg.SkipHidden && hiddenBelow(filepath.Dir(e.Name), e.Name) {
					continue
				}
				if cfg.Debounce <= 0 {
					if !send(e.Name) {
						return
					}
					continue
				}
				if t, ok := pending[e.Name]; ok {
					t.Reset(cfg.Debounce)
					continue
				}
				name := e.Name
				pending[name] = time.AfterFunc(cfg.Debounce, func() {
					select {
					case ready <- name:
					case <-done:
					}
				})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}
