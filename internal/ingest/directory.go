package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/household-docs/internal/entity"
)

// ProcessDirectory walks root, filters by allowed extension, skips hidden
// entries if requested, and processes each file in walk order. Per-file
// failures are collected; only a walk failure or cancellation aborts.
func (r *Runner) ProcessDirectory(ctx context.Context, householdID, root string, skipHidden bool) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []FileResult
	var stats DirStats
	filter := walkFilter{root: root, skipHidden: skipHidden}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if ok, err := filter.step(path, d); !ok {
			return err
		}
		stats.Matched++

		res, err := r.ProcessFile(ctx, householdID, path, entity.DocumentAuto)
		results = append(results, res)
		switch {
		case err != nil:
			stats.Failed++
		case res.Deduplicated:
			stats.Deduplicated++
		default:
			stats.Succeeded++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	r.logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}
