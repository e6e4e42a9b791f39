package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/household-docs/internal/common"
	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/ingest"
	"github.com/joseph-ayodele/household-docs/internal/pipeline"
)

func newProcessDirCmd(c *cli) *cobra.Command {
	var (
		household  string
		skipHidden bool
		xlsxOut    string
	)
	cmd := &cobra.Command{
		Use:   "process-dir <dir>",
		Short: "Process every receipt and statement under a directory",
		Long: "Walks the directory, processes each accepted file once per distinct content, " +
			"and stores results when DB_URL is configured.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, c, appOptions{optionDB: true})
			if err != nil {
				return err
			}
			defer a.Close()

			results, stats, err := a.runner().ProcessDirectory(ctx, household, args[0], skipHidden)
			if err != nil {
				return err
			}
			if xlsxOut != "" {
				var ok []*pipeline.Result
				for _, r := range results {
					if r.Result != nil {
						ok = append(ok, r.Result)
					}
				}
				if err := writeResultsXLSX(a, xlsxOut, ok); err != nil {
					return err
				}
			}

			files := make([]map[string]any, 0, len(results))
			for _, r := range results {
				files = append(files, fileSummary(r))
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"stats": stats, "files": files})
		},
	}
	cmd.Flags().StringVar(&household, "household", common.DefaultHouseholdID, "household id")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "skip dot files and directories")
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "write all structured results to this XLSX file")
	return cmd
}

func newWatchCmd(c *cli) *cobra.Command {
	var (
		household   string
		initialScan bool
		debounce    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Process files as they appear in one or more drop folders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, c, appOptions{optionDB: true})
			if err != nil {
				return err
			}
			defer a.Close()

			events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
				Roots:       args,
				InitialScan: initialScan,
				SkipHidden:  true,
				Debounce:    debounce,
			}, a.logger)
			if err != nil {
				return err
			}
			runner := a.runner()
			a.logger.Info("watching", "roots", args, "household_id", household)
			for {
				select {
				case path, ok := <-events:
					if !ok {
						return nil
					}
					res, err := runner.ProcessFile(ctx, household, path, entity.DocumentAuto)
					if err != nil {
						if ctx.Err() != nil {
							return nil
						}
						continue
					}
					if err := printJSON(cmd.OutOrStdout(), fileSummary(res)); err != nil {
						return err
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					a.logger.Warn("watch error", "error", err)
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().StringVar(&household, "household", common.DefaultHouseholdID, "household id")
	cmd.Flags().BoolVar(&initialScan, "initial-scan", false, "process files already present at startup")
	cmd.Flags().DurationVar(&debounce, "debounce", 2*time.Second, "wait this long after the last write before processing")
	return cmd
}

func fileSummary(r ingest.FileResult) map[string]any {
	out := map[string]any{
		"path":         r.SourcePath,
		"hash":         r.HashHex,
		"deduplicated": r.Deduplicated,
		"elapsed_ms":   r.Elapsed.Milliseconds(),
	}
	if r.Err != "" {
		out["error"] = r.Err
	}
	if r.Result != nil {
		out["doc_type"] = r.DocumentType
		out["_method"] = r.Method
	}
	if r.Persisted.ReceiptID != "" {
		out["receipt_id"] = r.Persisted.ReceiptID
	}
	if r.Persisted.Import != nil {
		out["import"] = r.Persisted.Import
	}
	return out
}

// errHouseholdRequired guards commands that act on stored household data.
var errHouseholdRequired = fmt.Errorf("--household is required: %w", common.ErrInvalidInput)
