package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/household-docs/internal/common"
	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/export"
	"github.com/joseph-ayodele/household-docs/internal/pipeline"
)

func newProcessCmd(c *cli) *cobra.Command {
	var (
		docType   string
		household string
		xlsxOut   string
		save      bool
	)
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Extract and structure a single receipt or bank statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			declared, err := entity.ParseDocumentType(docType)
			if err != nil {
				return err
			}
			v := common.NewValidator().Field("file", args[0], common.Required, common.AllowedExtension)
			if err := v.Error(); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, c, appOptions{needDB: save, optionDB: true})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.processor.Process(ctx, pipeline.Request{
				Path:         args[0],
				DeclaredType: declared,
				HouseholdID:  household,
			})
			if err != nil {
				return err
			}
			if save {
				p, err := a.sink().Persist(ctx, household, res)
				if err != nil {
					return fmt.Errorf("persist result: %w", err)
				}
				a.logger.Info("process.saved", "receipt_id", p.ReceiptID, "import", p.Import)
			}
			if xlsxOut != "" {
				if err := writeResultsXLSX(a, xlsxOut, []*pipeline.Result{res}); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&docType, "type", "", "document type: receipt | bank_statement (default: detect)")
	cmd.Flags().StringVar(&household, "household", common.DefaultHouseholdID, "household id for learned categories")
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "also write the result to this XLSX file")
	cmd.Flags().BoolVar(&save, "save", false, "store the receipt or import the statement rows")
	return cmd
}

func writeResultsXLSX(a *app, path string, results []*pipeline.Result) error {
	b, err := export.NewService(a.logger).ResultsXLSX(results)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	a.logger.Info("xlsx written", "path", path, "bytes", len(b))
	return nil
}

func newExtractCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the raw text extracted from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := common.NewValidator().Field("file", args[0], common.Required, common.AllowedExtension)
			if err := v.Error(); err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, c, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			text, err := a.extractor.Extract(ctx, args[0])
			if err != nil {
				return err
			}
			a.logger.Info("extract.ok",
				"method", text.Method,
				"pages", text.Pages,
				"bytes", len(text.Text),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return printJSON(cmd.OutOrStdout(), text)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
