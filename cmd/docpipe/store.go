package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/household-docs/internal/common"
	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/export"
	"github.com/joseph-ayodele/household-docs/internal/pipeline"
	"github.com/joseph-ayodele/household-docs/internal/repository"
)

func newLearnCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "learn <household> <item> <category>",
		Short: "Record a category correction for an item name",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, c, appOptions{needDB: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.learner.Upsert(ctx, args[0], args[1], args[2]); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"household_id": args[0],
				"item_name":    entity.NormalizeItemName(args[1]),
				"category":     strings.TrimSpace(args[2]),
			})
		},
	}
}

func newImportCmd(c *cli) *cobra.Command {
	var household string
	cmd := &cobra.Command{
		Use:   "import <statement-file>",
		Short: "Parse a bank statement and import its transactions",
		Long:  "Rows already imported for the household (same date, description and amount) are skipped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(household) == "" {
				return errHouseholdRequired
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, c, appOptions{needDB: true})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.processor.Process(ctx, pipeline.Request{
				Path:         args[0],
				DeclaredType: entity.DocumentBankStatement,
				HouseholdID:  household,
			})
			if err != nil {
				return err
			}
			ir, err := a.transactions.Import(ctx, household, res.Statement.Transactions)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"bank_name":             res.Statement.BankName,
				"_method":               res.Method,
				"transactions_imported": ir.Inserted,
				"duplicates_skipped":    ir.Duplicates,
				"subscriptions_found":   ir.Subscriptions,
			})
		},
	}
	cmd.Flags().StringVar(&household, "household", "", "household id (required)")
	return cmd
}

func newReconcileCmd(c *cli) *cobra.Command {
	var household string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Link stored receipts to matching bank debits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(household) == "" {
				return errHouseholdRequired
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, c, appOptions{needDB: true})
			if err != nil {
				return err
			}
			defer a.Close()

			rr, err := a.receipts.Reconcile(ctx, household)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rr)
		},
	}
	cmd.Flags().StringVar(&household, "household", "", "household id (required)")
	return cmd
}

func newTransactionsCmd(c *cli) *cobra.Command {
	var (
		household string
		limit     int
		xlsxOut   string
	)
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List imported transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(household) == "" {
				return errHouseholdRequired
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, c, appOptions{needDB: true})
			if err != nil {
				return err
			}
			defer a.Close()

			txs, err := a.transactions.List(ctx, household, limit)
			if err != nil {
				return err
			}
			if xlsxOut != "" {
				b, err := export.NewService(a.logger).TransactionsXLSX(txs)
				if err != nil {
					return err
				}
				if err := os.WriteFile(xlsxOut, b, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", xlsxOut, err)
				}
			}
			return printJSON(cmd.OutOrStdout(), txs)
		},
	}
	cmd.Flags().StringVar(&household, "household", common.DefaultHouseholdID, "household id")
	cmd.Flags().IntVar(&limit, "limit", repository.DefaultListLimit, "maximum rows")
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "also write the rows to this XLSX file")
	return cmd
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := c.cfg.RequireDatabase(); err != nil {
				return err
			}
			db, err := connect(cmd, c)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			c.logger.Info("migrate.ok", "driver", db.Dialect())
			return nil
		},
	}
}

func newDBHealthCmd(c *cli) *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "dbhealth",
		Short: "Check the database and show recent processing log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := c.cfg.RequireDatabase(); err != nil {
				return err
			}
			db, err := connect(cmd, c)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.HealthCheck(ctx, 2*time.Second); err != nil {
				return fmt.Errorf("db health: %w", err)
			}
			entries, err := repository.NewProcessingLogRepository(db, c.logger).Recent(ctx, recent)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"status":  "ok",
				"driver":  db.Dialect(),
				"entries": entries,
			})
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 10, "number of processing log entries to show")
	return cmd
}
