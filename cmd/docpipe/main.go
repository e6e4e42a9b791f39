// Command docpipe turns receipts and bank statements into structured
// records, learns category corrections, and serves the pipeline over gRPC.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/household-docs/internal/common"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if _, werr := fmt.Fprintf(os.Stderr, "Error: %v\n", err); werr != nil {
			fmt.Printf("Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// cli carries the loaded configuration and logger into subcommands.
type cli struct {
	cfg    *common.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "docpipe",
		Short:         "Household receipt and bank statement pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := common.LoadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			c.cfg = cfg
			// stdout is reserved for command output.
			c.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
			slog.SetDefault(c.logger)
			return nil
		},
	}

	root.AddCommand(
		newProcessCmd(c),
		newExtractCmd(c),
		newProcessDirCmd(c),
		newWatchCmd(c),
		newLearnCmd(c),
		newImportCmd(c),
		newReconcileCmd(c),
		newTransactionsCmd(c),
		newMigrateCmd(c),
		newDBHealthCmd(c),
		newServeCmd(c),
	)
	return root
}
