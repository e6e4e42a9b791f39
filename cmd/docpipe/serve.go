package main

import (
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/household-docs/internal/export"
	"github.com/joseph-ayodele/household-docs/internal/repository"
	"github.com/joseph-ayodele/household-docs/internal/server"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over gRPC with metrics and health over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, c, appOptions{optionDB: true})
			if err != nil {
				return err
			}
			defer a.Close()

			sopts := []server.ServiceOption{
				server.WithUploadDir(c.cfg.Server.UploadDir),
				server.WithDirectoryRunner(a.runner()),
			}
			deps := server.HTTPDeps{Metrics: a.metrics.Handler(), Logger: a.logger}
			if a.db != nil {
				sopts = append(sopts, server.WithSink(a.sink()))
				deps.DB = a.db
				deps.Transactions = a.transactions
				deps.Export = export.NewService(a.logger)
			}

			svc := server.NewDocumentService(a.processor, a.learner, a.logger, sopts...)
			gs, hs := server.NewGRPCServer(svc, a.logger)
			return server.Serve(ctx, server.ServeConfig{
				GRPCAddr: c.cfg.Server.GRPCAddr,
				HTTPAddr: c.cfg.Server.HTTPAddr,
			}, gs, hs, server.NewRouter(deps), a.logger)
		},
	}
}

func connect(cmd *cobra.Command, c *cli) (*repository.DB, error) {
	return server.ConnectDB(cmd.Context(), c.cfg.Database, c.logger)
}
