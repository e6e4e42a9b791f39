package server

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/household-docs/internal/common"
	"github.com/joseph-ayodele/household-docs/internal/repository"
)

// ConnectDB opens the configured store and verifies it answers.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repository.DB, error) {
	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := db.HealthCheck(ctx, cfg.DialTimeout); err != nil {
		logger.Error("database ping failed", "error", err)
		db.Close()
		return nil, err
	}
	logger.Info("database health OK", "driver", db.Dialect())
	return db, nil
}

// CloseDB tolerates a nil handle so it can be deferred before Open succeeds.
func CloseDB(db *repository.DB) {
	if db != nil {
		db.Close()
	}
}
