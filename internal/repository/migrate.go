package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS category_overrides (
		id BIGSERIAL PRIMARY KEY,
		household_id TEXT NOT NULL,
		item_name TEXT NOT NULL,
		category TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (household_id, item_name)
	)`,
	`CREATE TABLE IF NOT EXISTS document_processing_log (
		id BIGSERIAL PRIMARY KEY,
		file_name TEXT NOT NULL,
		document_type TEXT NOT NULL,
		processing_method TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		processing_duration_ms BIGINT NOT NULL,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS receipts (
		id UUID PRIMARY KEY,
		household_id TEXT NOT NULL,
		merchant_name TEXT NOT NULL,
		purchase_date DATE,
		total_amount NUMERIC(10,2) NOT NULL,
		tax_amount NUMERIC(10,2) NOT NULL DEFAULT 0,
		items JSONB NOT NULL,
		is_reconciled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS bank_transactions (
		id UUID PRIMARY KEY,
		household_id TEXT NOT NULL,
		transaction_date DATE NOT NULL,
		description TEXT NOT NULL,
		amount NUMERIC(10,2) NOT NULL,
		category TEXT,
		is_income BOOLEAN NOT NULL DEFAULT FALSE,
		is_subscription BOOLEAN NOT NULL DEFAULT FALSE,
		linked_receipt_id UUID REFERENCES receipts(id),
		raw_description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (household_id, transaction_date, description, amount)
	)`,
	`CREATE INDEX IF NOT EXISTS bank_transactions_household_date_idx
		ON bank_transactions (household_id, transaction_date DESC)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS category_overrides (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		household_id TEXT NOT NULL,
		item_name TEXT NOT NULL,
		category TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (household_id, item_name)
	)`,
	`CREATE TABLE IF NOT EXISTS document_processing_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_name TEXT NOT NULL,
		document_type TEXT NOT NULL,
		processing_method TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		processing_duration_ms INTEGER NOT NULL,
		error_message TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS receipts (
		id TEXT PRIMARY KEY,
		household_id TEXT NOT NULL,
		merchant_name TEXT NOT NULL,
		purchase_date TEXT,
		total_amount NUMERIC NOT NULL,
		tax_amount NUMERIC NOT NULL DEFAULT 0,
		items TEXT NOT NULL,
		is_reconciled BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS bank_transactions (
		id TEXT PRIMARY KEY,
		household_id TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		description TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		category TEXT,
		is_income BOOLEAN NOT NULL DEFAULT 0,
		is_subscription BOOLEAN NOT NULL DEFAULT 0,
		linked_receipt_id TEXT REFERENCES receipts(id),
		raw_description TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (household_id, transaction_date, description, amount)
	)`,
	`CREATE INDEX IF NOT EXISTS bank_transactions_household_date_idx
		ON bank_transactions (household_id, transaction_date DESC)`,
}

// Migrate creates the tables this service owns. It is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := postgresSchema
	if d.Dialect() == dialect.SQLite {
		stmts = sqliteSchema
	}
	for i, stmt := range stmts {
		if err := d.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	d.logger.Info("database migrated", "dialect", d.Dialect(), "statements", len(stmts))
	return nil
}
