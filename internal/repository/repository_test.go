package repository

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/learn"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "docs.db"),
	}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tx(date entity.Date, desc, amount string) entity.Transaction {
	a := dec(amount)
	return entity.Transaction{
		Date:        date,
		Description: desc,
		Amount:      a,
		Category:    "Other",
		IsIncome:    a.IsPositive(),
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))
	require.NoError(t, db.HealthCheck(context.Background(), time.Second))
}

func TestOverrideUpsertKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewOverrideRepository(openTestDB(t), quietLogger())
	learner := learn.New(repo, quietLogger())

	require.NoError(t, learner.Upsert(ctx, "h1", "Trader Joe's Milk", "Beverages"))
	require.NoError(t, learner.Upsert(ctx, "h1", "bread", "Bakery"))
	require.NoError(t, learner.Upsert(ctx, "h1", "  TRADER JOE'S MILK ", "Dairy"))
	require.NoError(t, learner.Upsert(ctx, "h2", "bread", "Other"))

	got, err := learner.GetAll(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, learn.Mappings{
		{Name: "trader joe's milk", Category: "Dairy"},
		{Name: "bread", Category: "Bakery"},
	}, got)

	cat, ok := got.Match("Trader Joe's Milk 2%")
	assert.True(t, ok)
	assert.Equal(t, "Dairy", cat)
}

func TestProcessingLogRecord(t *testing.T) {
	ctx := context.Background()
	repo := NewProcessingLogRepository(openTestDB(t), quietLogger())

	msg := "text extraction failed"
	require.NoError(t, repo.Record(ctx, entity.ProcessingLogEntry{
		FileName: "a.png", DocumentType: entity.DocumentReceipt, Method: "", Success: false,
		Duration: 1500 * time.Millisecond, Error: &msg,
	}))
	require.NoError(t, repo.Record(ctx, entity.ProcessingLogEntry{
		FileName: "b.pdf", DocumentType: entity.DocumentBankStatement, Method: "native+fallback", Success: true,
		Duration: 20 * time.Millisecond,
	}))

	rows, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b.pdf", rows[0].FileName)
	assert.True(t, rows[0].Success)
	assert.Nil(t, rows[0].Error)
	assert.Equal(t, "a.png", rows[1].FileName)
	require.NotNil(t, rows[1].Error)
	assert.Equal(t, msg, *rows[1].Error)
	assert.Equal(t, 1500*time.Millisecond, rows[1].Duration)
}

func TestImportTwiceAddsNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository(openTestDB(t), quietLogger())

	d := entity.NewDate(2026, time.January, 15)
	stmt := []entity.Transaction{
		tx(d, "STARBUCKS #123", "-5.50"),
		tx(d, "PAYROLL ACME", "2000.00"),
		tx(d.AddDays(1), "NETFLIX.COM", "-15.49"),
	}
	stmt[2].IsSubscription = true

	first, err := repo.Import(ctx, "h1", stmt)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)
	assert.Zero(t, first.Duplicates)
	require.Len(t, first.Subscriptions, 1)
	assert.Equal(t, "NETFLIX.COM", first.Subscriptions[0].Description)

	second, err := repo.Import(ctx, "h1", stmt)
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 3, second.Duplicates)

	other, err := repo.Import(ctx, "h2", stmt[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, other.Inserted)

	listed, err := repo.List(ctx, "h1", 0)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "NETFLIX.COM", listed[0].Description)
	assert.Equal(t, "2026-01-16", listed[0].Date.String())
	assert.True(t, listed[0].IsSubscription)
	assert.True(t, dec("-15.49").Equal(listed[0].Amount))
	assert.Nil(t, listed[0].LinkedReceiptID)
}

func TestImportDuplicateWithinBatch(t *testing.T) {
	repo := NewTransactionRepository(openTestDB(t), quietLogger())
	d := entity.NewDate(2026, time.January, 15)

	res, err := repo.Import(context.Background(), "h1", []entity.Transaction{
		tx(d, "COFFEE", "-3.00"),
		tx(d, "COFFEE", "-3.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Duplicates)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	receipts := NewReceiptRepository(db, quietLogger())
	txs := NewTransactionRepository(db, quietLogger())

	d := entity.NewDate(2026, time.January, 15)
	_, err := receipts.Save(ctx, "h1", entity.StructuredReceipt{
		Merchant: "STORE A", Date: &d, Total: dec("6.49"),
		Items: []entity.LineItem{{Name: "MILK", Price: dec("3.99"), Quantity: dec("1"), Category: "Dairy"}},
	})
	require.NoError(t, err)
	_, err = receipts.Save(ctx, "h1", entity.StructuredReceipt{Merchant: "NO DATE", Total: dec("20.00")})
	require.NoError(t, err)

	_, err = txs.Import(ctx, "h1", []entity.Transaction{
		tx(d.AddDays(1), "STORE A POS", "-6.80"),   // within a day and 0.31 off
		tx(d, "OTHER SHOP", "-9.00"),               // amount too far
		tx(d.AddDays(3), "STORE A AGAIN", "-6.49"), // date too far
		tx(d, "REFUND", "6.49"),                    // income, never a candidate
	})
	require.NoError(t, err)

	res, err := receipts.Reconcile(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 2, res.Unmatched)

	listed, err := txs.List(ctx, "h1", 0)
	require.NoError(t, err)
	linked := 0
	for _, st := range listed {
		if st.LinkedReceiptID != nil {
			linked++
			assert.Equal(t, "STORE A POS", st.Description)
		}
	}
	assert.Equal(t, 1, linked)

	again, err := receipts.Reconcile(ctx, "h1")
	require.NoError(t, err)
	assert.Zero(t, again.Matched)
	assert.Equal(t, 2, again.Unmatched)
}

func TestMatchReceiptBoundaries(t *testing.T) {
	d := entity.NewDate(2026, time.January, 15)
	recs := []storedReceipt{{id: "r1", date: d, total: dec("10.00")}}

	_, ok := matchReceipt(unlinkedDebit{date: d.AddDays(-1), amount: dec("-10.49")}, recs)
	assert.True(t, ok)
	_, ok = matchReceipt(unlinkedDebit{date: d, amount: dec("-10.50")}, recs)
	assert.False(t, ok, "difference must be strictly below the tolerance")
	_, ok = matchReceipt(unlinkedDebit{date: d.AddDays(2), amount: dec("-10.00")}, recs)
	assert.False(t, ok)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"}, quietLogger())
	assert.Error(t, err)
}
