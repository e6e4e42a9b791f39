package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/household-docs/internal/entity"
)

const receiptsTable = "receipts"

// Reconciliation tolerances.
var (
	MatchWindowDays = 1
	MatchTolerance  = decimal.RequireFromString("0.50")
)

type ReceiptRepository struct {
	db     *DB
	txs    *TransactionRepository
	logger *slog.Logger
}

func NewReceiptRepository(db *DB, logger *slog.Logger) *ReceiptRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptRepository{db: db, txs: NewTransactionRepository(db, logger), logger: logger}
}

// Save stores a structured receipt and returns its id.
func (r *ReceiptRepository) Save(ctx context.Context, householdID string, rec entity.StructuredReceipt) (string, error) {
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}
	var purchase *string
	if rec.Date != nil {
		s := rec.Date.String()
		purchase = &s
	}
	id := uuid.New().String()
	q, args := r.db.builder().Insert(receiptsTable).
		Columns("id", "household_id", "merchant_name", "purchase_date", "total_amount", "tax_amount", "items", "created_at").
		Values(id, householdID, rec.Merchant, purchase, rec.Total.StringFixed(2), rec.Tax.StringFixed(2), string(items), time.Now().UTC()).
		Query()
	if err := r.db.drv.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("receipt save failed", "household_id", householdID, "error", err)
		return "", err
	}
	r.logger.Info("receipt saved", "receipt_id", id, "household_id", householdID, "items", len(rec.Items))
	return id, nil
}

type storedReceipt struct {
	id    string
	date  entity.Date
	total decimal.Decimal
}

// Reconcile links unlinked debits to receipts whose purchase date is within
// a day and whose total differs from the debit's magnitude by less than
// MatchTolerance. Each debit takes the first matching receipt in storage
// order; matched receipts are marked reconciled.
func (r *ReceiptRepository) Reconcile(ctx context.Context, householdID string) (entity.ReconcileResult, error) {
	var res entity.ReconcileResult
	err := r.db.withTx(ctx, func(eq dialect.ExecQuerier) error {
		debits, err := r.txs.unlinkedDebits(ctx, eq, householdID)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		receipts, err := r.datedReceipts(ctx, eq, householdID)
		if err != nil {
			return fmt.Errorf("load receipts: %w", err)
		}

		for _, d := range debits {
			rec, ok := matchReceipt(d, receipts)
			if !ok {
				continue
			}
			if err := r.link(ctx, eq, d.id, rec.id); err != nil {
				return err
			}
			res.Matched++
		}
		res.Unmatched = len(debits) - res.Matched
		return nil
	})
	if err != nil {
		return entity.ReconcileResult{}, err
	}
	r.logger.Info("reconcile done", "household_id", householdID, "matched", res.Matched, "unmatched", res.Unmatched)
	return res, nil
}

func matchReceipt(d unlinkedDebit, receipts []storedReceipt) (storedReceipt, bool) {
	for _, rec := range receipts {
		if d.date.DaysBetween(rec.date) > MatchWindowDays {
			continue
		}
		if d.amount.Abs().Sub(rec.total).Abs().LessThan(MatchTolerance) {
			return rec, true
		}
	}
	return storedReceipt{}, false
}

func (r *ReceiptRepository) datedReceipts(ctx context.Context, eq dialect.ExecQuerier, householdID string) ([]storedReceipt, error) {
	b := r.db.builder()
	q, args := b.Select("id", "purchase_date", "total_amount").
		From(b.Table(receiptsTable)).
		Where(entsql.And(
			entsql.EQ("household_id", householdID),
			entsql.NotNull("purchase_date"),
		)).
		OrderBy(entsql.Asc("created_at")).
		Query()

	rows := &entsql.Rows{}
	if err := eq.Query(ctx, q, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storedReceipt
	for rows.Next() {
		var (
			s     storedReceipt
			dateV any
		)
		if err := rows.Scan(&s.id, &dateV, &s.total); err != nil {
			return nil, err
		}
		if s.total.IsZero() {
			continue
		}
		d, err := asDate(dateV)
		if err != nil {
			return nil, err
		}
		s.date = d
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ReceiptRepository) link(ctx context.Context, eq dialect.ExecQuerier, txID, receiptID string) error {
	b := r.db.builder()
	q, args := b.Update(transactionsTable).
		Set("linked_receipt_id", receiptID).
		Where(entsql.EQ("id", txID)).
		Query()
	if err := eq.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("link transaction %s: %w", txID, err)
	}
	q, args = b.Update(receiptsTable).
		Set("is_reconciled", true).
		Where(entsql.EQ("id", receiptID)).
		Query()
	if err := eq.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("mark receipt %s reconciled: %w", receiptID, err)
	}
	return nil
}
