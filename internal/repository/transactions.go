package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/fallback"
)

const (
	transactionsTable = "bank_transactions"

	// DefaultListLimit caps List when no limit is given.
	DefaultListLimit = 200
)

// StoredTransaction is a persisted transaction with its row id and the
// receipt it was reconciled against, if any.
type StoredTransaction struct {
	ID              string  `json:"id"`
	LinkedReceiptID *string `json:"linked_receipt_id"`
	entity.Transaction
}

type TransactionRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewTransactionRepository(db *DB, logger *slog.Logger) *TransactionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionRepository{db: db, logger: logger}
}

// Import inserts txs for the household in one transaction. Rows equal to
// an existing (date, description, amount) for the household are skipped and
// counted as duplicates, so importing the same statement twice adds nothing.
func (r *TransactionRepository) Import(ctx context.Context, householdID string, txs []entity.Transaction) (entity.ImportResult, error) {
	res := entity.ImportResult{Subscriptions: fallback.Subscriptions(txs)}
	if householdID == "" {
		return res, fmt.Errorf("import transactions: household id is required")
	}
	now := time.Now().UTC()

	err := r.db.withTx(ctx, func(eq dialect.ExecQuerier) error {
		for _, tx := range txs {
			q, args := r.db.builder().Insert(transactionsTable).
				Columns("id", "household_id", "transaction_date", "description", "amount",
					"category", "is_income", "is_subscription", "raw_description", "created_at").
				Values(uuid.New().String(), householdID, tx.Date.String(), tx.Description, tx.Amount.StringFixed(2),
					tx.Category, tx.IsIncome, tx.IsSubscription, nullable(tx.RawLine), now).
				OnConflict(
					entsql.ConflictColumns("household_id", "transaction_date", "description", "amount"),
					entsql.DoNothing(),
				).
				Query()

			var result entsql.Result
			if err := eq.Exec(ctx, q, args, &result); err != nil {
				return fmt.Errorf("insert transaction %q: %w", tx.Description, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				res.Duplicates++
				continue
			}
			res.Inserted++
		}
		return nil
	})
	if err != nil {
		r.logger.Error("transaction import failed", "household_id", householdID, "error", err)
		return entity.ImportResult{}, err
	}
	r.logger.Info("transactions imported",
		"household_id", householdID,
		"inserted", res.Inserted,
		"duplicates", res.Duplicates,
		"subscriptions", len(res.Subscriptions),
	)
	return res, nil
}

// List returns the household's newest transactions first.
func (r *TransactionRepository) List(ctx context.Context, householdID string, limit int) ([]StoredTransaction, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	b := r.db.builder()
	q, args := b.Select("id", "transaction_date", "description", "amount", "category",
		"is_income", "is_subscription", "linked_receipt_id").
		From(b.Table(transactionsTable)).
		Where(entsql.EQ("household_id", householdID)).
		OrderBy(entsql.Desc("transaction_date"), entsql.Asc("created_at")).
		Limit(limit).
		Query()

	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, q, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredTransaction
	for rows.Next() {
		var (
			st       StoredTransaction
			dateV    any
			category *string
		)
		if err := rows.Scan(&st.ID, &dateV, &st.Description, &st.Amount, &category,
			&st.IsIncome, &st.IsSubscription, &st.LinkedReceiptID); err != nil {
			return nil, err
		}
		d, err := asDate(dateV)
		if err != nil {
			return nil, err
		}
		st.Date = d
		st.Amount = st.Amount.Round(2)
		if category != nil {
			st.Category = *category
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// unlinkedDebit is a reconciliation candidate.
type unlinkedDebit struct {
	id     string
	date   entity.Date
	amount decimal.Decimal
}

func (r *TransactionRepository) unlinkedDebits(ctx context.Context, eq dialect.ExecQuerier, householdID string) ([]unlinkedDebit, error) {
	b := r.db.builder()
	q, args := b.Select("id", "transaction_date", "amount").
		From(b.Table(transactionsTable)).
		Where(entsql.And(
			entsql.EQ("household_id", householdID),
			entsql.IsNull("linked_receipt_id"),
			entsql.EQ("is_income", false),
		)).
		OrderBy(entsql.Asc("transaction_date"), entsql.Asc("created_at")).
		Query()

	rows := &entsql.Rows{}
	if err := eq.Query(ctx, q, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []unlinkedDebit
	for rows.Next() {
		var (
			u     unlinkedDebit
			dateV any
		)
		if err := rows.Scan(&u.id, &dateV, &u.amount); err != nil {
			return nil, err
		}
		d, err := asDate(dateV)
		if err != nil {
			return nil, err
		}
		u.date = d
		out = append(out, u)
	}
	return out, rows.Err()
}
