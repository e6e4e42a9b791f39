package ingest

import (
	"context"

	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/pipeline"
)

type ReceiptSaver interface {
	Save(ctx context.Context, householdID string, rec entity.StructuredReceipt) (string, error)
}

type TransactionImporter interface {
	Import(ctx context.Context, householdID string, txs []entity.Transaction) (entity.ImportResult, error)
}

// StoreSink saves receipts and imports statement transactions.
type StoreSink struct {
	Receipts     ReceiptSaver
	Transactions TransactionImporter
}

func (s StoreSink) Persist(ctx context.Context, householdID string, res *pipeline.Result) (Persisted, error) {
	var out Persisted
	switch {
	case res.Receipt != nil && s.Receipts != nil:
		id, err := s.Receipts.Save(ctx, householdID, *res.Receipt)
		if err != nil {
			return out, err
		}
		out.ReceiptID = id
	case res.Statement != nil && s.Transactions != nil:
		ir, err := s.Transactions.Import(ctx, householdID, res.Statement.Transactions)
		if err != nil {
			return out, err
		}
		out.Import = &ir
	}
	return out, nil
}
