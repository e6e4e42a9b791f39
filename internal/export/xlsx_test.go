package export

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/household-docs/constants"
	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/pipeline"
	"github.com/joseph-ayodele/household-docs/internal/repository"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func open(t *testing.T, b []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestResultsXLSX(t *testing.T) {
	d := entity.NewDate(2026, 1, 15)
	exp := d.AddDays(7)
	results := []*pipeline.Result{
		{
			DocumentType: entity.DocumentReceipt,
			Method:       constants.MethodOCRModel,
			Receipt: &entity.StructuredReceipt{
				Merchant: "STORE A", Date: &d, Total: dec("6.49"), Tax: dec("0"),
				Items: []entity.LineItem{
					{Name: "MILK", Price: dec("3.99"), Quantity: dec("1"), Category: "Dairy", ExpiryDate: &exp},
					{Name: "BREAD", Price: dec("2.5"), Quantity: dec("2"), Category: "Bakery"},
				},
			},
		},
		{
			DocumentType: entity.DocumentBankStatement,
			Method:       constants.MethodNativeFallback,
			Statement: &entity.StructuredStatement{
				BankName: "ACME",
				Transactions: []entity.Transaction{
					{Date: d, Description: "STARBUCKS", Amount: dec("-5.5"), Category: "Dining"},
				},
			},
		},
	}

	b, err := NewService(nil).ResultsXLSX(results)
	require.NoError(t, err)
	f := open(t, b)

	assert.Equal(t, []string{SheetReceipts, SheetItems, SheetTransactions}, f.GetSheetList())

	rows, err := f.GetRows(SheetReceipts)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, receiptHeaders, rows[0])
	assert.Equal(t, []string{"STORE A", "2026-01-15", "6.49", "0.00", "2", "ocr+model"}, rows[1])

	items, err := f.GetRows(SheetItems)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "2026-01-22", items[1][7])
	assert.Equal(t, "2.50", items[2][5])

	txs, err := f.GetRows(SheetTransactions)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, []string{"2026-01-15", "STARBUCKS", "-5.50", "Dining", "FALSE", "FALSE", "ACME"}, txs[1])
}

func TestTransactionsXLSX(t *testing.T) {
	rid := "r-1"
	b, err := NewService(nil).TransactionsXLSX([]repository.StoredTransaction{
		{ID: "t-1", LinkedReceiptID: &rid, Transaction: entity.Transaction{
			Date: entity.NewDate(2026, 1, 16), Description: "STORE A POS", Amount: dec("-6.80"), Category: "Groceries",
		}},
	})
	require.NoError(t, err)
	f := open(t, b)

	rows, err := f.GetRows(SheetTransactions)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Linked Receipt", rows[0][6])
	assert.Equal(t, "r-1", rows[1][6])
}
