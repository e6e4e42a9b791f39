// Package export writes structured results to XLSX workbooks.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/pipeline"
	"github.com/joseph-ayodele/household-docs/internal/repository"
)

const (
	SheetReceipts     = "Receipts"
	SheetItems        = "Items"
	SheetTransactions = "Transactions"
)

type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ResultsXLSX renders pipeline results: receipts with their items, and
// statement transactions. Sheets without rows are left out.
func (s *Service) ResultsXLSX(results []*pipeline.Result) ([]byte, error) {
	start := time.Now()
	w := newWorkbook()
	defer w.close(s.logger)

	for _, res := range results {
		if res == nil {
			continue
		}
		switch {
		case res.Receipt != nil:
			r := res.Receipt
			if err := w.append(SheetReceipts, receiptHeaders,
				r.Merchant, dateCell(r.Date), money(r.Total), money(r.Tax), len(r.Items), string(res.Method)); err != nil {
				return nil, err
			}
			for _, it := range r.Items {
				unit := ""
				if it.Unit != nil {
					unit = *it.Unit
				}
				if err := w.append(SheetItems, itemHeaders,
					r.Merchant, dateCell(r.Date), it.Name, it.Quantity.InexactFloat64(), unit,
					money(it.Price), it.Category, dateCell(it.ExpiryDate)); err != nil {
					return nil, err
				}
			}
		case res.Statement != nil:
			st := res.Statement
			for _, tx := range st.Transactions {
				if err := w.append(SheetTransactions, transactionHeaders,
					tx.Date.String(), tx.Description, money(tx.Amount), tx.Category,
					tx.IsIncome, tx.IsSubscription, st.BankName); err != nil {
					return nil, err
				}
			}
		}
	}

	buf, err := w.bytes()
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"results", len(results),
		"bytes", len(buf),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf, nil
}

// TransactionsXLSX renders stored transactions, including reconciliation links.
func (s *Service) TransactionsXLSX(txs []repository.StoredTransaction) ([]byte, error) {
	w := newWorkbook()
	defer w.close(s.logger)

	headers := append(append([]string{}, transactionHeaders[:6]...), "Linked Receipt")
	for _, tx := range txs {
		linked := ""
		if tx.LinkedReceiptID != nil {
			linked = *tx.LinkedReceiptID
		}
		if err := w.append(SheetTransactions, headers,
			tx.Date.String(), tx.Description, money(tx.Amount), tx.Category,
			tx.IsIncome, tx.IsSubscription, linked); err != nil {
			return nil, err
		}
	}
	return w.bytes()
}

var (
	receiptHeaders     = []string{"Merchant", "Date", "Total", "Tax", "Items", "Method"}
	itemHeaders        = []string{"Merchant", "Date", "Item", "Quantity", "Unit", "Price", "Category", "Expiry Date"}
	transactionHeaders = []string{"Date", "Description", "Amount", "Category", "Income", "Subscription", "Bank"}
)

// workbook tracks the next free row per sheet and creates sheets lazily.
type workbook struct {
	f    *excelize.File
	rows map[string]int
}

func newWorkbook() *workbook {
	return &workbook{f: excelize.NewFile(), rows: map[string]int{}}
}

func (w *workbook) append(sheet string, headers []string, values ...interface{}) error {
	row, ok := w.rows[sheet]
	if !ok {
		if err := w.addSheet(sheet); err != nil {
			return err
		}
		hdr := make([]interface{}, len(headers))
		for i, h := range headers {
			hdr[i] = h
		}
		if err := w.f.SetSheetRow(sheet, "A1", &hdr); err != nil {
			return err
		}
		row = 2
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	w.rows[sheet] = row + 1
	return nil
}

// addSheet renames the default sheet for the first one.
func (w *workbook) addSheet(sheet string) error {
	if len(w.rows) == 0 {
		if err := w.f.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
		_ = w.f.SetColWidth(sheet, "A", "B", 22)
		return nil
	}
	if _, err := w.f.NewSheet(sheet); err != nil {
		return err
	}
	_ = w.f.SetColWidth(sheet, "A", "B", 22)
	return nil
}

func (w *workbook) bytes() ([]byte, error) {
	buf, err := w.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *workbook) close(logger *slog.Logger) {
	if err := w.f.Close(); err != nil {
		logger.Warn("export.xlsx.close_failed", "error", err)
	}
}

func dateCell(d *entity.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func money(d interface{ StringFixed(int32) string }) string {
	return d.StringFixed(2)
}
