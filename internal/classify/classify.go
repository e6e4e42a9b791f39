// Package classify decides whether extracted text is a receipt or a bank statement.
package classify

import (
	"strings"

	"github.com/joseph-ayodele/household-docs/internal/entity"
)

var bankSignals = []string{
	"statement", "balance", "account number", "routing", "iban",
	"opening balance", "closing balance", "transactions",
}

var receiptSignals = []string{
	"subtotal", "tax", "total", "qty", "item", "cashier", "thank you", "change due",
}

// Score counts how many bank and receipt signals occur in text.
func Score(text string) (bank, receipt int) {
	lower := strings.ToLower(text)
	for _, kw := range bankSignals {
		if strings.Contains(lower, kw) {
			bank++
		}
	}
	for _, kw := range receiptSignals {
		if strings.Contains(lower, kw) {
			receipt++
		}
	}
	return bank, receipt
}

// Classify returns DocumentBankStatement only when bank signals strictly
// outnumber receipt signals.
func Classify(text string) entity.DocumentType {
	bank, receipt := Score(text)
	if bank > receipt {
		return entity.DocumentBankStatement
	}
	return entity.DocumentReceipt
}
