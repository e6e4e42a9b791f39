package entity

import (
	"github.com/shopspring/decimal"
)

const UnknownBank = "Unknown"

// Transaction is one bank statement line. Debits are negative, credits positive.
type Transaction struct {
	Date           Date            `json:"date"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Category       string          `json:"category"`
	IsIncome       bool            `json:"is_income"`
	IsSubscription bool            `json:"is_subscription"`
	RawLine        string          `json:"-"`
}

type StatementPeriod struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// StructuredStatement is the structured form of a bank statement.
type StructuredStatement struct {
	BankName       string           `json:"bank_name"`
	AccountLast4   *string          `json:"account_last4"`
	Period         *StatementPeriod `json:"statement_period"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	ClosingBalance decimal.Decimal  `json:"closing_balance"`
	Transactions   []Transaction    `json:"transactions"`
}

// ImportResult summarizes a transaction import at the persistence boundary.
type ImportResult struct {
	Inserted      int           `json:"transactions_imported"`
	Duplicates    int           `json:"duplicates_skipped"`
	Subscriptions []Transaction `json:"subscriptions_found"`
}

// ReconcileResult summarizes a receipt/transaction matching pass.
type ReconcileResult struct {
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
}
