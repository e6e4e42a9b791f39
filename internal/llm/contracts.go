package llm

import (
	"context"

	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/learn"
)

// Model is a text-in, text-out language model backend.
type Model interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Request is the input to one structuring call.
type Request struct {
	Text    string
	Type    entity.DocumentType
	Learned learn.Mappings
}

// Payload is the decoded model output: *ReceiptPayload or *StatementPayload.
type Payload interface {
	DocumentType() entity.DocumentType
}

// ReceiptPayload is the receipt shape the model is asked to return.
type ReceiptPayload struct {
	Merchant OptString         `json:"merchant"`
	Date     OptString         `json:"date"`
	Total    OptDecimal        `json:"total"`
	Tax      OptDecimal        `json:"tax"`
	Items    List[ItemPayload] `json:"items"`
}

func (*ReceiptPayload) DocumentType() entity.DocumentType { return entity.DocumentReceipt }

type ItemPayload struct {
	Name     OptString  `json:"name"`
	Price    OptDecimal `json:"price"`
	Quantity OptDecimal `json:"quantity"`
	Unit     OptString  `json:"unit"`
	Category OptString  `json:"category"`
}

// StatementPayload is the bank statement shape the model is asked to return.
type StatementPayload struct {
	BankName       OptString                `json:"bank_name"`
	AccountLast4   OptString                `json:"account_number_last4"`
	Period         Object[PeriodPayload]    `json:"statement_period"`
	OpeningBalance OptDecimal               `json:"opening_balance"`
	ClosingBalance OptDecimal               `json:"closing_balance"`
	Transactions   List[TransactionPayload] `json:"transactions"`
}

func (*StatementPayload) DocumentType() entity.DocumentType { return entity.DocumentBankStatement }

type PeriodPayload struct {
	Start OptString `json:"start"`
	End   OptString `json:"end"`
}

type TransactionPayload struct {
	Date        OptString  `json:"date"`
	Description OptString  `json:"description"`
	Amount      OptDecimal `json:"amount"`
	Category    OptString  `json:"category"`
	IsIncome    OptBool    `json:"is_income"`
}
