package llm

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/household-docs/constants"
	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/learn"
)

// MaxLearnedHints caps how many household mappings go into a receipt prompt.
const MaxLearnedHints = 20

// maxEchoedOutput caps the invalid output echoed back in a correction prompt.
const maxEchoedOutput = 1000

const receiptSchemaExample = `{"merchant":"Store","date":"YYYY-MM-DD","total":45.99,"tax":3.20,"items":[{"name":"Item","price":4.99,"quantity":1,"category":"Produce"}]}`

const statementSchemaExample = `{"bank_name":"Bank","account_number_last4":"1234","transactions":[{"date":"YYYY-MM-DD","description":"Desc","amount":-5.50,"category":"Dining","is_income":false}]}`

// SchemaExample returns the one-line JSON example for a document type.
func SchemaExample(t entity.DocumentType) string {
	if t == entity.DocumentBankStatement {
		return statementSchemaExample
	}
	return receiptSchemaExample
}

// BuildPrompt renders the prompt for a loop state. Attempting states use the
// document prompt; Correcting states echo the parse error and bad output.
func BuildPrompt(state State, req Request) string {
	if state.Phase == PhaseCorrecting {
		return CorrectionPrompt(req.Type, state.Err, state.Output)
	}
	if req.Type == entity.DocumentBankStatement {
		return StatementPrompt(req.Text)
	}
	return ReceiptPrompt(req.Text, req.Learned)
}

// CorrectionPrompt asks the model to repair its previous output.
func CorrectionPrompt(t entity.DocumentType, parseErr error, output string) string {
	msg := ""
	if parseErr != nil {
		msg = parseErr.Error()
	}
	output = cutRunes(output, maxEchoedOutput)
	return fmt.Sprintf("Previous output was invalid JSON. Error: %s\n"+
		"Incorrect Output: %s\n\n"+
		"Fix the syntax and return ONLY the valid JSON object.\n"+
		"Original Schema: %s", msg, output, SchemaExample(t))
}

func ReceiptPrompt(text string, learned learn.Mappings) string {
	var hint string
	if hints := learned.Hints(MaxLearnedHints); len(hints) > 0 {
		examples := make([]string, 0, len(hints))
		for _, h := range hints {
			examples = append(examples, fmt.Sprintf("%q → %s", h.Name, h.Category))
		}
		hint = "\n7. This household previously categorized: " + strings.Join(examples, ", ") + ". Prefer these mappings."
	}

	return `You are a precise receipt parser.

Given the raw OCR text of a store receipt, extract structured data.

Return ONLY a JSON object with this exact schema:
{
  "merchant": "Store Name",
  "date": "YYYY-MM-DD",
  "total": 45.99,
  "tax": 3.20,
  "items": [
    {"name": "Item Name", "price": 4.99, "quantity": 1, "category": "Produce"}
  ]
}

Rules:
1. No currency symbols in numbers (use 10.50 not $10.50).
2. Dates MUST be YYYY-MM-DD format.
3. Fix obvious OCR typos (e.g., 'S10.00' → 10.00, '0range' → 'Orange').
4. Categorize each item into one of: ` + strings.Join(constants.ReceiptCategories(), ", ") + `.
5. If total is missing, sum the item prices.
6. If date is missing, use null.` + hint + `

RAW TEXT:
` + text
}

func StatementPrompt(text string) string {
	return `You are a precise bank statement parser.

Given the raw OCR text of a bank statement, extract ALL transactions.

Return ONLY a JSON object with this exact schema:
{
  "bank_name": "Bank Name",
  "account_number_last4": "1234",
  "statement_period": {"start": "YYYY-MM-DD", "end": "YYYY-MM-DD"},
  "opening_balance": 1200.00,
  "closing_balance": 980.50,
  "transactions": [
    {
      "date": "YYYY-MM-DD",
      "description": "STARBUCKS #12345",
      "amount": -5.50,
      "category": "Dining",
      "is_income": false
    }
  ]
}

Rules:
1. No currency symbols in numbers.
2. Dates MUST be YYYY-MM-DD format.
3. Debits/purchases are NEGATIVE amounts. Credits/deposits are POSITIVE.
4. Fix OCR typos in merchant names.
5. Categorize each transaction into one of: ` + strings.Join(constants.StatementCategories(), ", ") + `.
6. Set is_income=true for credits/deposits/salary/payment received.

RAW TEXT:
` + text
}
