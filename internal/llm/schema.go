package llm

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/household-docs/internal/entity"
)

// Only the top-level shape is enforced; field values are coerced by the Opt
// types during decoding.
var (
	receiptShape = jsonschema.MustCompileString("receipt.json", `{
		"type": "object",
		"properties": {
			"items": {"type": ["array", "null"]}
		},
		"anyOf": [
			{"required": ["merchant"]},
			{"required": ["items"]},
			{"required": ["total"]}
		]
	}`)
	statementShape = jsonschema.MustCompileString("statement.json", `{
		"type": "object",
		"required": ["transactions"],
		"properties": {
			"transactions": {"type": "array"}
		}
	}`)
)

// Decode parses cleaned model output into a payload for the document type.
// Syntax errors are returned exactly as encoding/json reports them.
func Decode(t entity.DocumentType, cleaned string) (Payload, error) {
	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, err
	}
	shape := receiptShape
	if t == entity.DocumentBankStatement {
		shape = statementShape
	}
	if err := shape.Validate(v); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}

	if t == entity.DocumentBankStatement {
		var p StatementPayload
		if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
			return nil, err
		}
		return &p, nil
	}
	var p ReceiptPayload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
