package pipeline

import (
	"bytes"
	"encoding/json"

	"github.com/joseph-ayodele/household-docs/constants"
	"github.com/joseph-ayodele/household-docs/internal/entity"
)

// Request is one document to process.
type Request struct {
	Path         string
	ContentType  string
	DeclaredType entity.DocumentType
	HouseholdID  string
}

// Result is the structured output of one pipeline run. Exactly one of
// Receipt and Statement is set.
type Result struct {
	DocumentType entity.DocumentType
	Method       constants.ProcessingMethod
	Extraction   entity.ExtractedText
	Receipt      *entity.StructuredReceipt
	Statement    *entity.StructuredStatement
	// FallbackReason is set when the model was configured but gave up.
	FallbackReason string
}

// UsedModel reports whether the model path produced the result.
func (r *Result) UsedModel() bool {
	return r.Method == constants.MethodNativeModel || r.Method == constants.MethodOCRModel
}

// MarshalJSON flattens the record and adds the _method and _doc_type tags.
func (r Result) MarshalJSON() ([]byte, error) {
	var body any = r.Receipt
	if r.DocumentType == entity.DocumentBankStatement {
		body = r.Statement
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	if fields["_method"], err = json.Marshal(r.Method); err != nil {
		return nil, err
	}
	if fields["_doc_type"], err = json.Marshal(r.DocumentType); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}
