package entity

import (
	"fmt"
	"strings"
	"time"
)

// DocumentType is the kind of financial document being processed.
type DocumentType string

const (
	DocumentAuto          DocumentType = ""
	DocumentReceipt       DocumentType = "receipt"
	DocumentBankStatement DocumentType = "bank_statement"
)

// ParseDocumentType accepts the canonical names plus a few aliases; "" and "auto" mean undeclared.
func ParseDocumentType(s string) (DocumentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return DocumentAuto, nil
	case "receipt":
		return DocumentReceipt, nil
	case "bank_statement", "bank", "statement":
		return DocumentBankStatement, nil
	default:
		return DocumentAuto, fmt.Errorf("unknown document type %q", s)
	}
}

// ExtractionMethod records which engine produced the raw text.
type ExtractionMethod string

const (
	ExtractionNative      ExtractionMethod = "NATIVE"
	ExtractionPrimaryOCR  ExtractionMethod = "PRIMARY_OCR"
	ExtractionFallbackOCR ExtractionMethod = "FALLBACK_OCR"
)

// IsNative reports whether no OCR engine was involved.
func (m ExtractionMethod) IsNative() bool { return m == ExtractionNative }

// RawDocument is an uploaded file for the duration of one pipeline call.
type RawDocument struct {
	Path        string
	Ext         string
	ContentType string
}

// ExtractedText is the output of the text extraction stage.
type ExtractedText struct {
	Text     string           `json:"text"`
	Method   ExtractionMethod `json:"method"`
	Pages    int              `json:"pages"`
	Duration time.Duration    `json:"duration"`
}
