package entity

import (
	"time"
)

// ProcessingLogEntry is an audit row written after every pipeline run.
type ProcessingLogEntry struct {
	FileName     string        `json:"file_name"`
	DocumentType DocumentType  `json:"document_type"`
	Method       string        `json:"processing_method"`
	Success      bool          `json:"success"`
	Duration     time.Duration `json:"duration"`
	Error        *string       `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
