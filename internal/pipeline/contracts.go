package pipeline

import (
	"context"
	"time"

	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/learn"
	"github.com/joseph-ayodele/household-docs/internal/llm"
)

// TextExtractor is the extraction stage; *ocr.Extractor satisfies it.
type TextExtractor interface {
	ExtractDocument(ctx context.Context, doc entity.RawDocument) (entity.ExtractedText, error)
}

// Structurer is the model stage; *llm.Structurer satisfies it.
type Structurer interface {
	Structure(ctx context.Context, req llm.Request) (llm.Payload, error)
	ModelName() string
}

// MappingSource loads a household's learned categories; *learn.Learner
// satisfies it.
type MappingSource interface {
	GetAll(ctx context.Context, householdID string) (learn.Mappings, error)
}

// LogRecorder persists processing log rows.
type LogRecorder interface {
	Record(ctx context.Context, e entity.ProcessingLogEntry) error
}

// TextCache stores extracted text keyed by content hash. A miss is
// (zero, false, nil).
type TextCache interface {
	Get(ctx context.Context, key string) (entity.ExtractedText, bool, error)
	Set(ctx context.Context, key string, text entity.ExtractedText) error
}

// Recorder receives one call per processed document.
type Recorder interface {
	ObserveDocument(docType entity.DocumentType, method string, success bool, elapsed time.Duration)
}
