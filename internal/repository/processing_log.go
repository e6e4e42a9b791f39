package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/household-docs/internal/entity"
)

const processingLogTable = "document_processing_log"

type ProcessingLogRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewProcessingLogRepository(db *DB, logger *slog.Logger) *ProcessingLogRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessingLogRepository{db: db, logger: logger}
}

// Record appends one audit row.
func (r *ProcessingLogRepository) Record(ctx context.Context, e entity.ProcessingLogEntry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	q, args := r.db.builder().Insert(processingLogTable).
		Columns("file_name", "document_type", "processing_method", "success", "processing_duration_ms", "error_message", "created_at").
		Values(e.FileName, string(e.DocumentType), e.Method, e.Success, e.Duration.Milliseconds(), e.Error, created.UTC()).
		Query()
	return r.db.drv.Exec(ctx, q, args, nil)
}

// Recent returns the newest rows first.
func (r *ProcessingLogRepository) Recent(ctx context.Context, limit int) ([]entity.ProcessingLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	b := r.db.builder()
	q, args := b.Select("file_name", "document_type", "processing_method", "success", "processing_duration_ms", "error_message", "created_at").
		From(b.Table(processingLogTable)).
		OrderBy(entsql.Desc("id")).
		Limit(limit).
		Query()

	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, q, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.ProcessingLogEntry
	for rows.Next() {
		var (
			e        entity.ProcessingLogEntry
			docType  string
			ms       int64
			errMsg   *string
			createdV any
		)
		if err := rows.Scan(&e.FileName, &docType, &e.Method, &e.Success, &ms, &errMsg, &createdV); err != nil {
			return nil, err
		}
		e.DocumentType = entity.DocumentType(docType)
		e.Duration = time.Duration(ms) * time.Millisecond
		e.Error = errMsg
		e.CreatedAt, _ = asTime(createdV)
		out = append(out, e)
	}
	return out, rows.Err()
}
