// Package pipeline runs one document through extraction, classification
// and structuring, falling back to the deterministic parsers when the model
// is absent or gives up.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/household-docs/constants"
	"github.com/joseph-ayodele/household-docs/internal/classify"
	"github.com/joseph-ayodele/household-docs/internal/common"
	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/fallback"
	"github.com/joseph-ayodele/household-docs/internal/learn"
	"github.com/joseph-ayodele/household-docs/internal/llm"
	"github.com/joseph-ayodele/household-docs/internal/utils"
)

// Processor coordinates text extraction, then model or fallback parsing.
type Processor struct {
	extractor  TextExtractor
	structurer Structurer
	mappings   MappingSource
	logs       LogRecorder
	cache      TextCache
	metrics    Recorder
	receipts   fallback.ReceiptParser
	bank       fallback.BankParser
	now        utils.Clock
	logger     *slog.Logger
}

type Option func(*Processor)

// WithStructurer enables the model path. Without it every document goes
// through the fallback parsers.
func WithStructurer(s Structurer) Option {
	return func(p *Processor) { p.structurer = s }
}

func WithMappings(m MappingSource) Option {
	return func(p *Processor) { p.mappings = m }
}

func WithProcessingLog(l LogRecorder) Option {
	return func(p *Processor) { p.logs = l }
}

func WithTextCache(c TextCache) Option {
	return func(p *Processor) { p.cache = c }
}

func WithRecorder(r Recorder) Option {
	return func(p *Processor) { p.metrics = r }
}

func WithReceiptParser(rp fallback.ReceiptParser) Option {
	return func(p *Processor) { p.receipts = rp }
}

func WithBankParser(bp fallback.BankParser) Option {
	return func(p *Processor) { p.bank = bp }
}

// WithClock sets the clock used for "today" defaults.
func WithClock(c utils.Clock) Option {
	return func(p *Processor) {
		p.now = c
		p.receipts.Now = c
		p.bank.Now = c
	}
}

func NewProcessor(extractor TextExtractor, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{extractor: extractor, logger: logger}
	for _, o := range opts {
		o(p)
	}
	if p.receipts.Now == nil {
		p.receipts.Now = p.now
	}
	if p.bank.Now == nil {
		p.bank.Now = p.now
	}
	return p
}

// Process runs the pipeline for one document. Only extraction failures and
// cancellation are returned as errors; structuring problems end on the
// fallback path.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	v := common.NewValidator().Field("path", req.Path, common.Required)
	if err := v.Error(); err != nil {
		return nil, err
	}
	if req.HouseholdID == "" {
		req.HouseholdID = common.HouseholdIDFromContext(ctx)
	}
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	log := p.logger.With("req_id", rid, "file", filepath.Base(req.Path), "household_id", req.HouseholdID)
	start := time.Now()

	doc := entity.RawDocument{Path: req.Path, Ext: filepath.Ext(req.Path), ContentType: req.ContentType}
	text, err := p.extract(ctx, log, doc)
	if err != nil {
		log.Error("pipeline.extract.failed", "error", err)
		p.finish(ctx, log, req, req.DeclaredType, "", start, err, nil)
		return nil, fmt.Errorf("extract text: %w", err)
	}

	docType := p.documentType(req.DeclaredType, doc, text.Text)
	learned := p.snapshot(ctx, log, req.HouseholdID, docType)

	res := &Result{DocumentType: docType, Extraction: text}
	usedModel := false
	var modelErr error
	if p.structurer != nil {
		payload, err := p.structurer.Structure(ctx, llm.Request{Text: text.Text, Type: docType, Learned: learned})
		var failed *llm.StructuringFailedError
		switch {
		case err == nil:
			p.applyPayload(res, payload, learned)
			usedModel = true
		case errors.As(err, &failed):
			log.Warn("pipeline.structure.fallback",
				"model", p.structurer.ModelName(),
				"reason", failed.Reason,
				"attempts", failed.Attempts,
			)
			res.FallbackReason = string(failed.Reason)
			modelErr = failed
		default:
			p.finish(ctx, log, req, docType, "", start, err, nil)
			return nil, err
		}
	}
	if !usedModel {
		p.applyFallback(res, doc, text.Text, learned)
	}
	if res.Receipt != nil {
		withExpiry(res.Receipt)
	}
	res.Method = constants.ProcessingMethodFor(text.Method.IsNative(), usedModel)

	p.finish(ctx, log, req, docType, res.Method, start, nil, modelErr)
	log.Info("pipeline.process.ok",
		"doc_type", docType,
		"method", res.Method,
		"extraction", text.Method,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// extract consults the text cache before running the extractor. Cache
// errors only cost a re-extraction.
func (p *Processor) extract(ctx context.Context, log *slog.Logger, doc entity.RawDocument) (entity.ExtractedText, error) {
	if p.cache == nil {
		return p.extractor.ExtractDocument(ctx, doc)
	}
	key, err := ContentKey(doc.Path)
	if err != nil {
		return p.extractor.ExtractDocument(ctx, doc)
	}
	if cached, ok, err := p.cache.Get(ctx, key); err != nil {
		log.Warn("pipeline.cache.get_failed", "error", err)
	} else if ok {
		log.Debug("pipeline.cache.hit", "key", key)
		return cached, nil
	}

	text, err := p.extractor.ExtractDocument(ctx, doc)
	if err != nil {
		return text, err
	}
	if err := p.cache.Set(ctx, key, text); err != nil {
		log.Warn("pipeline.cache.set_failed", "error", err)
	}
	return text, nil
}

func (p *Processor) documentType(declared entity.DocumentType, doc entity.RawDocument, text string) entity.DocumentType {
	if declared != entity.DocumentAuto {
		return declared
	}
	if constants.FormatFromHint(doc.Ext, doc.ContentType) == constants.CSV {
		return entity.DocumentBankStatement
	}
	return classify.Classify(text)
}

// snapshot loads the learned table once per run. Statements don't use it.
func (p *Processor) snapshot(ctx context.Context, log *slog.Logger, householdID string, t entity.DocumentType) learn.Mappings {
	if p.mappings == nil || t != entity.DocumentReceipt {
		return nil
	}
	m, err := p.mappings.GetAll(ctx, householdID)
	if err != nil {
		log.Warn("pipeline.learned.load_failed", "error", err)
		return nil
	}
	return m
}

func (p *Processor) applyPayload(res *Result, payload llm.Payload, learned learn.Mappings) {
	today := p.now.Today()
	switch v := payload.(type) {
	case *llm.StatementPayload:
		st := statementFromPayload(v, p.bank, today)
		res.Statement = &st
		res.DocumentType = entity.DocumentBankStatement
	case *llm.ReceiptPayload:
		r := receiptFromPayload(v, learned, today)
		res.Receipt = &r
		res.DocumentType = entity.DocumentReceipt
	}
}

func (p *Processor) applyFallback(res *Result, doc entity.RawDocument, text string, learned learn.Mappings) {
	if res.DocumentType == entity.DocumentBankStatement {
		st := p.bank.ParseFile(text, doc.Ext, doc.ContentType)
		res.Statement = &st
		return
	}
	r := p.receipts.Parse(text, learned)
	res.Receipt = &r
}

// finish writes the processing log and metrics. Neither may fail the run.
// modelErr is a structuring failure the fallback parser recovered from: the
// row stays successful but keeps the cause.
func (p *Processor) finish(ctx context.Context, log *slog.Logger, req Request, t entity.DocumentType, method constants.ProcessingMethod, start time.Time, runErr, modelErr error) {
	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.ObserveDocument(t, string(method), runErr == nil, elapsed)
	}
	if p.logs == nil {
		return
	}
	entry := entity.ProcessingLogEntry{
		FileName:     filepath.Base(req.Path),
		DocumentType: t,
		Method:       string(method),
		Success:      runErr == nil,
		Duration:     elapsed,
		CreatedAt:    time.Now().UTC(),
	}
	cause := runErr
	if cause == nil {
		cause = modelErr
	}
	if cause != nil {
		msg := cause.Error()
		entry.Error = &msg
	}
	// The run's context may already be cancelled; the log row is still wanted.
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.logs.Record(lctx, entry); err != nil {
		log.Warn("pipeline.processing_log.failed", "error", err)
	}
}
