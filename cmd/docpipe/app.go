package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/household-docs/internal/async"
	"github.com/joseph-ayodele/household-docs/internal/cache"
	"github.com/joseph-ayodele/household-docs/internal/common"
	"github.com/joseph-ayodele/household-docs/internal/fallback"
	"github.com/joseph-ayodele/household-docs/internal/ingest"
	"github.com/joseph-ayodele/household-docs/internal/learn"
	"github.com/joseph-ayodele/household-docs/internal/llm"
	"github.com/joseph-ayodele/household-docs/internal/llm/gemini"
	"github.com/joseph-ayodele/household-docs/internal/llm/openai"
	"github.com/joseph-ayodele/household-docs/internal/metrics"
	"github.com/joseph-ayodele/household-docs/internal/ocr"
	"github.com/joseph-ayodele/household-docs/internal/ocr/tess"
	"github.com/joseph-ayodele/household-docs/internal/pipeline"
	"github.com/joseph-ayodele/household-docs/internal/repository"
	"github.com/joseph-ayodele/household-docs/internal/server"
)

// app is the wired object graph shared by the commands. The store is
// optional; without it learned categories live in memory for the run.
type app struct {
	cfg     *common.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	db           *repository.DB
	overrides    *repository.OverrideRepository
	logs         *repository.ProcessingLogRepository
	transactions *repository.TransactionRepository
	receipts     *repository.ReceiptRepository

	learner   *learn.Learner
	extractor *ocr.Extractor
	processor *pipeline.Processor

	closers []func()
}

type appOptions struct {
	needDB   bool
	optionDB bool // connect when DB_URL is set
}

func newApp(ctx context.Context, c *cli, opts appOptions) (*app, error) {
	a := &app{cfg: c.cfg, logger: c.logger, metrics: metrics.New()}

	if opts.needDB {
		if err := a.cfg.RequireDatabase(); err != nil {
			return nil, err
		}
	}
	if opts.needDB || (opts.optionDB && a.cfg.Database.DSN != "") {
		db, err := server.ConnectDB(ctx, a.cfg.Database, a.logger)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = db
		a.closers = append(a.closers, func() { server.CloseDB(db) })
		a.overrides = repository.NewOverrideRepository(db, a.logger)
		a.logs = repository.NewProcessingLogRepository(db, a.logger)
		a.transactions = repository.NewTransactionRepository(db, a.logger)
		a.receipts = repository.NewReceiptRepository(db, a.logger)
		a.learner = learn.New(a.overrides, a.logger)
	} else {
		a.learner = learn.New(learn.NewMemoryStore(), a.logger)
	}

	if err := a.buildProcessor(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) buildProcessor(ctx context.Context) error {
	cfg := a.cfg

	ocrPool := async.NewPool("ocr", a.logger, async.WithWorkers(cfg.OCR.Workers))
	a.closers = append(a.closers, func() { shutdownPool(ocrPool) })

	var primary ocr.Engine
	if cfg.OCR.PrimaryEnabled {
		primary = tess.Lazy(tess.Config{Language: cfg.OCR.Language, TessdataDir: cfg.OCR.TessdataDir})
	}
	a.extractor = ocr.NewExtractor(ocr.Config{
		Pdftotext:      cfg.OCR.Pdftotext,
		Pdftoppm:       cfg.OCR.Pdftoppm,
		Tesseract:      cfg.OCR.Tesseract,
		Language:       cfg.OCR.Language,
		DPI:            cfg.OCR.DPI,
		MaxPages:       cfg.OCR.MaxPages,
		TessdataDir:    cfg.OCR.TessdataDir,
		HeicConverter:  cfg.OCR.HeicConverter,
		MinNativeChars: cfg.OCR.MinNativeChars,
	}, a.logger, ocr.WithPrimary(primary), ocr.WithPool(ocrPool))

	popts := []pipeline.Option{
		pipeline.WithMappings(a.learner),
		pipeline.WithRecorder(a.metrics),
		pipeline.WithReceiptParser(fallback.ReceiptParser{Keywords: cfg.Receipt.ExtraKeywords}),
		pipeline.WithBankParser(fallback.BankParser{SubscriptionKeywords: cfg.Bank.SubscriptionKeywords}),
	}
	if a.logs != nil {
		popts = append(popts, pipeline.WithProcessingLog(a.logs))
	}

	model, err := buildModel(ctx, cfg.LLM, a.logger)
	if err != nil {
		return err
	}
	if model != nil {
		llmPool := async.NewPool("llm", a.logger, async.WithWorkers(cfg.LLM.Workers))
		a.closers = append(a.closers, func() { shutdownPool(llmPool) })
		popts = append(popts, pipeline.WithStructurer(llm.NewStructurer(model, a.logger,
			llm.WithPool(llmPool),
			llm.WithMaxAttempts(cfg.LLM.MaxAttempts),
			llm.WithAttemptTimeout(cfg.LLM.AttemptTimeout),
			llm.WithBackoff(cfg.LLM.Backoff),
			llm.WithObserver(a.metrics),
		)))
	} else {
		a.logger.Info("model structuring disabled; using deterministic parsers", "provider", cfg.LLM.Provider)
	}

	if cfg.Redis.Addr != "" {
		tc, client, err := cache.Dial(ctx, cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}, a.metrics, a.logger)
		if err != nil {
			a.logger.Warn("redis unavailable, running without text cache", "addr", cfg.Redis.Addr, "error", err)
		} else {
			a.closers = append(a.closers, func() { _ = client.Close() })
			popts = append(popts, pipeline.WithTextCache(tc))
		}
	}

	a.processor = pipeline.NewProcessor(a.extractor, a.logger, popts...)
	return nil
}

// buildModel returns nil when structuring is disabled or unconfigured.
func buildModel(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Model, error) {
	if cfg.Provider == "none" || cfg.APIKey == "" {
		return nil, nil
	}
	switch cfg.Provider {
	case "gemini":
		c, err := gemini.NewClient(ctx, gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model, Temperature: cfg.Temperature}, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.AttemptTimeout + 5*time.Second,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// sink persists results when a store is connected.
func (a *app) sink() ingest.Sink {
	if a.db == nil {
		return nil
	}
	return ingest.StoreSink{Receipts: a.receipts, Transactions: a.transactions}
}

func (a *app) runner() *ingest.Runner {
	var opts []ingest.Option
	if s := a.sink(); s != nil {
		opts = append(opts, ingest.WithSink(s))
	}
	return ingest.NewRunner(a.processor, a.logger, opts...)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func shutdownPool(p *async.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	p.Shutdown(ctx)
}
