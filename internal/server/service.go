package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/household-docs/constants"
	"github.com/joseph-ayodele/household-docs/internal/common"
	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/ingest"
	"github.com/joseph-ayodele/household-docs/internal/learn"
	"github.com/joseph-ayodele/household-docs/internal/ocr"
	"github.com/joseph-ayodele/household-docs/internal/pipeline"
)

// DefaultMaxUploadBytes caps inline upload content.
const DefaultMaxUploadBytes = 25 << 20

type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type CategoryRecorder interface {
	Upsert(ctx context.Context, householdID, name, category string) error
	BulkRecord(ctx context.Context, householdID string, items []learn.Item) (int, error)
}

type DirectoryRunner interface {
	ProcessDirectory(ctx context.Context, householdID, root string, skipHidden bool) ([]ingest.FileResult, ingest.DirStats, error)
}

// DocumentService serves the document pipeline over gRPC.
type DocumentService struct {
	proc      Processor
	learner   CategoryRecorder
	runner    DirectoryRunner
	sink      ingest.Sink
	uploadDir string
	maxUpload int
	logger    *slog.Logger
}

type ServiceOption func(*DocumentService)

// WithUploadDir sets where inline uploads are staged.
func WithUploadDir(dir string) ServiceOption {
	return func(s *DocumentService) { s.uploadDir = dir }
}

func WithMaxUploadBytes(n int) ServiceOption {
	return func(s *DocumentService) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithDirectoryRunner enables ProcessDirectory.
func WithDirectoryRunner(r DirectoryRunner) ServiceOption {
	return func(s *DocumentService) { s.runner = r }
}

// WithSink lets Process persist results when the request sets "save".
func WithSink(sink ingest.Sink) ServiceOption {
	return func(s *DocumentService) { s.sink = sink }
}

func NewDocumentService(proc Processor, learner CategoryRecorder, logger *slog.Logger, opts ...ServiceOption) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DocumentService{
		proc:      proc,
		learner:   learner,
		uploadDir: os.TempDir(),
		maxUpload: DefaultMaxUploadBytes,
		logger:    logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Process stages inline content in a temp file, runs the pipeline on it and
// removes the file on every path.
//
// Request fields: file_name, content_base64, content_type, document_type,
// household_id, save.
func (s *DocumentService) Process(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := common.LoggerFromContext(ctx, s.logger)
	fileName := field(in, "file_name")
	encoded := field(in, "content_base64")

	v := common.NewValidator().
		Field("file_name", fileName, common.Required, common.MaxLength(255), common.AllowedExtension).
		Field("content_base64", encoded, common.Required)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	declared, err := entity.ParseDocumentType(field(in, "document_type"))
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, common.InvalidArgumentErrorf("content_base64: %v", err)
	}
	if len(content) == 0 {
		return nil, common.InvalidArgumentError("content is empty")
	}
	if len(content) > s.maxUpload {
		return nil, status.Errorf(codes.ResourceExhausted, "upload exceeds %d bytes", s.maxUpload)
	}
	household := field(in, "household_id")
	if household == "" {
		household = common.HouseholdIDFromContext(ctx)
	}

	path, err := s.stage(fileName, content)
	if err != nil {
		log.Error("upload.stage.failed", "error", err)
		return nil, common.InternalError("could not stage upload")
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("upload.cleanup.failed", "path", path, "error", err)
		}
	}()

	res, err := s.proc.Process(ctx, pipeline.Request{
		Path:         path,
		ContentType:  field(in, "content_type"),
		DeclaredType: declared,
		HouseholdID:  household,
	})
	if err != nil {
		return nil, statusFor(err)
	}

	out, err := toStruct(res)
	if err != nil {
		return nil, common.InternalErrorf("encode result: %v", err)
	}
	if boolField(in, "save", false) && s.sink != nil {
		p, err := s.sink.Persist(ctx, household, res)
		if err != nil {
			log.Error("upload.persist.failed", "error", err)
			return nil, common.ToStatus(fmt.Errorf("persist result: %w", err))
		}
		if p.ReceiptID != "" {
			out.Fields["_receipt_id"] = structpb.NewStringValue(p.ReceiptID)
		}
		if p.Import != nil {
			imp, err := toStruct(p.Import)
			if err != nil {
				return nil, common.InternalErrorf("encode import: %v", err)
			}
			out.Fields["_import"] = structpb.NewStructValue(imp)
		}
	}
	return out, nil
}

func (s *DocumentService) stage(fileName string, content []byte) (string, error) {
	ext := constants.NormalizeExt(filepath.Ext(fileName))
	f, err := os.CreateTemp(s.uploadDir, "upload-*."+ext)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// RecordCategory stores a user correction. Either item_name and category,
// or an "items" list of {name, category} objects for a confirmed receipt.
func (s *DocumentService) RecordCategory(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	household := field(in, "household_id")
	if household == "" {
		household = common.HouseholdIDFromContext(ctx)
	}

	if list := in.GetFields()["items"].GetListValue(); list != nil {
		items := make([]learn.Item, 0, len(list.GetValues()))
		for _, v := range list.GetValues() {
			obj := v.GetStructValue()
			items = append(items, learn.Item{Name: field(obj, "name"), Category: field(obj, "category")})
		}
		n, err := s.learner.BulkRecord(ctx, household, items)
		if err != nil {
			return nil, common.ToStatus(err)
		}
		return structpb.NewStruct(map[string]any{"recorded": n})
	}

	if err := s.learner.Upsert(ctx, household, field(in, "item_name"), field(in, "category")); err != nil {
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{"recorded": 1})
}

func statusFor(err error) error {
	var te *ocr.TextExtractionError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.As(err, &te):
		return common.UnprocessableError(err.Error())
	}
	return common.ToStatus(err)
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func field(s *structpb.Struct, key string) string {
	return strings.TrimSpace(s.GetFields()[key].GetStringValue())
}

func boolField(s *structpb.Struct, key string, def bool) bool {
	v, ok := s.GetFields()[key]
	if !ok {
		return def
	}
	if _, isBool := v.GetKind().(*structpb.Value_BoolValue); !isBool {
		return def
	}
	return v.GetBoolValue()
}
