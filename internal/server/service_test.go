package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/household-docs/constants"
	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/ingest"
	"github.com/joseph-ayodele/household-docs/internal/learn"
	"github.com/joseph-ayodele/household-docs/internal/ocr"
	"github.com/joseph-ayodele/household-docs/internal/pipeline"
)

type stagedProcessor struct {
	mu      sync.Mutex
	path    string
	content string
	req     pipeline.Request
	err     error
}

func (p *stagedProcessor) Process(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.path = req.Path
	p.req = req
	b, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, err
	}
	p.content = string(b)
	if p.err != nil {
		return nil, p.err
	}
	return &pipeline.Result{
		DocumentType: entity.DocumentReceipt,
		Method:       constants.MethodNativeFallback,
		Receipt:      &entity.StructuredReceipt{Merchant: "STORE A", Items: []entity.LineItem{}},
	}, nil
}

type savingSink struct{ households []string }

func (s *savingSink) Persist(_ context.Context, household string, _ *pipeline.Result) (ingest.Persisted, error) {
	s.households = append(s.households, household)
	return ingest.Persisted{ReceiptID: "r-42"}, nil
}

func startServer(t *testing.T, svc *DocumentService) (*DocumentClient, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs, _ := NewGRPCServer(svc, svc.logger)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewDocumentClient(conn), conn
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func upload(name, body string) map[string]any {
	return map[string]any{
		"file_name":      name,
		"content_base64": base64.StdEncoding.EncodeToString([]byte(body)),
	}
}

func TestProcessStagesAndRemovesUpload(t *testing.T) {
	proc := &stagedProcessor{}
	dir := t.TempDir()
	client, _ := startServer(t, NewDocumentService(proc, learn.New(learn.NewMemoryStore(), nil), nil, WithUploadDir(dir)))

	req := upload("receipt.txt", "STORE A\nTOTAL 6.49")
	req["household_id"] = "h1"
	req["document_type"] = "receipt"
	out, err := client.Process(context.Background(), mustStruct(t, req))
	require.NoError(t, err)

	assert.Equal(t, "STORE A", out.GetFields()["merchant"].GetStringValue())
	assert.Equal(t, "native+fallback", out.GetFields()["_method"].GetStringValue())
	assert.Equal(t, "STORE A\nTOTAL 6.49", proc.content)
	assert.Equal(t, "h1", proc.req.HouseholdID)
	assert.Equal(t, entity.DocumentReceipt, proc.req.DeclaredType)
	assert.Equal(t, ".txt", proc.path[len(proc.path)-4:])

	_, statErr := os.Stat(proc.path)
	assert.True(t, os.IsNotExist(statErr), "staged upload must be removed")
}

func TestProcessRemovesUploadOnFailure(t *testing.T) {
	proc := &stagedProcessor{err: &ocr.TextExtractionError{Path: "x", Causes: []error{errors.New("no engine")}}}
	client, _ := startServer(t, NewDocumentService(proc, nil, nil, WithUploadDir(t.TempDir())))

	_, err := client.Process(context.Background(), mustStruct(t, upload("scan.png", "not really a png")))
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, statErr := os.Stat(proc.path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessValidation(t *testing.T) {
	client, _ := startServer(t, NewDocumentService(&stagedProcessor{}, nil, nil, WithUploadDir(t.TempDir())))

	cases := map[string]map[string]any{
		"missing name":  {"content_base64": "eA=="},
		"bad extension": upload("notes.docx", "x"),
		"no content":    {"file_name": "a.txt"},
		"bad base64":    {"file_name": "a.txt", "content_base64": "%%%"},
		"bad type":      func() map[string]any { m := upload("a.txt", "x"); m["document_type"] = "invoice"; return m }(),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := client.Process(context.Background(), mustStruct(t, req))
			require.Error(t, err)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestProcessUploadLimit(t *testing.T) {
	client, _ := startServer(t, NewDocumentService(&stagedProcessor{}, nil, nil, WithUploadDir(t.TempDir()), WithMaxUploadBytes(4)))
	_, err := client.Process(context.Background(), mustStruct(t, upload("a.txt", "too large")))
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestProcessSave(t *testing.T) {
	sink := &savingSink{}
	client, _ := startServer(t, NewDocumentService(&stagedProcessor{}, nil, nil, WithUploadDir(t.TempDir()), WithSink(sink)))

	req := upload("a.txt", "STORE A")
	req["save"] = true
	out, err := client.Process(context.Background(), mustStruct(t, req))
	require.NoError(t, err)
	assert.Equal(t, "r-42", out.GetFields()["_receipt_id"].GetStringValue())
	assert.Equal(t, []string{"default"}, sink.households)
}

func TestRecordCategory(t *testing.T) {
	learner := learn.New(learn.NewMemoryStore(), nil)
	client, _ := startServer(t, NewDocumentService(&stagedProcessor{}, learner, nil))
	ctx := context.Background()

	out, err := client.RecordCategory(ctx, mustStruct(t, map[string]any{
		"household_id": "h1", "item_name": "Trader Joe's Milk", "category": "Dairy",
	}))
	require.NoError(t, err)
	assert.Equal(t, float64(1), out.GetFields()["recorded"].GetNumberValue())

	out, err = client.RecordCategory(ctx, mustStruct(t, map[string]any{
		"household_id": "h1",
		"items": []any{
			map[string]any{"name": "Sourdough", "category": "Bakery"},
			map[string]any{"name": "Mystery", "category": "Uncategorized"},
			map[string]any{"name": "", "category": "Dairy"},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, float64(1), out.GetFields()["recorded"].GetNumberValue())

	m, err := learner.GetAll(ctx, "h1")
	require.NoError(t, err)
	cat, ok := m.Match("organic trader joe's milk 1gal")
	assert.True(t, ok)
	assert.Equal(t, "Dairy", cat)
	assert.Len(t, m, 2)

	_, err = client.RecordCategory(ctx, mustStruct(t, map[string]any{"item_name": "Milk"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

type fakeRunner struct{ root string }

func (f *fakeRunner) ProcessDirectory(_ context.Context, _, root string, skipHidden bool) ([]ingest.FileResult, ingest.DirStats, error) {
	f.root = root
	return []ingest.FileResult{
			{SourcePath: root + "/a.csv", DocumentType: entity.DocumentBankStatement, Method: constants.MethodNativeFallback,
				Persisted: ingest.Persisted{Import: &entity.ImportResult{Inserted: 3}}},
		},
		ingest.DirStats{Scanned: 2, Matched: 1, Succeeded: 1}, nil
}

func TestProcessDirectory(t *testing.T) {
	ctx := context.Background()
	client, _ := startServer(t, NewDocumentService(&stagedProcessor{}, nil, nil))
	_, err := client.ProcessDirectory(ctx, mustStruct(t, map[string]any{"root_path": "/data"}))
	assert.Equal(t, codes.Unimplemented, status.Code(err))

	runner := &fakeRunner{}
	client, _ = startServer(t, NewDocumentService(&stagedProcessor{}, nil, nil, WithDirectoryRunner(runner)))
	_, err = client.ProcessDirectory(ctx, mustStruct(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	out, err := client.ProcessDirectory(ctx, mustStruct(t, map[string]any{"root_path": "/data"}))
	require.NoError(t, err)
	assert.Equal(t, "/data", runner.root)
	assert.Equal(t, float64(1), out.GetFields()["succeeded"].GetNumberValue())
	results := out.GetFields()["results"].GetListValue().GetValues()
	require.Len(t, results, 1)
	assert.Equal(t, float64(3), results[0].GetStructValue().GetFields()["transactions_imported"].GetNumberValue())
}

func TestHealthService(t *testing.T) {
	_, conn := startServer(t, NewDocumentService(&stagedProcessor{}, nil, nil))
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: DocumentServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
