package ingest

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/household-docs/constants"
	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/pipeline"
)

type fakeProcessor struct {
	mu    sync.Mutex
	paths []string
	fail  map[string]error
}

func (f *fakeProcessor) Process(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, filepath.Base(req.Path))
	if err := f.fail[filepath.Base(req.Path)]; err != nil {
		return nil, err
	}
	if filepath.Ext(req.Path) == ".csv" {
		return &pipeline.Result{
			DocumentType: entity.DocumentBankStatement,
			Method:       constants.MethodNativeFallback,
			Statement: &entity.StructuredStatement{Transactions: []entity.Transaction{
				{Date: entity.NewDate(2026, 1, 15), Description: "STARBUCKS", Amount: decimal.RequireFromString("-5.50")},
			}},
		}, nil
	}
	return &pipeline.Result{
		DocumentType: entity.DocumentReceipt,
		Method:       constants.MethodNativeFallback,
		Receipt:      &entity.StructuredReceipt{Merchant: "STORE A"},
	}, nil
}

type fakeStore struct {
	saved    []string
	imported int
}

func (s *fakeStore) Save(_ context.Context, household string, rec entity.StructuredReceipt) (string, error) {
	s.saved = append(s.saved, household+":"+rec.Merchant)
	return "r-1", nil
}

func (s *fakeStore) Import(_ context.Context, _ string, txs []entity.Transaction) (entity.ImportResult, error) {
	s.imported += len(txs)
	return entity.ImportResult{Inserted: len(txs)}, nil
}

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestProcessDirectory(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.txt", "STORE A\nTOTAL 6.49")
	write(t, root, "copy-of-a.txt", "STORE A\nTOTAL 6.49")
	write(t, root, "stmt.csv", "Date,Description,Debit,Credit\n01/15/2026,STARBUCKS,5.50,\n")
	write(t, root, "notes.docx", "ignored")
	write(t, root, ".hidden/b.txt", "hidden")
	write(t, root, "sub/broken.txt", "boom")

	proc := &fakeProcessor{fail: map[string]error{"broken.txt": errors.New("extract failed")}}
	store := &fakeStore{}
	r := NewRunner(proc, nil, WithSink(StoreSink{Receipts: store, Transactions: store}))

	results, stats, err := r.ProcessDirectory(context.Background(), "h1", root, true)
	require.NoError(t, err)

	assert.Equal(t, uint32(4), stats.Matched)
	assert.Equal(t, uint32(2), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Equal(t, uint32(1), stats.Failed)
	assert.Len(t, results, 4)
	assert.NotContains(t, proc.paths, "b.txt")
	assert.Equal(t, []string{"h1:STORE A"}, store.saved)
	assert.Equal(t, 1, store.imported)

	for _, res := range results {
		if filepath.Base(res.SourcePath) == "stmt.csv" {
			require.NotNil(t, res.Persisted.Import)
			assert.Equal(t, 1, res.Persisted.Import.Inserted)
			assert.Len(t, res.HashHex, 64)
		}
		if filepath.Base(res.SourcePath) == "broken.txt" {
			assert.Equal(t, "extract failed", res.Err)
		}
	}
}

func TestProcessFileRetriesAfterFailure(t *testing.T) {
	root := t.TempDir()
	p := write(t, root, "r.txt", "x")
	proc := &fakeProcessor{fail: map[string]error{"r.txt": errors.New("model down")}}
	r := NewRunner(proc, nil)

	_, err := r.ProcessFile(context.Background(), "h", p, entity.DocumentAuto)
	require.Error(t, err)

	delete(proc.fail, "r.txt")
	res, err := r.ProcessFile(context.Background(), "h", p, entity.DocumentAuto)
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)
	assert.Equal(t, entity.DocumentReceipt, res.DocumentType)
}

func TestProcessFileRejectsExtension(t *testing.T) {
	p := write(t, t.TempDir(), "a.docx", "x")
	res, err := NewRunner(&fakeProcessor{}, nil).ProcessFile(context.Background(), "h", p, entity.DocumentAuto)
	require.Error(t, err)
	assert.Contains(t, res.Err, "unsupported")
}

func TestProcessDirectoryRequiresRoot(t *testing.T) {
	_, _, err := NewRunner(&fakeProcessor{}, nil).ProcessDirectory(context.Background(), "h", " ", true)
	require.Error(t, err)
}

func TestWatcherInitialScanAndNewFiles(t *testing.T) {
	root := t.TempDir()
	write(t, root, "existing.csv", "a")
	write(t, root, "skip.docx", "a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond}, nil)
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return filepath.Base(p)
		case <-time.After(5 * time.Second):
			t.Fatal("no watcher event")
			return ""
		}
	}
	assert.Equal(t, "existing.csv", next())

	write(t, root, "new.txt", "hello")
	assert.Equal(t, "new.txt", next())

	cancel()
	for range events {
	}
}

func TestWatcherRequiresRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	require.Error(t, err)
}

func TestHiddenBelow(t *testing.T) {
	root := filepath.Join("/home", ".sync", "inbox")
	tests := []struct {
		path string
		want bool
	}{
		{root, false},
		{filepath.Join(root, "a.pdf"), false},
		{filepath.Join(root, ".a.pdf"), true},
		{filepath.Join(root, ".cache", "a.pdf"), true},
		{filepath.Join(root, "sub", "a.pdf"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hiddenBelow(root, tt.path), tt.path)
	}
}

func TestWalkFilter(t *testing.T) {
	root := filepath.Join(t.TempDir(), ".inbox")
	write(t, root, "a.pdf", "x")
	write(t, root, "B.JPG", "x")
	write(t, root, "notes.docx", "x")
	write(t, root, ".draft.txt", "x")
	write(t, root, ".git/c.txt", "x")
	write(t, root, "sub/d.csv", "x")

	collect := func(skipHidden bool) []string {
		f := walkFilter{root: root, skipHidden: skipHidden}
		var got []string
		require.NoError(t, filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			require.NoError(t, err)
			ok, err := f.step(path, d)
			if ok {
				rel, _ := filepath.Rel(root, path)
				got = append(got, filepath.ToSlash(rel))
			}
			return err
		}))
		return got
	}

	assert.ElementsMatch(t, []string{"a.pdf", "B.JPG", "sub/d.csv"}, collect(true))
	assert.ElementsMatch(t, []string{"a.pdf", "B.JPG", "sub/d.csv", ".draft.txt", ".git/c.txt"}, collect(false))
}
