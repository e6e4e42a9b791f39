package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const receiptText = "STORE A\n01/15/2026\nMILK 3.99\nBREAD 2.50\nTOTAL 6.49\n"

const statementCSV = "Date,Description,Debit,Credit\n" +
	"01/15/2026,STARBUCKS,5.50,\n" +
	"01/16/2026,STORE A POS,6.80,\n"

func setEnv(t *testing.T, dbURL string) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("KEYWORDS_FILE", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_URL", dbURL)
}

func run(t *testing.T, args ...string) map[string]any {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	require.NoError(t, cmd.ExecuteContext(context.Background()), "docpipe %v", args)
	var v map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &v), out.String())
	return v
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestProcessWithoutStore(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, "")
	receipt := writeFile(t, dir, "r.txt", receiptText)
	xlsx := filepath.Join(dir, "out.xlsx")

	out := run(t, "process", receipt, "--xlsx", xlsx)
	assert.Equal(t, "STORE A", out["merchant"])
	assert.Equal(t, "2026-01-15", out["date"])
	assert.Equal(t, "6.49", out["total"])
	assert.Equal(t, "native+fallback", out["_method"])
	assert.Equal(t, "receipt", out["_doc_type"])

	items := out["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "Dairy", items[0].(map[string]any)["category"])
	assert.Equal(t, "Bakery", items[1].(map[string]any)["category"])

	fi, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Positive(t, fi.Size())
}

func TestStoreWorkflow(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, filepath.Join(dir, "docs.db"))
	statement := writeFile(t, dir, "stmt.csv", statementCSV)
	receipt := writeFile(t, dir, "r.txt", receiptText)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"migrate"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	first := run(t, "import", statement, "--household", "h1")
	assert.Equal(t, float64(2), first["transactions_imported"])
	second := run(t, "import", statement, "--household", "h1")
	assert.Equal(t, float64(0), second["transactions_imported"])
	assert.Equal(t, float64(2), second["duplicates_skipped"])

	run(t, "learn", "h1", "Bread", "Snacks")
	out := run(t, "process", receipt, "--household", "h1", "--save")
	items := out["items"].([]any)
	assert.Equal(t, "Snacks", items[1].(map[string]any)["category"])

	rec := run(t, "reconcile", "--household", "h1")
	assert.Equal(t, float64(1), rec["matched"])
	assert.Equal(t, float64(1), rec["unmatched"])

	health := run(t, "dbhealth", "--recent", "5")
	assert.Equal(t, "ok", health["status"])
	entries := health["entries"].([]any)
	assert.NotEmpty(t, entries)
}

func TestExtractPrintsRawText(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, "")
	receipt := writeFile(t, dir, "r.txt", receiptText)

	out := run(t, "extract", receipt)
	assert.Equal(t, receiptText, out["text"])
	assert.Equal(t, "NATIVE", out["method"])
	assert.Equal(t, float64(1), out["pages"])
}

func TestStoreCommandsNeedDatabase(t *testing.T) {
	setEnv(t, "")
	cmd := newRootCmd()
	cmd.SetArgs([]string{"reconcile", "--household", "h1"})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_URL is required")
}
