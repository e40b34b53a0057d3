package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/finextract/internal/config"
	"github.com/dgallion1/finextract/internal/embed"
	"github.com/dgallion1/finextract/internal/extract"
	"github.com/dgallion1/finextract/internal/record"
	"github.com/dgallion1/finextract/internal/vectorstore"
)

const modelAnswer = "```json\n" + `{
  "Earnings Per Share (EPS)": {"2023": {"EPS": "4.52", "Page": 1}},
  "Net Profit": {"2023": {"Net Profit": "1,000,000", "Page": 2}}
}` + "\n```"

func fakeAnthropic(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": answer}},
			"model":       "claude-test",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func offlineConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	c, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	c.Embedding.Provider = "hash"
	c.Completion.Provider = "anthropic"
	c.Completion.BaseURL = baseURL
	c.Completion.Tokenizer = "estimate"
	c.Credentials.AnthropicAPIKey = "test-key"
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return c
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunExtract_WritesRows(t *testing.T) {
	srv := fakeAnthropic(t, modelAnswer)
	cfg = offlineConfig(t, srv.URL)
	logger = quiet()

	doc := filepath.Join(t.TempDir(), "report.txt")
	if err := os.WriteFile(doc, []byte("EPS: 4.52\fItem\t2023\nNet Profit\t1,000,000"), 0o600); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "rows.csv")
	extractFlags.years = []string{"2023"}
	extractFlags.out = out
	t.Cleanup(func() { extractFlags.years, extractFlags.out = nil, "" })

	if err := runExtract(context.Background(), doc, io.Discard); err != nil {
		t.Fatalf("runExtract: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	lines, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines", len(lines))
	}
	got := map[string]string{}
	for i, col := range lines[0] {
		got[col] = lines[1][i]
	}
	if got["Year"] != "2023" || got["Earnings Per Share (EPS)"] != "4.52" || got["Net Profit"] != "1000000" {
		t.Errorf("unexpected row %v", got)
	}
	if got["Gross Profit"] != "" {
		t.Errorf("expected empty Gross Profit, got %q", got["Gross Profit"])
	}
}

func TestRunExtract_JSONToStdout(t *testing.T) {
	srv := fakeAnthropic(t, "no json here")
	cfg = offlineConfig(t, srv.URL)
	logger = quiet()

	doc := filepath.Join(t.TempDir(), "report.md")
	if err := os.WriteFile(doc, []byte("# Annual report\n\nEPS: 4.52\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	extractFlags.years = []string{"2023"}
	t.Cleanup(func() { extractFlags.years = nil })

	var stdout bytes.Buffer
	if err := runExtract(context.Background(), doc, &stdout); err != nil {
		t.Fatalf("runExtract: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &rows); err != nil {
		t.Fatalf("decode stdout: %v (%s)", err, stdout.String())
	}
	if len(rows) != 1 || rows[0]["Year"] != "2023" || rows[0]["Net Profit"] != nil {
		t.Errorf("expected a null row for the requested year, got %v", rows)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	log.Info("hidden")
	log.Warn("shown", "job_id", "j1")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("expected info to be filtered at warn level")
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a json line: %v", err)
	}
	if entry["job_id"] != "j1" {
		t.Errorf("unexpected entry %v", entry)
	}

	buf.Reset()
	newLogger(config.LogConfig{Level: "debug", Format: "text"}, &buf).Debug("visible")
	if !strings.Contains(buf.String(), "msg=visible") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}

func TestNewStoreAndEmbedder(t *testing.T) {
	c := offlineConfig(t, "http://localhost")
	ctx := context.Background()

	store, err := newStore(ctx, c)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if _, ok := store.(*vectorstore.MemoryStore); !ok {
		t.Errorf("expected memory store, got %T", store)
	}

	c.Store.Driver = "sqlite"
	c.Store.DSN = ":memory:"
	store, err = newStore(ctx, c)
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*vectorstore.SQLiteStore); !ok {
		t.Errorf("expected sqlite store, got %T", store)
	}

	emb, err := newEmbedder(ctx, c)
	if err != nil {
		t.Fatalf("embedder: %v", err)
	}
	if _, ok := emb.(embed.HashEmbedder); !ok {
		t.Errorf("expected hash embedder, got %T", emb)
	}

	c.Embedding.Provider = "ollama"
	c.Embedding.BaseURL = "http://localhost:11434"
	if emb, _ = newEmbedder(ctx, c); emb == nil {
		t.Error("expected ollama embedder")
	}
}

func TestNewCounter(t *testing.T) {
	if _, ok := newCounter(config.CompletionConfig{Tokenizer: "estimate"}, quiet()).(extract.EstimateCounter); !ok {
		t.Error("expected estimate counter")
	}
	if _, ok := newCounter(config.CompletionConfig{Tokenizer: "tiktoken"}, quiet()).(*extract.TiktokenCounter); !ok {
		t.Error("expected tiktoken counter")
	}
}

func TestNewNormalizer_CustomColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "columns.yaml")
	body := "columns:\n  - {name: Year, kind: year}\n  - {name: EPS, kind: number, path: [Earnings Per Share (EPS), \"{year}\", EPS]}\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	n, err := newNormalizer(config.ExtractConfig{Columns: path})
	if err != nil {
		t.Fatalf("newNormalizer: %v", err)
	}
	if got := strings.Join(n.Columns(), ","); got != "Year,EPS" {
		t.Errorf("unexpected columns %s", got)
	}
	if _, err := newNormalizer(config.ExtractConfig{Columns: filepath.Join(t.TempDir(), "absent.yaml")}); err == nil {
		t.Error("expected error for a missing column map")
	}
}

func TestWriteFile(t *testing.T) {
	n, err := newNormalizer(config.ExtractConfig{})
	if err != nil {
		t.Fatalf("newNormalizer: %v", err)
	}
	rows := n.NormalizeAll(record.Empty(), []string{"2023"})
	dir := t.TempDir()

	path := filepath.Join(dir, "rows.xlsx")
	if err := writeFile(path, record.FormatXLSX, rows); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatalf("expected a non-empty workbook, got %v", err)
	}

	if err := writeFile(filepath.Join(dir, "rows.out"), "yaml", rows); err == nil {
		t.Error("expected error for unknown format")
	}
	if err := writeFile(filepath.Join(dir, "missing", "rows.csv"), record.FormatCSV, rows); err == nil {
		t.Error("expected error for an uncreatable path")
	}
}
