package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dgallion1/finextract/internal/doctree"
	"github.com/dgallion1/finextract/internal/embed"
)

type countingEmbedder struct {
	inner  embed.Embedder
	calls  atomic.Int64
	failOn string
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.failOn != "" && strings.Contains(text, c.failOn) {
		return nil, &embed.ServiceError{Provider: "test", StatusCode: 503, Transient: true, Err: errors.New("unavailable")}
	}
	return c.inner.Embed(ctx, text)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testChunks(texts ...string) []doctree.Chunk {
	chunks := make([]doctree.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = doctree.Chunk{Index: i, Text: t, Metadata: doctree.ChunkMetadata{Source: "r.pdf", ApproxPages: []int{i + 1}}}
	}
	return chunks
}

func TestGateway_EnsureIndexedIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	emb := &countingEmbedder{inner: embed.HashEmbedder{}}
	g := NewGateway(store, emb, GatewayConfig{}, quietLogger())
	ctx := context.Background()
	chunks := testChunks("Revenue grew", "Net Profit 1000000", "EPS 4.52")

	idx, err := g.EnsureIndexed(ctx, "c1", chunks, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !idx.Created || idx.Size != 3 {
		t.Errorf("expected created index of 3, got %+v", idx)
	}
	calls := emb.calls.Load()

	// Second call with a wrong flag must not write or embed again.
	idx2, err := g.EnsureIndexed(ctx, "c1", chunks, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx2.Created || idx2.Size != 3 {
		t.Errorf("expected reused index of 3, got %+v", idx2)
	}
	if emb.calls.Load() != calls {
		t.Errorf("expected no embedding on reuse, got %d extra calls", emb.calls.Load()-calls)
	}
	if n, _ := store.Count(ctx, "c1"); n != 3 {
		t.Errorf("expected 3 records, got %d", n)
	}
}

func TestGateway_FlagTrueForMissingCollectionStillIndexes(t *testing.T) {
	g := NewGateway(NewMemoryStore(), embed.HashEmbedder{}, GatewayConfig{}, quietLogger())
	idx, err := g.EnsureIndexed(context.Background(), "fresh", testChunks("a b c"), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !idx.Created || idx.Size != 1 {
		t.Errorf("expected collection to be created, got %+v", idx)
	}
}

func TestGateway_EmbeddingFailureWritesNothing(t *testing.T) {
	store := NewMemoryStore()
	emb := &countingEmbedder{inner: embed.HashEmbedder{}, failOn: "boom"}
	g := NewGateway(store, emb, GatewayConfig{Concurrency: 2}, quietLogger())

	_, err := g.EnsureIndexed(context.Background(), "c", testChunks("fine", "boom", "fine too"), false)
	var svcErr *embed.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected embed.ServiceError, got %v", err)
	}
	if n, _ := store.Count(context.Background(), "c"); n != 0 {
		t.Errorf("expected nothing written, got %d records", n)
	}
}

func TestGateway_DeterministicIDsAndOrder(t *testing.T) {
	store := NewMemoryStore()
	g := NewGateway(store, embed.HashEmbedder{}, GatewayConfig{Concurrency: 8}, quietLogger())
	var texts []string
	for i := range 20 {
		texts = append(texts, fmt.Sprintf("chunk number %d", i))
	}
	if _, err := g.EnsureIndexed(context.Background(), "c", testChunks(texts...), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, r := range store.collections["c"] {
		if r.Position != i {
			t.Errorf("record %d has position %d", i, r.Position)
		}
		if r.Chunk.Text != texts[i] {
			t.Errorf("record %d holds %q, expected %q", i, r.Chunk.Text, texts[i])
		}
		if r.ID != ChunkID("c", i) {
			t.Errorf("record %d has unexpected id %s", i, r.ID)
		}
	}
	if ChunkID("c", 1) == ChunkID("d", 1) {
		t.Error("expected IDs to differ across collections")
	}
}

func TestGateway_QueryReturnsWholeSmallCollection(t *testing.T) {
	g := NewGateway(NewMemoryStore(), embed.HashEmbedder{}, GatewayConfig{}, quietLogger())
	ctx := context.Background()
	idx, err := g.EnsureIndexed(ctx, "c", testChunks("revenue", "profit", "shareholders"), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := g.Query(ctx, idx, "net profit", 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected all 3 chunks, got %d", len(got))
	}
	if got[0].Text != "profit" {
		t.Errorf("expected most relevant chunk first, got %q", got[0].Text)
	}
	if got[0].ID == "" {
		t.Error("expected retrieved chunk to carry its ID")
	}
}

func TestGateway_QueryEmptyCollection(t *testing.T) {
	g := NewGateway(NewMemoryStore(), embed.HashEmbedder{}, GatewayConfig{}, quietLogger())
	got, err := g.Query(context.Background(), Index{Collection: "none"}, "anything", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no chunks, got %d", len(got))
	}
}
