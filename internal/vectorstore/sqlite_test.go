package vectorstore

import (
	"context"
	"testing"

	"github.com/dgallion1/finextract/internal/doctree"
)

func TestSQLiteStore_AddCountSearch(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()

	if n, err := s.Count(ctx, "c"); err != nil || n != 0 {
		t.Fatalf("expected empty collection, got %d (%v)", n, err)
	}

	records := []Record{
		{ID: ChunkID("c", 0), Position: 0, Embedding: []float32{1, 0},
			Chunk: doctree.Chunk{Text: "Revenue", Start: 0, End: 7, Metadata: doctree.ChunkMetadata{Source: "r.pdf", ApproxPages: []int{1}}}},
		{ID: ChunkID("c", 1), Position: 1, Embedding: []float32{0, 1},
			Chunk: doctree.Chunk{Text: "EPS", Start: 5, End: 8, Metadata: doctree.ChunkMetadata{Source: "r.pdf", ApproxPages: []int{1, 2}}}},
	}
	if err := s.Add(ctx, "c", records); err != nil {
		t.Fatalf("add: %v", err)
	}
	if n, _ := s.Count(ctx, "c"); n != 2 {
		t.Errorf("expected 2 records, got %d", n)
	}
	if n, _ := s.Count(ctx, "other"); n != 0 {
		t.Errorf("expected other collection empty, got %d", n)
	}

	got, err := s.Search(ctx, "c", []float32{0.1, 1}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	m := got[0]
	if m.Chunk.Text != "EPS" || m.Chunk.ID != ChunkID("c", 1) || m.Chunk.Index != 1 {
		t.Errorf("unexpected match %+v", m.Chunk)
	}
	if pages := m.Chunk.Metadata.ApproxPages; len(pages) != 2 || pages[1] != 2 {
		t.Errorf("expected pages [1 2], got %v", pages)
	}
	if len(m.Embedding) != 2 || m.Embedding[1] != 1 {
		t.Errorf("expected embedding round trip, got %v", m.Embedding)
	}
}

func TestSQLiteStore_DuplicatePositionFails(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()

	rec := Record{ID: "a", Position: 0, Embedding: []float32{1}, Chunk: doctree.Chunk{Text: "x"}}
	dup := Record{ID: "b", Position: 0, Embedding: []float32{1}, Chunk: doctree.Chunk{Text: "y"}}
	if err := s.Add(ctx, "c", []Record{rec, dup}); err == nil {
		t.Fatal("expected unique constraint error")
	}
	if n, _ := s.Count(ctx, "c"); n != 0 {
		t.Errorf("expected rollback to leave collection empty, got %d", n)
	}
}
