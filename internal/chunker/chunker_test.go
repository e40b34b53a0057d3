package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dgallion1/finextract/internal/doctree"
)

func sampleDocument(pages int) *doctree.Document {
	doc := &doctree.Document{Title: "sample", Source: "sample.pdf"}
	for p := 1; p <= pages; p++ {
		page := doctree.Page{Number: p}
		page.Elements = append(page.Elements, doctree.PageElement{
			Page:    p,
			Kind:    doctree.KindText,
			Content: fmt.Sprintf("Section %d discusses segment revenue. Retail grew while leisure recovered after a difficult year.", p),
		})
		page.Elements = append(page.Elements, doctree.PageElement{
			Page:    p,
			Kind:    doctree.KindTable,
			Content: fmt.Sprintf("Item\t%d\t%d\nRevenue\t%d,000\t%d,500\nNet Profit\t1,000,000\t900,000", 2020+p, 2019+p, p*10, p*9),
		})
		page.Elements = append(page.Elements, doctree.PageElement{
			Page:    p,
			Kind:    doctree.KindText,
			Content: "Supercalifragilisticexpialidociousunbreakablewordthatexceedssmallwindows",
		})
		doc.Pages = append(doc.Pages, page)
	}
	return doc
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero overlap", Config{ChunkSize: 100, ChunkOverlap: 0}, false},
		{"overlap equals size", Config{ChunkSize: 100, ChunkOverlap: 100}, true},
		{"overlap exceeds size", Config{ChunkSize: 100, ChunkOverlap: 150}, true},
		{"negative overlap", Config{ChunkSize: 100, ChunkOverlap: -1}, true},
		{"zero size", Config{ChunkSize: 0, ChunkOverlap: 0}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFlatten_PrefixesAndSeparators(t *testing.T) {
	doc := &doctree.Document{Pages: []doctree.Page{
		{Number: 1, Elements: []doctree.PageElement{{Page: 1, Kind: doctree.KindText, Content: "EPS: 4.52"}}},
		{Number: 2, Elements: []doctree.PageElement{{Page: 2, Kind: doctree.KindTable, Content: "Item\t2023\nNet Profit\t1,000,000"}}},
	}}
	blocks, text, spans := Flatten(doc)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	want := "Page 1 [TEXT]: EPS: 4.52\n\nPage 2 [TABLE]: Item\t2023\nNet Profit\t1,000,000"
	if text != want {
		t.Errorf("expected %q, got %q", want, text)
	}
	for i, sp := range spans {
		if text[sp.Start:sp.End] != blocks[i].Text {
			t.Errorf("span %d does not locate its block: %q", i, text[sp.Start:sp.End])
		}
	}

	chunks, err := Chunk(doc, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if got := chunks[0].Metadata.ApproxPages; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected approx pages [1 2], got %v", got)
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	doc := sampleDocument(6)
	_, text, spans := Flatten(doc)

	configs := []Config{
		{ChunkSize: 40, ChunkOverlap: 0},
		{ChunkSize: 40, ChunkOverlap: 10},
		{ChunkSize: 100, ChunkOverlap: 30},
		{ChunkSize: 250, ChunkOverlap: 50},
		{ChunkSize: 1000, ChunkOverlap: 200},
		{ChunkSize: 5000, ChunkOverlap: 100},
	}
	for _, cfg := range configs {
		t.Run(fmt.Sprintf("size=%d/overlap=%d", cfg.ChunkSize, cfg.ChunkOverlap), func(t *testing.T) {
			chunks := Split(text, spans, "sample.pdf", cfg)
			if len(chunks) == 0 {
				t.Fatal("expected chunks")
			}
			if chunks[0].Start != 0 {
				t.Errorf("expected first chunk to start at 0, got %d", chunks[0].Start)
			}
			if last := chunks[len(chunks)-1]; last.End != len(text) {
				t.Errorf("expected last chunk to end at %d, got %d", len(text), last.End)
			}

			rebuilt := chunks[0].Text
			for i, c := range chunks {
				if c.Index != i {
					t.Errorf("chunk %d: expected index %d, got %d", i, i, c.Index)
				}
				if c.Text != text[c.Start:c.End] {
					t.Fatalf("chunk %d is not the substring it claims to be", i)
				}
				if n := len([]rune(c.Text)); n > cfg.ChunkSize {
					t.Errorf("chunk %d: length %d exceeds size %d", i, n, cfg.ChunkSize)
				}
				if c.Metadata.Source != "sample.pdf" {
					t.Errorf("chunk %d: expected source metadata, got %q", i, c.Metadata.Source)
				}
				if len(c.Metadata.ApproxPages) == 0 {
					t.Errorf("chunk %d: expected at least one approx page", i)
				}
				if i == 0 {
					continue
				}
				prev := chunks[i-1]
				overlap := prev.End - c.Start
				if overlap < 0 {
					// Only whitespace may fall between chunks.
					gap := text[prev.End:c.Start]
					if strings.TrimSpace(gap) != "" {
						t.Fatalf("chunk %d: lost text %q after previous chunk", i, gap)
					}
					rebuilt += gap + c.Text
					continue
				}
				if overlap > cfg.ChunkOverlap {
					t.Errorf("chunk %d: overlap %d exceeds configured %d", i, overlap, cfg.ChunkOverlap)
				}
				if c.Start <= prev.Start {
					t.Errorf("chunk %d: start %d did not advance past %d", i, c.Start, prev.Start)
				}
				rebuilt += c.Text[overlap:]
			}
			if rebuilt != text {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(rebuilt), len(text))
			}
		})
	}
}

func TestSplit_PrefersParagraphBoundary(t *testing.T) {
	text := "para one is here.\n\npara two is here."
	chunks := Split(text, nil, "", Config{ChunkSize: 20, ChunkOverlap: 0})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "para one is here.\n\n" {
		t.Errorf("expected split at paragraph, got %q", chunks[0].Text)
	}
	if chunks[1].Text != "para two is here." {
		t.Errorf("unexpected second chunk %q", chunks[1].Text)
	}
}

func TestSplit_PrefersWordBoundaryOverMidWord(t *testing.T) {
	text := "alpha beta gamma delta"
	chunks := Split(text, nil, "", Config{ChunkSize: 12, ChunkOverlap: 0})
	for _, c := range chunks {
		for _, word := range strings.Fields(c.Text) {
			if !strings.Contains(text, " "+word) && !strings.HasPrefix(text, word) {
				t.Errorf("chunk %q cut a word", c.Text)
			}
		}
	}
	if chunks[0].Text != "alpha beta " {
		t.Errorf("expected first chunk %q, got %q", "alpha beta ", chunks[0].Text)
	}
}

func TestSplit_MidWordFallback(t *testing.T) {
	chunks := Split("abcdefghij", nil, "", Config{ChunkSize: 4, ChunkOverlap: 1})
	want := []string{"abcd", "defg", "ghij"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, w := range want {
		if chunks[i].Text != w {
			t.Errorf("chunk %d: expected %q, got %q", i, w, chunks[i].Text)
		}
	}
}

func TestChunk_InvalidConfig(t *testing.T) {
	_, err := Chunk(sampleDocument(1), Config{ChunkSize: 10, ChunkOverlap: 10})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestChunk_EmptyDocument(t *testing.T) {
	doc := &doctree.Document{Pages: []doctree.Page{{Number: 1}}}
	chunks, err := Chunk(doc, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks, got %d", len(chunks))
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Error("expected 0 tokens for empty text")
	}
	if got := EstimateTokens(strings.Repeat("word ", 100)); got != 133 {
		t.Errorf("expected 133 tokens, got %d", got)
	}
	// Long unbroken numbers are counted by characters.
	if got := EstimateTokens("1234567890123456"); got != 4 {
		t.Errorf("expected 4 tokens, got %d", got)
	}
}
