package chunker

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/finextract/internal/doctree"
)

// Config controls chunking behavior. Sizes are in characters.
type Config struct {
	ChunkSize    int // Maximum chunk length.
	ChunkOverlap int // Maximum text shared by consecutive chunks.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// ErrInvalidConfig is wrapped by every Config.Validate failure.
var ErrInvalidConfig = errors.New("invalid chunk config")

// Validate checks that overlap is smaller than the chunk size.
func (c Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidConfig, c.ChunkSize)
	case c.ChunkOverlap < 0:
		return fmt.Errorf("%w: chunk overlap %d must not be negative", ErrInvalidConfig, c.ChunkOverlap)
	case c.ChunkOverlap >= c.ChunkSize:
		return fmt.Errorf("%w: chunk overlap %d must be less than chunk size %d", ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// blockSeparator joins rendered text blocks in the flattened text.
const blockSeparator = "\n\n"

// Split points, most preferred first. The empty separator splits between
// characters.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Span locates a text block inside the flattened text.
type Span struct {
	Start, End int
	Page       int
}

// Flatten renders every element as a TextBlock and joins them with a blank
// line. Spans give each block's byte range in the returned text.
func Flatten(doc *doctree.Document) ([]doctree.TextBlock, string, []Span) {
	var blocks []doctree.TextBlock
	for _, page := range doc.Pages {
		for _, el := range page.Elements {
			blocks = append(blocks, el.Render())
		}
	}

	var sb strings.Builder
	spans := make([]Span, 0, len(blocks))
	for i, b := range blocks {
		if i > 0 {
			sb.WriteString(blockSeparator)
		}
		start := sb.Len()
		sb.WriteString(b.Text)
		spans = append(spans, Span{Start: start, End: sb.Len(), Page: b.SourcePage})
	}
	return blocks, sb.String(), spans
}

// Chunk flattens a document and splits it into overlapping windows.
func Chunk(doc *doctree.Document, cfg Config) ([]doctree.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	_, text, spans := Flatten(doc)
	return Split(text, spans, doc.Source, cfg), nil
}

// Split breaks text into windows of at most cfg.ChunkSize characters,
// preferring paragraph, line, sentence and word boundaries in that order.
// Consecutive windows share at most cfg.ChunkOverlap characters. Every chunk
// is an exact substring of text located by Start/End. Whitespace-only
// windows are dropped.
func Split(text string, spans []Span, source string, cfg Config) []doctree.Chunk {
	if text == "" {
		return nil
	}
	s := &splitter{text: text, size: cfg.ChunkSize, overlap: cfg.ChunkOverlap}
	windows := s.split(segment{0, len(text)}, separators)

	chunks := make([]doctree.Chunk, 0, len(windows))
	for _, w := range windows {
		body := text[w.start:w.end]
		if strings.TrimSpace(body) == "" {
			continue
		}
		chunks = append(chunks, doctree.Chunk{
			Index: len(chunks),
			Text:  body,
			Start: w.start,
			End:   w.end,
			Metadata: doctree.ChunkMetadata{
				Source:      source,
				ApproxPages: pagesBetween(spans, w.start, w.end),
			},
		})
	}
	return chunks
}

// pagesBetween returns the sorted pages of blocks intersecting [start, end).
func pagesBetween(spans []Span, start, end int) []int {
	seen := make(map[int]bool)
	var pages []int
	for _, sp := range spans {
		if sp.End <= start || sp.Start >= end {
			continue
		}
		if !seen[sp.Page] {
			seen[sp.Page] = true
			pages = append(pages, sp.Page)
		}
	}
	sort.Ints(pages)
	return pages
}

type segment struct {
	start, end int
}

type splitter struct {
	text    string
	size    int
	overlap int
}

func (s *splitter) length(seg segment) int {
	return utf8.RuneCountInString(s.text[seg.start:seg.end])
}

func (s *splitter) split(seg segment, seps []string) []segment {
	sep, rest := "", []string(nil)
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(s.text[seg.start:seg.end], candidate) {
			sep, rest = candidate, seps[i+1:]
			break
		}
	}

	var out, fits []segment
	for _, piece := range s.cut(seg, sep) {
		if s.length(piece) <= s.size {
			fits = append(fits, piece)
			continue
		}
		if len(fits) > 0 {
			out = append(out, s.merge(fits)...)
			fits = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
			continue
		}
		out = append(out, s.split(piece, rest)...)
	}
	if len(fits) > 0 {
		out = append(out, s.merge(fits)...)
	}
	return out
}

// cut divides seg after each occurrence of sep so the separator stays with
// the preceding piece. Pieces are contiguous and non-empty.
func (s *splitter) cut(seg segment, sep string) []segment {
	body := s.text[seg.start:seg.end]
	var out []segment
	if sep == "" {
		for i, r := range body {
			out = append(out, segment{seg.start + i, seg.start + i + utf8.RuneLen(r)})
		}
		return out
	}

	last := 0
	for {
		i := strings.Index(body[last:], sep)
		if i < 0 {
			break
		}
		end := last + i + len(sep)
		out = append(out, segment{seg.start + last, seg.start + end})
		last = end
	}
	if last < len(body) {
		out = append(out, segment{seg.start + last, seg.end})
	}
	return out
}

// merge greedily packs contiguous pieces into windows, carrying a tail of at
// most s.overlap characters into the next window.
func (s *splitter) merge(pieces []segment) []segment {
	var out []segment
	var window []segment
	var lengths []int
	total := 0

	for _, p := range pieces {
		l := s.length(p)
		if total+l > s.size && len(window) > 0 {
			out = append(out, segment{window[0].start, window[len(window)-1].end})
			for len(window) > 0 && (total > s.overlap || total+l > s.size) {
				total -= lengths[0]
				window, lengths = window[1:], lengths[1:]
			}
		}
		window = append(window, p)
		lengths = append(lengths, l)
		total += l
	}
	if len(window) > 0 {
		out = append(out, segment{window[0].start, window[len(window)-1].end})
	}
	return out
}
