package extract

import (
	"regexp"

	"github.com/dgallion1/finextract/internal/doctree"
)

// ContextWarning flags retrieved text that reads like instructions to the
// model rather than report content.
type ContextWarning struct {
	ChunkID string
	Index   int
	Match   string
}

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|` +
		`new\s+instructions)`,
)

// ScreenContext returns a warning for every chunk containing instruction-like
// text. Flagged chunks are still sent; the warnings are for logging.
func ScreenContext(chunks []doctree.Chunk) []ContextWarning {
	var out []ContextWarning
	for _, c := range chunks {
		if m := injectionPattern.FindString(c.Text); m != "" {
			out = append(out, ContextWarning{ChunkID: c.ID, Index: c.Index, Match: m})
		}
	}
	return out
}
