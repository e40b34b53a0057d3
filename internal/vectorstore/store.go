// Package vectorstore persists embedded chunks and retrieves them by
// similarity.
package vectorstore

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/dgallion1/finextract/internal/doctree"
)

// Record is one embedded chunk of a collection.
type Record struct {
	ID         string
	Collection string
	Position   int
	Chunk      doctree.Chunk
	Embedding  []float32
}

// Match is a search hit with its cosine similarity to the query.
type Match struct {
	Record
	Score float64
}

// Store is a backend holding records grouped by collection.
type Store interface {
	// Count returns the number of records in a collection; zero if it does
	// not exist.
	Count(ctx context.Context, collection string) (int, error)
	// Add writes records to a collection, creating it if needed.
	Add(ctx context.Context, collection string, records []Record) error
	// Search returns up to limit records ordered by descending similarity.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]Match, error)
	Close() error
}

// Cosine returns the cosine similarity of a and b, or 0 if either is zero or
// their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rank scores records against vector and keeps the best limit.
func rank(records []Record, vector []float32, limit int) []Match {
	matches := make([]Match, 0, len(records))
	for _, r := range records {
		matches = append(matches, Match{Record: r, Score: Cosine(vector, r.Embedding)})
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	if limit >= 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
