package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultHashDimension is the vector size used when HashEmbedder.Dim is zero.
const DefaultHashDimension = 256

// HashEmbedder is an offline embedder based on feature hashing of lowercase
// words and adjacent word pairs. Texts sharing vocabulary get similar vectors.
// It needs no network and is deterministic.
type HashEmbedder struct {
	Dim int
}

// Embed returns the unit-length hashed feature vector for text.
func (h HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dim := h.Dim
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		addFeature(vec, w, 1)
		if i > 0 {
			addFeature(vec, words[i-1]+" "+w, 0.5)
		}
	}
	return Normalize(vec), nil
}

func addFeature(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(len(vec)))
	// The top bit picks the sign so collisions tend to cancel.
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}
