package vectorstore

import "math"

// MMR selects up to k candidates by maximal marginal relevance: each step picks
// the candidate maximising lambda*sim(query) - (1-lambda)*max sim(selected).
// Ties keep the earlier candidate.
func MMR(query []float32, candidates []Match, k int, lambda float64) []Match {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	k = min(k, len(candidates))

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = Cosine(query, c.Embedding)
	}
	// redundancy[i] is the highest similarity of candidate i to any selected one.
	redundancy := make([]float64, len(candidates))
	for i := range redundancy {
		redundancy[i] = math.Inf(-1)
	}
	used := make([]bool, len(candidates))

	selected := make([]Match, 0, k)
	for len(selected) < k {
		best, bestScore := -1, math.Inf(-1)
		for i := range candidates {
			if used[i] {
				continue
			}
			score := relevance[i]
			if len(selected) > 0 {
				score = lambda*relevance[i] - (1-lambda)*redundancy[i]
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		used[best] = true
		selected = append(selected, candidates[best])
		for i := range candidates {
			if used[i] {
				continue
			}
			if s := Cosine(candidates[i].Embedding, candidates[best].Embedding); s > redundancy[i] {
				redundancy[i] = s
			}
		}
	}
	return selected
}
