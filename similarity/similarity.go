// Package similarity ranks embedding vectors by cosine similarity.
//
// The ranker is a pure function over hand-constructible inputs: it never
// touches an embedding provider, which keeps it testable in isolation and
// reusable by any store that holds vectors.
package similarity

import (
	"fmt"
	"math"
	"sort"
)

// Ranked pairs a candidate's position in the input slice with its
// similarity score against the query.
type Ranked struct {
	// Index is the candidate's position in the slice passed to Rank.
	Index int

	// Score is the cosine similarity against the query, in [-1, 1].
	Score float64
}

// Cosine returns the cosine similarity between two vectors: their dot
// product divided by the product of their magnitudes.
//
// A zero-magnitude vector makes the metric undefined. That only happens
// when an embedding provider violates its contract, so it is reported as
// an error instead of silently producing NaN.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("similarity: vector dimensions differ: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("similarity: empty vectors")
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("similarity: zero-magnitude vector")
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Rank scores every candidate vector against the query and returns at most
// limit results ordered by descending similarity. Ties keep the original
// candidate order (stable sort), so identical inputs always produce
// identical output.
//
// An empty candidate set returns an empty result, not an error. Fewer
// usable candidates than limit returns all of them. A negative limit is
// treated as zero.
func Rank(query []float32, candidates [][]float32, limit int) ([]Ranked, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ranked := make([]Ranked, 0, len(candidates))
	for i, vec := range candidates {
		score, err := Cosine(query, vec)
		if err != nil {
			return nil, fmt.Errorf("rank candidate %d: %w", i, err)
		}
		ranked = append(ranked, Ranked{Index: i, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if limit < 0 {
		limit = 0
	}
	if limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
