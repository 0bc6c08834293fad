// Package mock provides a deterministic offline embedder for tests and
// local development. Vectors are built from hashed tokens, so texts that
// share words land near each other, close enough to exercise similarity
// ranking without a model.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder generates deterministic embeddings from token hashes.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder producing vectors of the given size.
// dims <= 0 defaults to 384 (all-MiniLM-L6-v2 size).
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = 384
	}
	return &Embedder{dimensions: dims}
}

// Embed sums a pseudo-random unit vector per lowercase token and
// normalizes the result. Identical text always yields identical vectors.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embedding := make([]float32, e.dimensions)

	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		tokens = []string{text}
	}
	for _, tok := range tokens {
		seed := hashToken(tok)
		for i := 0; i < e.dimensions; i++ {
			// LCG stream seeded by the token hash.
			seed = seed*6364136223846793005 + 1442695040888963407
			embedding[i] += float32(int64(seed)) / float32(math.MaxInt64)
		}
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int { return e.dimensions }

func hashToken(tok string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(tok))
	return h.Sum64()
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// Never produce the zero vector; rankers treat it as a contract
		// violation.
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
