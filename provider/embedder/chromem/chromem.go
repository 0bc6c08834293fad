// Package chromem adapts chromem-go embedding functions to the provider
// Embedder interface, giving access to its hosted-API backends (OpenAI,
// Ollama) without writing the HTTP plumbing here.
package chromem

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// Embedder wraps a chromem-go EmbeddingFunc.
type Embedder struct {
	fn   chromem.EmbeddingFunc
	dims int
}

// New wraps an arbitrary chromem EmbeddingFunc. dims is the vector size
// the function is expected to produce; mismatches are reported as errors
// rather than stored.
func New(fn chromem.EmbeddingFunc, dims int) *Embedder {
	return &Embedder{fn: fn, dims: dims}
}

// NewOpenAI embeds with OpenAI's text-embedding-3-small (1536 dims).
func NewOpenAI(apiKey string) *Embedder {
	return New(chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI3Small), 1536)
}

// NewOllama embeds with a local Ollama model. baseURL may be empty for
// the default endpoint; dims must match the chosen model.
func NewOllama(model, baseURL string, dims int) *Embedder {
	return New(chromem.NewEmbeddingFuncOllama(model, baseURL), dims)
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.fn(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("chromem embedding: %w", err)
	}
	if e.dims > 0 && len(vec) != e.dims {
		return nil, fmt.Errorf("chromem embedding: got %d dimensions, want %d", len(vec), e.dims)
	}
	return vec, nil
}

func (e *Embedder) Dimensions() int { return e.dims }
