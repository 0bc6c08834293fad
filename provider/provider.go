// Package provider defines the external capabilities the session depends
// on: text embedding and prompt completion. Both are network-bound and
// may fail transiently, so the package also carries the bounded-retry
// decorators and the error kinds the orchestration layer branches on.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Embedder converts text to a fixed-length vector. Implementations:
// mock (tests), chromem-go embedding functions (OpenAI/Ollama), ONNX
// (local model, behind the onnx build tag).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Completer generates a continuation for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// Options are the sampling controls passed through to the backend.
// Backends that lack a knob ignore it.
type Options struct {
	Temperature      float64
	MaxTokens        int64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64

	// Stop sequences terminate generation, typically the speaker labels
	// so the model cannot write the other side of the dialogue.
	Stop []string
}

// DefaultOptions returns the deterministic low-temperature settings the
// session uses for both responses and note distillation.
func DefaultOptions(stop ...string) Options {
	return Options{
		Temperature: 0,
		MaxTokens:   400,
		TopP:        1,
		Stop:        stop,
	}
}

// TerminalError means the retry budget for a provider call is exhausted.
// It must be surfaced, never converted into a fabricated success value.
type TerminalError struct {
	Attempts int
	Err      error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("provider failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TerminalError) Unwrap() error { return e.Err }

// IsTerminal reports whether err carries an exhausted retry budget.
func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}
