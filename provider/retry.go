package provider

import (
	"context"
	"log"
	"time"
)

// RetryPolicy bounds how often a provider call is reattempted. Every
// provider error is treated as transient until the budget runs out;
// exhaustion surfaces as *TerminalError.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// Delay is the fixed pause between attempts.
	Delay time.Duration
}

// DefaultRetryPolicy matches the reference behavior: five attempts, one
// second apart.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 5,
	Delay:       time.Second,
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	return p
}

// retry runs call up to p.MaxAttempts times, pausing p.Delay between
// attempts and honoring context cancellation during the pause.
func retry[T any](ctx context.Context, p RetryPolicy, what string, call func() (T, error)) (T, error) {
	p = p.normalized()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		out, err := call()
		if err == nil {
			return out, nil
		}
		lastErr = err
		log.Printf("[PROVIDER] %s attempt %d/%d failed: %v", what, attempt, p.MaxAttempts, err)

		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, &TerminalError{Attempts: attempt, Err: ctx.Err()}
		case <-time.After(p.Delay):
		}
	}
	return zero, &TerminalError{Attempts: p.MaxAttempts, Err: lastErr}
}

// RetryingCompleter wraps a Completer with a bounded retry budget.
type RetryingCompleter struct {
	inner  Completer
	policy RetryPolicy
}

// NewRetryingCompleter decorates inner with the given policy.
func NewRetryingCompleter(inner Completer, policy RetryPolicy) *RetryingCompleter {
	return &RetryingCompleter{inner: inner, policy: policy}
}

func (r *RetryingCompleter) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	return retry(ctx, r.policy, "completion", func() (string, error) {
		return r.inner.Complete(ctx, prompt, opts)
	})
}

// RetryingEmbedder wraps an Embedder with the same bounded retry budget.
// The reference left embeddings without a retry policy; here they get one
// so a single network hiccup cannot abort a whole turn.
type RetryingEmbedder struct {
	inner  Embedder
	policy RetryPolicy
}

// NewRetryingEmbedder decorates inner with the given policy.
func NewRetryingEmbedder(inner Embedder, policy RetryPolicy) *RetryingEmbedder {
	return &RetryingEmbedder{inner: inner, policy: policy}
}

func (r *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return retry(ctx, r.policy, "embedding", func() ([]float32, error) {
		return r.inner.Embed(ctx, text)
	})
}

func (r *RetryingEmbedder) Dimensions() int { return r.inner.Dimensions() }
