package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/finextract/internal/embed"
	"github.com/dgallion1/finextract/internal/extract"
)

// retryable is implemented by service errors that classify themselves.
type retryable interface {
	Retryable() bool
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var r retryable
	return errors.As(err, &r) && r.Retryable()
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// MaxRetries is the number of attempts made for a retryable call.
const MaxRetries = 3

// retrier runs calls up to MaxRetries times while they fail retryably.
type retrier struct {
	backoff func(attempt int) time.Duration
	log     *slog.Logger
}

func (r retrier) do(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := range MaxRetries {
		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) || attempt == MaxRetries-1 {
			break
		}
		r.log.Warn("retryable error", "op", op, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(r.backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// retryEmbedder retries transient embedding failures.
type retryEmbedder struct {
	embed.Embedder
	r retrier
}

func (e retryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := e.r.do(ctx, "embed", func() error {
		var err error
		vec, err = e.Embedder.Embed(ctx, text)
		return err
	})
	return vec, err
}

// retryCompleter retries transient completion failures.
type retryCompleter struct {
	extract.Completer
	r retrier
}

func (c retryCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var text string
	err := c.r.do(ctx, "complete", func() error {
		var err error
		text, err = c.Completer.Complete(ctx, prompt)
		return err
	})
	return text, err
}
