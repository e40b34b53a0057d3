// Package embed turns text into dense vectors for similarity search.
package embed

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"golang.org/x/time/rate"
)

// Embedder produces a vector for a piece of text. Vectors from one Embedder
// always have the same dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ServiceError is returned when an embedding provider fails.
type ServiceError struct {
	Provider   string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s embedding (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s embedding: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether the request may succeed if repeated.
func (e *ServiceError) Retryable() bool { return e.Transient }

// transientStatus reports whether an HTTP status is worth retrying.
func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Normalize scales vec to unit length in place. Zero vectors are returned
// unchanged.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}

// newLimiter returns a limiter for rps requests per second, or nil when rps is
// not positive.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
