// Package extract builds extraction prompts and calls completion models.
package extract

import (
	"context"
	"fmt"
	"net/http"
	"unicode/utf8"
)

// Completer sends a prompt to a generative model and returns its text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// DefaultTemperature matches the sampling used for extraction runs.
const DefaultTemperature = 0.3

// ServiceError is returned when a completion provider fails.
type ServiceError struct {
	Provider   string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s completion (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s completion: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether the request may succeed if repeated.
func (e *ServiceError) Retryable() bool { return e.Transient }

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
