package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// OllamaConfig configures the Ollama embedding client.
type OllamaConfig struct {
	BaseURL   string // e.g. http://localhost:11434
	Model     string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

// OllamaEmbedder embeds text with a local Ollama server.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaEmbedder{
		baseURL:    baseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newLimiter(cfg.RateLimit, cfg.Burst),
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the unit-length embedding for text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := wait(ctx, e.limiter); err != nil {
		return nil, err
	}
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Provider: "ollama", Transient: ctx.Err() == nil, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, &ServiceError{Provider: "ollama", Transient: true, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{
			Provider:   "ollama",
			StatusCode: resp.StatusCode,
			Transient:  transientStatus(resp.StatusCode),
			Err:        fmt.Errorf("unexpected response: %s", truncate(string(respBody), 200)),
		}
	}

	var out ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &ServiceError{Provider: "ollama", Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, &ServiceError{Provider: "ollama", Err: errors.New("empty embedding in response")}
	}
	return Normalize(out.Embeddings[0]), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
