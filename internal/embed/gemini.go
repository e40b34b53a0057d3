package embed

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini embedding client.
type GeminiConfig struct {
	APIKey    string
	Model     string
	RateLimit float64 // requests per second, 0 for unlimited
	Burst     int
}

// GeminiEmbedder embeds text with the Gemini embedding API.
type GeminiEmbedder struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

const defaultGeminiEmbedModel = "text-embedding-004"

// NewGeminiEmbedder creates a Gemini embedding client.
func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini embedder: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiEmbedModel
	}
	return &GeminiEmbedder{
		client:  client,
		model:   model,
		limiter: newLimiter(cfg.RateLimit, cfg.Burst),
	}, nil
}

// Embed returns the embedding for text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := wait(ctx, e.limiter); err != nil {
		return nil, err
	}
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{})
	if err != nil {
		return nil, geminiError(err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, &ServiceError{Provider: "gemini", Err: errors.New("empty embedding in response")}
	}
	return resp.Embeddings[0].Values, nil
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ServiceError{
			Provider:   "gemini",
			StatusCode: apiErr.Code,
			Transient:  transientStatus(apiErr.Code),
			Err:        err,
		}
	}
	return &ServiceError{Provider: "gemini", Transient: !errors.Is(err, context.Canceled), Err: err}
}
