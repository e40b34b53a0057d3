package extract

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini completion client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
}

// GeminiClient calls the Gemini generateContent API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float64
}

const defaultGeminiModel = "gemini-2.0-flash"

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini client: api key is required")
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
		model = defaultGeminiModel
	}
	return &GeminiClient{client: client, model: model, temperature: cfg.Temperature}, nil
}

func (c *GeminiClient) Model() string { return c.model }

func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(c.temperature)),
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &ServiceError{
				Provider:   "gemini",
				StatusCode: apiErr.Code,
				Transient:  transientStatus(apiErr.Code),
				Err:        err,
			}
		}
		return "", &ServiceError{Provider: "gemini", Transient: !errors.Is(err, context.Canceled), Err: err}
	}
	text := result.Text()
	if text == "" {
		return "", &ServiceError{Provider: "gemini", Err: errors.New("empty response")}
	}
	return text, nil
}
