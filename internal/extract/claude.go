package extract

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeConfig configures the Anthropic completion client.
type ClaudeConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
	BaseURL     string // optional, for proxies and tests
}

// ClaudeClient calls the Anthropic Messages API.
type ClaudeClient struct {
	client      sdk.Client
	model       string
	maxTokens   int64
	temperature float64
}

const defaultClaudeModel = "claude-sonnet-4-5-20250929"

func NewClaudeClient(cfg ClaudeConfig) (*ClaudeClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("claude client: api key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are handled by the pipeline.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	c := &ClaudeClient{
		client:      sdk.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
	if c.model == "" {
		c.model = defaultClaudeModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = 4096
	}
	return c, nil
}

func (c *ClaudeClient) Model() string { return c.model }

// Complete sends prompt as a single user message and joins the text blocks of
// the reply.
func (c *ClaudeClient) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: sdk.Float(c.temperature),
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	})
	if err != nil {
		return "", claudeError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &ServiceError{Provider: "claude", Err: errors.New("empty response")}
	}
	return sb.String(), nil
}

func claudeError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return &ServiceError{
			Provider:   "claude",
			StatusCode: apiErr.StatusCode,
			Transient:  transientStatus(apiErr.StatusCode),
			Err:        errors.New(truncate(err.Error(), 300)),
		}
	}
	return &ServiceError{Provider: "claude", Transient: !errors.Is(err, context.Canceled), Err: err}
}
