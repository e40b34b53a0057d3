package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/finextract/internal/chunker"
	"github.com/dgallion1/finextract/internal/config"
	"github.com/dgallion1/finextract/internal/embed"
	"github.com/dgallion1/finextract/internal/extract"
	"github.com/dgallion1/finextract/internal/pipeline"
	"github.com/dgallion1/finextract/internal/record"
	"github.com/dgallion1/finextract/internal/vectorstore"
)

// components are the long-lived pieces built from config.
type components struct {
	pipeline *pipeline.Pipeline
	stats    *extract.LLMStats
	model    string
	store    vectorstore.Store
}

func (c *components) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*components, error) {
	emb, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	comp, err := newCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	norm, err := newNormalizer(cfg.Extract)
	if err != nil {
		return nil, err
	}
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	stats := extract.NewLLMStats(cfg.Server.JobTTL)
	p, err := pipeline.New(pipeline.Options{
		Chunk: chunker.Config{ChunkSize: cfg.Chunk.Size, ChunkOverlap: cfg.Chunk.Overlap},
		Retrieval: vectorstore.GatewayConfig{
			FetchK:      cfg.Retrieval.FetchK,
			Lambda:      cfg.Retrieval.Lambda,
			Concurrency: cfg.Embedding.Concurrency,
		},
		K:              cfg.Retrieval.K,
		Query:          cfg.Retrieval.Query,
		MaxInputTokens: cfg.Completion.MaxInputTokens,
		Lenient:        cfg.Extract.Lenient,
	}, pipeline.Deps{
		Embedder:   emb,
		Store:      store,
		Completer:  comp,
		Counter:    newCounter(cfg.Completion, log),
		Stats:      stats,
		Normalizer: norm,
		Logger:     log,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return &components{pipeline: p, stats: stats, model: comp.Model(), store: store}, nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	ec := cfg.Embedding
	switch ec.Provider {
	case "gemini":
		return embed.NewGeminiEmbedder(ctx, embed.GeminiConfig{
			APIKey:    cfg.Credentials.GeminiAPIKey,
			Model:     ec.Model,
			RateLimit: ec.RateLimit,
			Burst:     ec.Burst,
		})
	case "ollama":
		return embed.NewOllamaEmbedder(embed.OllamaConfig{
			BaseURL:   ec.BaseURL,
			Model:     ec.Model,
			Timeout:   ec.Timeout,
			RateLimit: ec.RateLimit,
			Burst:     ec.Burst,
		}), nil
	case "hash":
		return embed.HashEmbedder{Dim: ec.Dimension}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}
}

func newCompleter(ctx context.Context, cfg *config.Config) (extract.Completer, error) {
	cc := cfg.Completion
	switch cc.Provider {
	case "anthropic":
		return extract.NewClaudeClient(extract.ClaudeConfig{
			APIKey:      cfg.Credentials.AnthropicAPIKey,
			Model:       cc.Model,
			MaxTokens:   cc.MaxTokens,
			Temperature: cc.Temperature,
			BaseURL:     cc.BaseURL,
		})
	case "gemini":
		return extract.NewGeminiClient(ctx, extract.GeminiConfig{
			APIKey:      cfg.Credentials.GeminiAPIKey,
			Model:       cc.Model,
			Temperature: cc.Temperature,
		})
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cc.Provider)
	}
}

func newStore(ctx context.Context, cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return vectorstore.NewMemoryStore(), nil
	case "sqlite":
		return vectorstore.NewSQLite(ctx, cfg.Store.DSN)
	case "postgres":
		return vectorstore.NewPostgres(ctx, cfg.Store.DSN, cfg.Embedding.Dimension)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newCounter(cc config.CompletionConfig, log *slog.Logger) extract.TokenCounter {
	if cc.Tokenizer == "estimate" {
		return extract.EstimateCounter{}
	}
	return &extract.TiktokenCounter{Log: log}
}

func newNormalizer(ec config.ExtractConfig) (*record.Normalizer, error) {
	if ec.Columns == "" {
		return record.DefaultNormalizer()
	}
	f, err := os.Open(ec.Columns)
	if err != nil {
		return nil, fmt.Errorf("open column map: %w", err)
	}
	defer f.Close()
	cm, err := record.LoadColumns(f)
	if err != nil {
		return nil, err
	}
	return record.NewNormalizer(cm)
}
