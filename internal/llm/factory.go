package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Provider names accepted by NewTextGenerator and NewEmbedder.
const (
	ProviderGemini  = "gemini"
	ProviderGroq    = "groq"
	ProviderOpenAI  = "openai"
	ProviderOffline = "offline"
	ProviderHash    = "hash"
)

// Config selects and tunes the providers. API keys come from the
// environment (GEMINI_API_KEY, GROQ_API_KEY, OPENAI_API_KEY).
type Config struct {
	Provider      string
	Model         string
	Temperature   float32
	BaseURL       string
	EmbedProvider string
	EmbedModel    string
	EmbedDim      int
	CacheSize     int
	Retries       int
	Logger        *slog.Logger
}

// NewTextGenerator builds the configured generator wrapped with retries
// and an LRU cache. An empty provider selects offline.
func NewTextGenerator(ctx context.Context, cfg Config) (TextGenerator, error) {
	var gen TextGenerator
	switch cfg.Provider {
	case ProviderOffline, "":
		gen = OfflineGenerator{}
	case ProviderGemini:
		g, err := NewGeminiClient(ctx, GeminiOptions{
			APIKey:      os.Getenv("GEMINI_API_KEY"),
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		gen = g
	case ProviderGroq:
		gen = NewOpenAIClient(OpenAIOptions{
			BaseURL:     orDefault(cfg.BaseURL, GroqBaseURL),
			APIKey:      os.Getenv("GROQ_API_KEY"),
			Model:       orDefault(cfg.Model, "llama-3.1-8b-instant"),
			Temperature: cfg.Temperature,
		})
	case ProviderOpenAI:
		gen = NewOpenAIClient(OpenAIOptions{
			BaseURL:     orDefault(cfg.BaseURL, OpenAIBaseURL),
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       orDefault(cfg.Model, "gpt-4o-mini"),
			Temperature: cfg.Temperature,
		})
	default:
		return nil, fmt.Errorf("llm: unknown text provider %q", cfg.Provider)
	}
	if cfg.Retries > 1 {
		gen = RetryGenerator{Next: gen, Policy: RetryPolicy{Attempts: cfg.Retries, Logger: cfg.Logger}}
	}
	cached, err := NewCachedGenerator(gen, cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// NewEmbedder builds the configured embedder wrapped with retries. An
// empty provider selects the offline hash embedder.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	var emb Embedder
	switch cfg.EmbedProvider {
	case ProviderHash, ProviderOffline, "":
		return HashEmbedder{Dim: cfg.EmbedDim}, nil
	case ProviderGemini:
		g, err := NewGeminiClient(ctx, GeminiOptions{
			APIKey:     os.Getenv("GEMINI_API_KEY"),
			EmbedModel: cfg.EmbedModel,
			EmbedDim:   cfg.EmbedDim,
		})
		if err != nil {
			return nil, err
		}
		emb = g
	case ProviderOpenAI:
		emb = NewOpenAIClient(OpenAIOptions{
			BaseURL:    orDefault(cfg.BaseURL, OpenAIBaseURL),
			APIKey:     os.Getenv("OPENAI_API_KEY"),
			EmbedModel: orDefault(cfg.EmbedModel, "text-embedding-3-small"),
			EmbedDim:   cfg.EmbedDim,
		})
	default:
		return nil, fmt.Errorf("llm: unknown embed provider %q", cfg.EmbedProvider)
	}
	if cfg.Retries > 1 {
		emb = RetryEmbedder{Next: emb, Policy: RetryPolicy{Attempts: cfg.Retries, Logger: cfg.Logger}}
	}
	return emb, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
