// Package embedding turns text into vectors via the configured provider
// (OpenAI, Gemini, or Voyage). All providers implement the same Client
// interface; callers batch inputs themselves and treat the returned
// vectors as row-aligned with the input slice.
package embedding

import (
	"context"
	"fmt"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/config"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/llm"
)

// Client is the interface all embedding providers implement.
type Client interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the configured vector width.
	Dimensions() int

	// Name returns the provider name (e.g., "openai", "voyage").
	Name() string
}

// NewFromConfig builds the embedding client selected by the config.
func NewFromConfig(cfg config.EmbeddingConfig, providers config.ProvidersConfig) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(providers.OpenAI.APIKey, providers.OpenAI.BaseURL, cfg.Model, cfg.Dimensions), nil
	case "gemini":
		return NewGeminiClient(providers.Gemini.APIKey, providers.Gemini.BaseURL, cfg.Model, cfg.Dimensions), nil
	case "voyage":
		return NewVoyageClient(providers.Voyage.APIKey, providers.Voyage.BaseURL, cfg.Model, cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// checkDimensions verifies every returned vector has the expected width.
func checkDimensions(provider string, vectors [][]float32, want int) error {
	if want <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != want {
			return &llm.ProviderError{
				Provider: provider,
				Message:  fmt.Sprintf("embedding %d has %d dimensions, want %d", i, len(v), want),
			}
		}
	}
	return nil
}
