package llm

import (
	"fmt"
	"sync"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/config"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
)

// Registry manages LLM provider clients and resolves model references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model alias → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered LLM provider")
}

// Alias maps a model name/alias to a provider.
// e.g., Alias("sonnet", "anthropic") means "sonnet" resolves to the "anthropic" provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback sets the default provider used when no model/provider match is found.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Fallback returns the default provider name.
func (r *Registry) Fallback() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Resolve returns the Client for the given model reference.
// Resolution order: exact provider name → alias → prefix match → fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Direct provider name match
	if c, ok := r.clients[model]; ok {
		return c, nil
	}

	// Alias lookup
	if provider, ok := r.aliases[model]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}

	// Model families resolve by prefix (gpt-4o-2024-08-06, claude-sonnet-4-5, ...)
	if provider := providerForModel(model); provider != "" {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}

	// Fallback
	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no LLM provider for model %q", model)
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	return names
}

// providerForModel maps well-known model name prefixes to providers.
func providerForModel(model string) string {
	prefixes := map[string]string{
		"gpt-":    "openai",
		"o1":      "openai",
		"o3":      "openai",
		"o4":      "openai",
		"claude-": "anthropic",
		"gemini-": "gemini",
	}
	for prefix, provider := range prefixes {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			return provider
		}
	}
	return ""
}

// NewRegistryFromConfig builds a Registry with all three vendor providers.
// Providers are registered even without a configured key so requests that
// carry the caller's own key still resolve; calls without any key fail with
// ErrUnauthorized at the provider.
func NewRegistryFromConfig(cfg config.ProvidersConfig, log *logging.Logger) *Registry {
	reg := NewRegistry(log)

	reg.Register("openai", NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model))
	for _, alias := range []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1"} {
		reg.Alias(alias, "openai")
	}

	reg.Register("anthropic", NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL, cfg.Anthropic.Model, cfg.Anthropic.Version))
	for _, alias := range []string{"claude", "sonnet", "opus", "haiku"} {
		reg.Alias(alias, "anthropic")
	}

	reg.Register("gemini", NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, cfg.Gemini.Model))
	for _, alias := range []string{"gemini", "flash", "gemini-pro"} {
		reg.Alias(alias, "gemini")
	}

	fallback := cfg.Default
	if fallback == "" {
		fallback = "openai"
	}
	reg.SetFallback(fallback)

	return reg
}
