package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	hybrid := true
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 18650,
			Auth: ServerAuth{
				Mode: "token",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
		Providers: ProvidersConfig{
			Default: "openai",
			OpenAI: ProviderConfig{
				Model: "gpt-4o",
			},
			Anthropic: ProviderConfig{
				Model:   "claude-sonnet-4-5",
				Version: "2023-06-01",
			},
			Gemini: ProviderConfig{
				Model: "gemini-2.0-flash",
			},
			Voyage: ProviderConfig{
				Model: "voyage-3",
			},
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			BatchSize:  64,
		},
		Retrieval: RetrievalConfig{
			TopK:     8,
			MinScore: 0.25,
			Hybrid:   &hybrid,
		},
		Workspace: WorkspaceConfig{
			MaxFileMB: 50,
			MaxFiles:  200,
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Agent: AgentConfig{
			MaxTokens:     4096,
			MaxIterations: 5,
			HistoryLimit:  40,
		},
	}
}
