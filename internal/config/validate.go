package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// loopbackHosts are hosts that may be served without an auth token.
var loopbackHosts = []string{"", "127.0.0.1", "localhost", "::1"}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Server validation
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validAuthModes := []string{"token", "none"}
	if cfg.Server.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Server.Auth.Mode) {
		issues = append(issues, ValidationIssue{
			Path:    "server.auth.mode",
			Message: fmt.Sprintf("must be one of %v, got %q", validAuthModes, cfg.Server.Auth.Mode),
		})
	}

	// SIFFS_GATEWAY_TOKEN counts: the gateway reads it when the config file
	// carries no token.
	if !slices.Contains(loopbackHosts, cfg.Server.Host) &&
		cfg.Server.Auth.Token == "" && os.Getenv("SIFFS_GATEWAY_TOKEN") == "" {
		issues = append(issues, ValidationIssue{
			Path:    "server.auth.token",
			Message: "required when binding a non-loopback host",
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validLogStyles := []string{"pretty", "json"}
	if cfg.Logging.Style != "" && !slices.Contains(validLogStyles, cfg.Logging.Style) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.style",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogStyles, cfg.Logging.Style),
		})
	}

	// Provider validation
	validProviders := []string{"openai", "anthropic", "gemini"}
	if cfg.Providers.Default != "" && !slices.Contains(validProviders, cfg.Providers.Default) {
		issues = append(issues, ValidationIssue{
			Path:    "providers.default",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, cfg.Providers.Default),
		})
	}

	providerURLs := []struct {
		path string
		raw  string
	}{
		{"providers.openai.baseUrl", cfg.Providers.OpenAI.BaseURL},
		{"providers.anthropic.baseUrl", cfg.Providers.Anthropic.BaseURL},
		{"providers.gemini.baseUrl", cfg.Providers.Gemini.BaseURL},
		{"providers.voyage.baseUrl", cfg.Providers.Voyage.BaseURL},
	}
	for _, p := range providerURLs {
		if p.raw == "" {
			continue
		}
		u, err := url.Parse(p.raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			issues = append(issues, ValidationIssue{
				Path:    p.path,
				Message: fmt.Sprintf("must be an absolute http(s) URL, got %q", p.raw),
			})
		}
	}

	// Embedding validation
	validEmbedders := []string{"openai", "gemini", "voyage"}
	if cfg.Embedding.Provider != "" && !slices.Contains(validEmbedders, cfg.Embedding.Provider) {
		issues = append(issues, ValidationIssue{
			Path:    "embedding.provider",
			Message: fmt.Sprintf("must be one of %v, got %q", validEmbedders, cfg.Embedding.Provider),
		})
	}
	if cfg.Embedding.Dimensions < 0 || cfg.Embedding.Dimensions > 8192 {
		issues = append(issues, ValidationIssue{
			Path:    "embedding.dimensions",
			Message: fmt.Sprintf("must be 0-8192, got %d", cfg.Embedding.Dimensions),
		})
	}
	if cfg.Embedding.BatchSize < 0 || cfg.Embedding.BatchSize > 2048 {
		issues = append(issues, ValidationIssue{
			Path:    "embedding.batchSize",
			Message: fmt.Sprintf("must be 0-2048, got %d", cfg.Embedding.BatchSize),
		})
	}

	// Retrieval validation
	if cfg.Retrieval.TopK < 0 || cfg.Retrieval.TopK > 100 {
		issues = append(issues, ValidationIssue{
			Path:    "retrieval.topK",
			Message: fmt.Sprintf("must be 0-100, got %d", cfg.Retrieval.TopK),
		})
	}
	if cfg.Retrieval.MinScore < 0 || cfg.Retrieval.MinScore > 1 {
		issues = append(issues, ValidationIssue{
			Path:    "retrieval.minScore",
			Message: fmt.Sprintf("must be 0-1, got %g", cfg.Retrieval.MinScore),
		})
	}

	// Workspace validation
	if cfg.Workspace.MaxFileMB < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "workspace.maxFileMb",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Workspace.MaxFileMB),
		})
	}
	if cfg.Workspace.MaxFiles < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "workspace.maxFiles",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Workspace.MaxFiles),
		})
	}

	// Store validation
	validDrivers := []string{"sqlite", "memory"}
	if cfg.Store.Driver != "" && !slices.Contains(validDrivers, cfg.Store.Driver) {
		issues = append(issues, ValidationIssue{
			Path:    "store.driver",
			Message: fmt.Sprintf("must be one of %v, got %q", validDrivers, cfg.Store.Driver),
		})
	}

	// Agent validation
	if cfg.Agent.MaxIterations < 0 || cfg.Agent.MaxIterations > 20 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.maxIterations",
			Message: fmt.Sprintf("must be 0-20, got %d", cfg.Agent.MaxIterations),
		})
	}
	if cfg.Agent.HistoryLimit < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.historyLimit",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Agent.HistoryLimit),
		})
	}
	if cfg.Agent.Temperature != nil && (*cfg.Agent.Temperature < 0 || *cfg.Agent.Temperature > 2) {
		issues = append(issues, ValidationIssue{
			Path:    "agent.temperature",
			Message: fmt.Sprintf("must be 0-2, got %g", *cfg.Agent.Temperature),
		})
	}

	return issues
}
