package config

// Config is the root configuration for the siffsd service.
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Providers ProvidersConfig `yaml:"providers,omitempty"`
	Embedding EmbeddingConfig `yaml:"embedding,omitempty"`
	Retrieval RetrievalConfig `yaml:"retrieval,omitempty"`
	Workspace WorkspaceConfig `yaml:"workspace,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	Agent     AgentConfig     `yaml:"agent,omitempty"`
	Drive     DriveConfig     `yaml:"drive,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket server.
type ServerConfig struct {
	Host           string     `yaml:"host,omitempty"`
	Port           int        `yaml:"port,omitempty"`
	Auth           ServerAuth `yaml:"auth,omitempty"`
	AllowedOrigins []string   `yaml:"allowedOrigins,omitempty"`
}

// ServerAuth configures server authentication.
type ServerAuth struct {
	Mode  string `yaml:"mode,omitempty"` // "token" | "none"
	Token string `yaml:"token,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
	File  string `yaml:"file,omitempty"`
}

// ProvidersConfig defines the LLM and embedding vendors.
type ProvidersConfig struct {
	Default   string         `yaml:"default,omitempty"` // "openai" | "anthropic" | "gemini"
	OpenAI    ProviderConfig `yaml:"openai,omitempty"`
	Anthropic ProviderConfig `yaml:"anthropic,omitempty"`
	Gemini    ProviderConfig `yaml:"gemini,omitempty"`
	Voyage    ProviderConfig `yaml:"voyage,omitempty"`
}

// ProviderConfig defines a single vendor endpoint.
type ProviderConfig struct {
	APIKey  string `yaml:"apiKey,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
	Model   string `yaml:"model,omitempty"`
	Version string `yaml:"version,omitempty"` // anthropic-version header value
}

// EmbeddingConfig selects the embedding provider and model.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider,omitempty"` // "openai" | "gemini" | "voyage"
	Model      string `yaml:"model,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty"`
	BatchSize  int    `yaml:"batchSize,omitempty"`
}

// RetrievalConfig controls chunk search behavior.
type RetrievalConfig struct {
	TopK     int     `yaml:"topK,omitempty"`
	MinScore float64 `yaml:"minScore,omitempty"`
	Hybrid   *bool   `yaml:"hybrid,omitempty"` // blend keyword hits into vector results; defaults to true
}

// WorkspaceConfig controls the tracked-file cache.
type WorkspaceConfig struct {
	Dir       string `yaml:"dir,omitempty"` // defaults to <home>/workspace
	MaxFileMB int    `yaml:"maxFileMb,omitempty"`
	MaxFiles  int    `yaml:"maxFiles,omitempty"`
}

// StoreConfig selects the chunk store backend.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite" | "memory"
	Path   string `yaml:"path,omitempty"`   // defaults to <home>/siffs.db
}

// AgentConfig defines agent runtime settings.
type AgentConfig struct {
	Model         string   `yaml:"model,omitempty"` // model alias or provider name; empty uses providers.default
	MaxTokens     int      `yaml:"maxTokens,omitempty"`
	Temperature   *float64 `yaml:"temperature,omitempty"`
	MaxIterations int      `yaml:"maxIterations,omitempty"`
	HistoryLimit  int      `yaml:"historyLimit,omitempty"`
	SystemPrompt  string   `yaml:"systemPrompt,omitempty"` // appended to the built-in prompt
}

// DriveConfig configures the Google Drive importer.
type DriveConfig struct {
	CredentialsFile string `yaml:"credentialsFile,omitempty"`
	TokenFile       string `yaml:"tokenFile,omitempty"`
}
