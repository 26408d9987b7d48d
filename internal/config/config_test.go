package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 18650, cfg.Server.Port)
	assert.Equal(t, "token", cfg.Server.Auth.Mode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "openai", cfg.Providers.Default)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, 64, cfg.Embedding.BatchSize)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.25, cfg.Retrieval.MinScore, 1e-9)
	require.NotNil(t, cfg.Retrieval.Hybrid)
	assert.True(t, *cfg.Retrieval.Hybrid)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, 40, cfg.Agent.HistoryLimit)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	// Should return defaults
	assert.Equal(t, 18650, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  host: 0.0.0.0
  port: 9999
  auth:
    mode: token
    token: secret123
logging:
  level: debug
  style: json
providers:
  default: anthropic
  anthropic:
    apiKey: sk-ant-test
embedding:
  provider: voyage
  model: voyage-3
  dimensions: 1024
retrieval:
  topK: 12
  minScore: 0.4
  hybrid: false
store:
  driver: memory
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "token", cfg.Server.Auth.Mode)
	assert.Equal(t, "secret123", cfg.Server.Auth.Token)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Style)
	assert.Equal(t, "anthropic", cfg.Providers.Default)
	assert.Equal(t, "sk-ant-test", cfg.Providers.Anthropic.APIKey)
	assert.Equal(t, "voyage", cfg.Embedding.Provider)
	assert.Equal(t, 1024, cfg.Embedding.Dimensions)
	assert.Equal(t, 12, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.4, cfg.Retrieval.MinScore, 1e-9)
	require.NotNil(t, cfg.Retrieval.Hybrid)
	assert.False(t, *cfg.Retrieval.Hybrid)
	assert.Equal(t, "memory", cfg.Store.Driver)

	// Unset sections keep their defaults.
	assert.Equal(t, 64, cfg.Embedding.BatchSize)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Providers.Anthropic.Model)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{invalid yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SIFFS_PORT", "12345")
	t.Setenv("SIFFS_LOG_LEVEL", "TRACE")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 12345, cfg.Server.Port)
	assert.Equal(t, "trace", cfg.Logging.Level)
}

func TestLoadProviderKeyFallsBackToEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Providers.OpenAI.APIKey)
}

func TestLoadExpandsSensitiveFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  auth:
    token: ${SIFFS_TEST_TOKEN}
providers:
  gemini:
    apiKey: ${SIFFS_TEST_GEMINI_KEY}
  voyage:
    apiKey: ${SIFFS_TEST_UNSET_VAR}
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("SIFFS_TEST_TOKEN", "tok-expanded")
	t.Setenv("SIFFS_TEST_GEMINI_KEY", "gk-expanded")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tok-expanded", cfg.Server.Auth.Token)
	assert.Equal(t, "gk-expanded", cfg.Providers.Gemini.APIKey)
	// Unset variables are left as-is.
	assert.Equal(t, "${SIFFS_TEST_UNSET_VAR}", cfg.Providers.Voyage.APIKey)
}

func TestValidateValid(t *testing.T) {
	cfg := Defaults()
	issues := Validate(&cfg)
	assert.Empty(t, issues)
}

func TestValidateInvalidPort(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 99999
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "server.port", issues[0].Path)
}

func TestValidateInvalidDriver(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Driver = "postgres"
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "store.driver", issues[0].Path)
}

func TestValidateNonLoopbackRequiresToken(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Host = "0.0.0.0"
	issues := Validate(&cfg)
	require.NotEmpty(t, issues)

	var paths []string
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	assert.Contains(t, paths, "server.auth.token")

	cfg.Server.Auth.Token = "secret"
	assert.Empty(t, Validate(&cfg))
}

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{"server.port", []string{"server", "port"}, false},
		{"providers.openai.apiKey", []string{"providers", "openai", "apiKey"}, false},
		{"", nil, true},
		{"a..b", nil, true},
		{"__proto__.x", nil, true},
		{"x.constructor", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestGetSetValueAtPath(t *testing.T) {
	root := map[string]any{
		"server": map[string]any{
			"port": 18650,
		},
	}

	// Get existing
	val, ok := GetValueAtPath(root, []string{"server", "port"})
	assert.True(t, ok)
	assert.Equal(t, 18650, val)

	// Get missing
	_, ok = GetValueAtPath(root, []string{"server", "missing"})
	assert.False(t, ok)

	// Set existing
	SetValueAtPath(root, []string{"server", "port"}, 9999)
	val, ok = GetValueAtPath(root, []string{"server", "port"})
	assert.True(t, ok)
	assert.Equal(t, 9999, val)

	// Set new nested
	SetValueAtPath(root, []string{"providers", "openai", "model"}, "gpt-4o")
	val, ok = GetValueAtPath(root, []string{"providers", "openai", "model"})
	assert.True(t, ok)
	assert.Equal(t, "gpt-4o", val)
}

func TestUnsetValueAtPath(t *testing.T) {
	root := map[string]any{
		"server": map[string]any{
			"port": 18650,
			"host": "127.0.0.1",
		},
	}

	ok := UnsetValueAtPath(root, []string{"server", "port"})
	assert.True(t, ok)

	_, exists := GetValueAtPath(root, []string{"server", "port"})
	assert.False(t, exists)

	// Host should still be there
	val, exists := GetValueAtPath(root, []string{"server", "host"})
	assert.True(t, exists)
	assert.Equal(t, "127.0.0.1", val)

	// Unset missing key
	ok = UnsetValueAtPath(root, []string{"server", "nonexistent"})
	assert.False(t, ok)
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	raw := map[string]any{
		"server": map[string]any{
			"port": 9999,
		},
	}

	require.NoError(t, SaveRaw(path, raw))

	loaded, err := LoadRaw(path)
	require.NoError(t, err)

	val, ok := GetValueAtPath(loaded, []string{"server", "port"})
	assert.True(t, ok)
	assert.Equal(t, 9999, val)
}

func TestResolvePaths(t *testing.T) {
	t.Setenv("SIFFS_HOME", t.TempDir())
	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.NotEmpty(t, paths.Base)
	assert.Contains(t, paths.Config, "config.yaml")
	assert.Contains(t, paths.Mappings, "files_mappings.json")
	assert.Contains(t, paths.Keys, "user_api_keys.json")
	assert.Contains(t, paths.Conversations, "conversation_cache.json")
}

func TestResolvePathsCustomHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("SIFFS_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, tmp, paths.Base)
	assert.Equal(t, filepath.Join(tmp, "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(tmp, "siffs.db"), paths.DB)
}

func TestEnsureDirs(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("SIFFS_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())

	// Verify dirs exist
	for _, d := range []string{paths.Workspace, paths.Logs, paths.Credentials} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
