package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/config"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// --- Registry tests ---

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry(silentLog())

	mock := &MockClient{ProviderName: "test-provider"}
	reg.Register("test-provider", mock)

	client, err := reg.Resolve("test-provider")
	require.NoError(t, err)
	assert.Equal(t, "test-provider", client.Name())
}

func TestRegistryAlias(t *testing.T) {
	reg := NewRegistry(silentLog())

	mock := &MockClient{ProviderName: "anthropic"}
	reg.Register("anthropic", mock)
	reg.Alias("sonnet", "anthropic")
	reg.Alias("opus", "anthropic")

	client, err := reg.Resolve("sonnet")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", client.Name())

	client, err = reg.Resolve("opus")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", client.Name())
}

func TestRegistryModelPrefix(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("openai", &MockClient{ProviderName: "openai"})
	reg.Register("anthropic", &MockClient{ProviderName: "anthropic"})
	reg.Register("gemini", &MockClient{ProviderName: "gemini"})

	tests := map[string]string{
		"gpt-4o-2024-08-06":    "openai",
		"o3-mini":              "openai",
		"claude-sonnet-4-5":    "anthropic",
		"claude-3-5-haiku":     "anthropic",
		"gemini-2.0-flash-001": "gemini",
	}
	for model, want := range tests {
		client, err := reg.Resolve(model)
		require.NoError(t, err, model)
		assert.Equal(t, want, client.Name(), model)
	}
}

func TestRegistryFallback(t *testing.T) {
	reg := NewRegistry(silentLog())

	mock := &MockClient{ProviderName: "default-llm"}
	reg.Register("default-llm", mock)
	reg.SetFallback("default-llm")

	// Unknown model should resolve to fallback
	client, err := reg.Resolve("unknown-model-xyz")
	require.NoError(t, err)
	assert.Equal(t, "default-llm", client.Name())
	assert.Equal(t, "default-llm", reg.Fallback())
}

func TestRegistryResolveNotFound(t *testing.T) {
	reg := NewRegistry(silentLog())

	_, err := reg.Resolve("nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM provider")
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("a", &MockClient{ProviderName: "a"})
	reg.Register("b", &MockClient{ProviderName: "b"})

	names := reg.List()
	assert.Len(t, names, 2)
	assert.Contains(t, names, "a")
	assert.Contains(t, names, "b")
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := config.ProvidersConfig{
		Default:   "anthropic",
		OpenAI:    config.ProviderConfig{Model: "gpt-4o"},
		Anthropic: config.ProviderConfig{APIKey: "sk-ant", Model: "claude-sonnet-4-5"},
		Gemini:    config.ProviderConfig{Model: "gemini-2.0-flash"},
	}
	reg := NewRegistryFromConfig(cfg, silentLog())

	// All vendors register even without keys so per-request keys can be used.
	names := reg.List()
	assert.ElementsMatch(t, []string{"openai", "anthropic", "gemini"}, names)
	assert.Equal(t, "anthropic", reg.Fallback())

	client, err := reg.Resolve("sonnet")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", client.Name())
}

func TestNewRegistryFromConfigDefaultFallback(t *testing.T) {
	reg := NewRegistryFromConfig(config.ProvidersConfig{}, silentLog())
	assert.Equal(t, "openai", reg.Fallback())
}

// --- MockClient tests ---

func TestMockClientComplete(t *testing.T) {
	mock := &MockClient{
		ProviderName: "test",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{
				Content: "The answer is 42",
				Usage:   Usage{InputTokens: 10, OutputTokens: 5},
			}, nil
		},
	}

	resp, err := mock.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "What is the answer?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42", resp.Content)
	assert.Equal(t, 10, resp.Usage.InputTokens)
}

func TestMockClientStream(t *testing.T) {
	mock := &MockClient{ProviderName: "test"}

	ch, err := mock.Stream(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	var events []StreamEvent
	for evt := range ch {
		events = append(events, evt)
	}

	assert.Len(t, events, 2)
	assert.Equal(t, "delta", events[0].Type)
	assert.Equal(t, "done", events[1].Type)
}

func TestMockClientDefaultComplete(t *testing.T) {
	mock := &MockClient{ProviderName: "default"}
	resp, err := mock.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "mock response", resp.Content)
}

// --- Error tests ---

func TestProviderError(t *testing.T) {
	err := &ProviderError{Provider: "anthropic", Message: "rate limited", Code: 429}
	assert.Equal(t, "anthropic: 429 rate limited", err.Error())

	err2 := &ProviderError{Provider: "gemini", Message: "unknown error"}
	assert.Equal(t, "gemini: unknown error", err2.Error())
}

func TestProviderErrorSentinels(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{401, ErrUnauthorized},
		{403, ErrUnauthorized},
		{429, ErrRateLimited},
		{500, ErrUnavailable},
		{503, ErrUnavailable},
		{529, ErrUnavailable},
	}
	for _, tt := range tests {
		err := &ProviderError{Provider: "p", Message: "m", Code: tt.code}
		assert.True(t, errors.Is(err, tt.want), "code %d should match %v", tt.code, tt.want)
	}

	// 400s without a sentinel mapping stay bare.
	err := &ProviderError{Provider: "p", Message: "m", Code: 400}
	assert.False(t, errors.Is(err, ErrUnauthorized))
	assert.False(t, errors.Is(err, ErrRateLimited))
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestProviderErrorAs(t *testing.T) {
	mock := &MockClient{
		ProviderName: "test",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return nil, &ProviderError{Provider: "test", Message: "rate limited", Code: 429}
		},
	}

	_, err := mock.Complete(context.Background(), CompletionRequest{})
	assert.Error(t, err)

	var provErr *ProviderError
	assert.ErrorAs(t, err, &provErr)
	assert.Equal(t, 429, provErr.Code)
}

func TestAPIError(t *testing.T) {
	err := apiError("anthropic", 429, []byte(`{"error":"overloaded"}`))
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 429, provErr.Code)
	assert.Contains(t, provErr.Message, "overloaded")

	// Empty bodies fall back to the status text.
	err = apiError("gemini", 503, nil)
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "Service Unavailable", provErr.Message)
}

func TestProviderErrorFormat(t *testing.T) {
	tests := []struct {
		err  ProviderError
		want string
	}{
		{ProviderError{Provider: "a", Message: "fail", Code: 500}, "a: 500 fail"},
		{ProviderError{Provider: "b", Message: "oops"}, "b: oops"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error(), fmt.Sprintf("%+v", tt.err))
	}
}

// --- Core type tests ---

func TestCompletionRequestJSON(t *testing.T) {
	temp := 0.7
	req := CompletionRequest{
		Model:       "claude-sonnet-4-5",
		System:      "You are helpful.",
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		MaxTokens:   1024,
		Temperature: &temp,
		APIKey:      "sk-should-not-serialize",
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-should-not-serialize")

	var decoded CompletionRequest
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, req.Model, decoded.Model)
	assert.Equal(t, req.Messages[0].Content, decoded.Messages[0].Content)
	assert.Empty(t, decoded.APIKey)
}

func TestStreamEventTypes(t *testing.T) {
	delta := StreamEvent{Type: "delta", Content: "hello"}
	assert.Equal(t, "delta", delta.Type)

	errEvt := StreamEvent{Type: "error", Error: "something broke"}
	assert.Equal(t, "error", errEvt.Type)

	done := StreamEvent{
		Type:     "done",
		Response: &CompletionResponse{Content: "full text"},
	}
	assert.Equal(t, "done", done.Type)
	assert.Equal(t, "full text", done.Response.Content)
}

func TestParseJSONSchema(t *testing.T) {
	schema := parseJSONSchema(`{"type":"object","properties":{"x":{"type":"string"}}}`)
	require.NotNil(t, schema)
	assert.Equal(t, "object", schema["type"])

	assert.Nil(t, parseJSONSchema(""))
	assert.Nil(t, parseJSONSchema("not json"))
}
