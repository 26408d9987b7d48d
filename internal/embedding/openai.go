package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/llm"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAIClient calls the OpenAI embeddings endpoint.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

// NewOpenAIClient creates an OpenAI embedding client. dimensions is passed
// through to the API so models that support shortening honor it.
func NewOpenAIClient(apiKey, baseURL, model string, dimensions int) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Embed returns one vector per input text.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.apiKey == "" {
		return nil, &llm.ProviderError{Provider: "openai", Message: "no API key configured", Code: http.StatusUnauthorized}
	}

	body := map[string]interface{}{
		"model": c.model,
		"input": texts,
	}
	if c.dimensions > 0 {
		body["dimensions"] = c.dimensions
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/embeddings", strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, &llm.ProviderError{Provider: "openai", Message: msg, Code: resp.StatusCode}
	}

	var result struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, &llm.ProviderError{
			Provider: "openai",
			Message:  fmt.Sprintf("got %d embeddings for %d inputs", len(result.Data), len(texts)),
		}
	}

	// The API may return entries out of order; place by index.
	vectors := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, &llm.ProviderError{
				Provider: "openai",
				Message:  fmt.Sprintf("embedding index %d out of range", d.Index),
			}
		}
		vectors[d.Index] = d.Embedding
	}

	if err := checkDimensions("openai", vectors, c.dimensions); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Dimensions returns the configured vector width.
func (c *OpenAIClient) Dimensions() int { return c.dimensions }

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return "openai" }
