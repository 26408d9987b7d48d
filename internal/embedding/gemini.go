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

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiClient calls the Gemini batch embedding endpoint.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

// NewGeminiClient creates a Gemini embedding client.
func NewGeminiClient(apiKey, baseURL, model string, dimensions int) *GeminiClient {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Embed returns one vector per input text.
func (g *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if g.apiKey == "" {
		return nil, &llm.ProviderError{Provider: "gemini", Message: "no API key configured", Code: http.StatusUnauthorized}
	}

	requests := make([]map[string]interface{}, len(texts))
	for i, text := range texts {
		req := map[string]interface{}{
			"model": "models/" + g.model,
			"content": map[string]interface{}{
				"parts": []map[string]string{{"text": text}},
			},
		}
		if g.dimensions > 0 {
			req["outputDimensionality"] = g.dimensions
		}
		requests[i] = req
	}

	payload, err := json.Marshal(map[string]interface{}{"requests": requests})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:batchEmbedContents", g.baseURL, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
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
		return nil, &llm.ProviderError{Provider: "gemini", Message: msg, Code: resp.StatusCode}
	}

	var result struct {
		Embeddings []struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, &llm.ProviderError{
			Provider: "gemini",
			Message:  fmt.Sprintf("got %d embeddings for %d inputs", len(result.Embeddings), len(texts)),
		}
	}

	vectors := make([][]float32, len(texts))
	for i, e := range result.Embeddings {
		vectors[i] = e.Values
	}

	if err := checkDimensions("gemini", vectors, g.dimensions); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Dimensions returns the configured vector width.
func (g *GeminiClient) Dimensions() int { return g.dimensions }

// Name returns the provider name.
func (g *GeminiClient) Name() string { return "gemini" }
