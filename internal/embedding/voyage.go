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

const defaultVoyageBaseURL = "https://api.voyageai.com"

// VoyageClient calls the Voyage AI embeddings endpoint.
type VoyageClient struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

// NewVoyageClient creates a Voyage embedding client. Voyage models have
// fixed widths, so dimensions is only used for verification.
func NewVoyageClient(apiKey, baseURL, model string, dimensions int) *VoyageClient {
	if baseURL == "" {
		baseURL = defaultVoyageBaseURL
	}
	return &VoyageClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Embed returns one vector per input text.
func (v *VoyageClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if v.apiKey == "" {
		return nil, &llm.ProviderError{Provider: "voyage", Message: "no API key configured", Code: http.StatusUnauthorized}
	}

	payload, err := json.Marshal(map[string]interface{}{
		"model": v.model,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", v.baseURL+"/v1/embeddings", strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.client.Do(httpReq)
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
		return nil, &llm.ProviderError{Provider: "voyage", Message: msg, Code: resp.StatusCode}
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
			Provider: "voyage",
			Message:  fmt.Sprintf("got %d embeddings for %d inputs", len(result.Data), len(texts)),
		}
	}

	vectors := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, &llm.ProviderError{
				Provider: "voyage",
				Message:  fmt.Sprintf("embedding index %d out of range", d.Index),
			}
		}
		vectors[d.Index] = d.Embedding
	}

	if err := checkDimensions("voyage", vectors, v.dimensions); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Dimensions returns the configured vector width.
func (v *VoyageClient) Dimensions() int { return v.dimensions }

// Name returns the provider name.
func (v *VoyageClient) Name() string { return "voyage" }
