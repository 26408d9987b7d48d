package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiClient is a direct HTTP client for the Google Gemini API.
type GeminiClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewGeminiClient creates a new Gemini API client.
func NewGeminiClient(apiKey, baseURL, model string) *GeminiClient {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Complete sends a non-streaming completion request.
func (g *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	body := g.buildRequestBody(req)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.modelFor(req))
	httpReq, err := g.newRequest(ctx, req, endpoint, payload)
	if err != nil {
		return nil, err
	}

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
		return nil, apiError("gemini", resp.StatusCode, respBody)
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return g.responseToCompletion(&result, time.Since(start)), nil
}

// Stream sends a streaming completion request using SSE framing.
func (g *GeminiClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	eventChan := make(chan StreamEvent)

	body := g.buildRequestBody(req)
	payload, err := json.Marshal(body)
	if err != nil {
		close(eventChan)
		return eventChan, fmt.Errorf("failed to marshal request: %w", err)
	}

	go g.streamRequest(ctx, req, eventChan, payload)
	return eventChan, nil
}

// Name returns the provider name.
func (g *GeminiClient) Name() string {
	return "gemini"
}

// Helper methods

func (g *GeminiClient) key(req CompletionRequest) string {
	if req.APIKey != "" {
		return req.APIKey
	}
	return g.apiKey
}

func (g *GeminiClient) modelFor(req CompletionRequest) string {
	if req.Model != "" && req.Model != "gemini" && strings.HasPrefix(req.Model, "gemini-") {
		return req.Model
	}
	return g.model
}

func (g *GeminiClient) newRequest(ctx context.Context, req CompletionRequest, endpoint string, payload []byte) (*http.Request, error) {
	key := g.key(req)
	if key == "" {
		return nil, &ProviderError{Provider: "gemini", Message: "no API key configured", Code: http.StatusUnauthorized}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", key)
	return httpReq, nil
}

func (g *GeminiClient) buildRequestBody(req CompletionRequest) map[string]interface{} {
	contents := make([]map[string]interface{}, 0, len(req.Messages))
	for _, msg := range req.Messages {
		// Gemini only knows user and model roles.
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, map[string]interface{}{
			"role": role,
			"parts": []map[string]string{
				{"text": msg.Content},
			},
		})
	}

	generationConfig := map[string]interface{}{
		"maxOutputTokens": req.MaxTokens,
	}
	if req.Temperature != nil {
		generationConfig["temperature"] = *req.Temperature
	}

	body := map[string]interface{}{
		"contents":         contents,
		"generationConfig": generationConfig,
	}

	if req.System != "" {
		body["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]string{
				{"text": req.System},
			},
		}
	}

	if len(req.Tools) > 0 {
		declarations := make([]map[string]interface{}, len(req.Tools))
		for i, t := range req.Tools {
			declarations[i] = map[string]interface{}{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  parseJSONSchema(t.InputSchema),
			}
		}
		body["tools"] = []map[string]interface{}{
			{"functionDeclarations": declarations},
		}
	}

	return body
}

func (g *GeminiClient) streamRequest(ctx context.Context, req CompletionRequest, eventChan chan StreamEvent, payload []byte) {
	defer close(eventChan)

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", g.baseURL, g.modelFor(req))
	httpReq, err := g.newRequest(ctx, req, endpoint, payload)
	if err != nil {
		eventChan <- StreamEvent{Type: "error", Error: err.Error()}
		return
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		eventChan <- StreamEvent{Type: "error", Error: fmt.Sprintf("request failed: %v", err)}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		eventChan <- StreamEvent{Type: "error", Error: apiError("gemini", resp.StatusCode, body).Error()}
		return
	}

	scanner := newServerSentEventScanner(resp.Body)
	var fullContent strings.Builder
	var usage Usage

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event geminiResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			continue
		}

		if event.UsageMetadata.PromptTokenCount > 0 {
			usage.InputTokens = event.UsageMetadata.PromptTokenCount
		}
		if event.UsageMetadata.CandidatesTokenCount > 0 {
			usage.OutputTokens = event.UsageMetadata.CandidatesTokenCount
		}

		for _, candidate := range event.Candidates {
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					fullContent.WriteString(part.Text)
					eventChan <- StreamEvent{
						Type:    "delta",
						Content: part.Text,
					}
				}
			}
		}
	}

	eventChan <- StreamEvent{
		Type: "done",
		Response: &CompletionResponse{
			Content: fullContent.String(),
			Usage:   usage,
			Model:   g.model,
		},
	}
}

func (g *GeminiClient) responseToCompletion(resp *geminiResponse, duration time.Duration) *CompletionResponse {
	var content strings.Builder
	var toolCalls []ToolCall

	if len(resp.Candidates) > 0 {
		candidate := resp.Candidates[0]
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				content.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				input, _ := json.Marshal(part.FunctionCall.Args)
				toolCalls = append(toolCalls, ToolCall{
					Name:  part.FunctionCall.Name,
					Input: string(input),
				})
			}
		}
	}

	stopReason := ""
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		stopReason = resp.Candidates[0].FinishReason
	}

	return &CompletionResponse{
		Content:    content.String(),
		StopReason: stopReason,
		ToolCalls:  toolCalls,
		Usage: Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		},
		Model:    g.model,
		Duration: duration,
	}
}

// API response structures

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content struct {
		Parts []geminiPart `json:"parts"`
		Role  string       `json:"role"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

type geminiPart struct {
	Text         string `json:"text,omitempty"`
	FunctionCall *struct {
		Name string                 `json:"name"`
		Args map[string]interface{} `json:"args"`
	} `json:"functionCall,omitempty"`
}
