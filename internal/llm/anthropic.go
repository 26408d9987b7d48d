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

const defaultAnthropicBaseURL = "https://api.anthropic.com"

// AnthropicClient is a direct HTTP client for the Anthropic Messages API.
type AnthropicClient struct {
	apiKey  string
	baseURL string
	model   string
	version string // anthropic-version header
	client  *http.Client
}

// NewAnthropicClient creates a new Anthropic API client.
func NewAnthropicClient(apiKey, baseURL, model, version string) *AnthropicClient {
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	if version == "" {
		version = "2023-06-01"
	}
	return &AnthropicClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		version: version,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Complete sends a non-streaming completion request.
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	body := c.buildRequestBody(req, false)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, req, payload)
	if err != nil {
		return nil, err
	}

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
		return nil, apiError("anthropic", resp.StatusCode, respBody)
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return c.responseToCompletion(&result, time.Since(start)), nil
}

// Stream sends a streaming completion request.
func (c *AnthropicClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	eventChan := make(chan StreamEvent)

	body := c.buildRequestBody(req, true)
	payload, err := json.Marshal(body)
	if err != nil {
		close(eventChan)
		return eventChan, fmt.Errorf("failed to marshal request: %w", err)
	}

	go c.streamRequest(ctx, req, eventChan, payload)
	return eventChan, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Helper methods

func (c *AnthropicClient) key(req CompletionRequest) string {
	if req.APIKey != "" {
		return req.APIKey
	}
	return c.apiKey
}

func (c *AnthropicClient) newRequest(ctx context.Context, req CompletionRequest, payload []byte) (*http.Request, error) {
	key := c.key(req)
	if key == "" {
		return nil, &ProviderError{Provider: "anthropic", Message: "no API key configured", Code: http.StatusUnauthorized}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", key)
	httpReq.Header.Set("anthropic-version", c.version)
	return httpReq, nil
}

func (c *AnthropicClient) buildRequestBody(req CompletionRequest, stream bool) map[string]interface{} {
	model := req.Model
	if model == "" || model == "anthropic" {
		model = c.model
	}

	body := map[string]interface{}{
		"model":      model,
		"messages":   c.buildMessages(req.Messages),
		"max_tokens": req.MaxTokens,
		"stream":     stream,
	}

	if req.System != "" {
		body["system"] = req.System
	}

	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}

	if len(req.Tools) > 0 {
		tools := make([]map[string]interface{}, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = map[string]interface{}{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": parseJSONSchema(t.InputSchema),
			}
		}
		body["tools"] = tools
	}

	return body
}

func (c *AnthropicClient) buildMessages(msgs []Message) []map[string]string {
	result := make([]map[string]string, 0, len(msgs))
	for _, m := range msgs {
		// The messages array only accepts user/assistant turns; system
		// content travels in the top-level system field.
		role := m.Role
		if role != RoleUser && role != RoleAssistant {
			role = RoleUser
		}
		result = append(result, map[string]string{
			"role":    role,
			"content": m.Content,
		})
	}
	return result
}

func (c *AnthropicClient) streamRequest(ctx context.Context, req CompletionRequest, eventChan chan StreamEvent, payload []byte) {
	defer close(eventChan)

	httpReq, err := c.newRequest(ctx, req, payload)
	if err != nil {
		eventChan <- StreamEvent{Type: "error", Error: err.Error()}
		return
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		eventChan <- StreamEvent{Type: "error", Error: fmt.Sprintf("request failed: %v", err)}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		eventChan <- StreamEvent{Type: "error", Error: apiError("anthropic", resp.StatusCode, body).Error()}
		return
	}

	scanner := newServerSentEventScanner(resp.Body)
	var fullContent strings.Builder
	var usage Usage
	stopReason := ""

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		dataStr := strings.TrimPrefix(line, "data: ")
		if dataStr == "[DONE]" {
			break
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(dataStr), &event); err != nil {
			continue
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type == "text_delta" {
				fullContent.WriteString(event.Delta.Text)
				eventChan <- StreamEvent{
					Type:    "delta",
					Content: event.Delta.Text,
				}
			}
		case "message_delta":
			if event.Delta.StopReason != "" {
				stopReason = event.Delta.StopReason
			}
			if event.Usage.OutputTokens > 0 {
				usage.OutputTokens = event.Usage.OutputTokens
			}
		case "message_start":
			if event.Message != nil && event.Message.Usage.InputTokens > 0 {
				usage.InputTokens = event.Message.Usage.InputTokens
			}
		}
	}

	eventChan <- StreamEvent{
		Type: "done",
		Response: &CompletionResponse{
			Content:    fullContent.String(),
			StopReason: stopReason,
			Usage:      usage,
			Model:      c.model,
		},
	}
}

func (c *AnthropicClient) responseToCompletion(resp *anthropicResponse, duration time.Duration) *CompletionResponse {
	var content strings.Builder
	var toolCalls []ToolCall

	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		} else if block.Type == "tool_use" {
			input, _ := json.Marshal(block.Input)
			toolCalls = append(toolCalls, ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: string(input),
			})
		}
	}

	return &CompletionResponse{
		Content:    content.String(),
		StopReason: resp.StopReason,
		ToolCalls:  toolCalls,
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
		Model:    resp.Model,
		Duration: duration,
	}
}

// API response structures

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []anthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

type anthropicContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicStreamEvent struct {
	Type    string               `json:"type"`
	Delta   anthropicStreamDelta `json:"delta"`
	Message *anthropicResponse   `json:"message,omitempty"`
	Usage   anthropicUsage       `json:"usage"`
}

type anthropicStreamDelta struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}
