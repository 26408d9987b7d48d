package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient wraps the official OpenAI SDK as a Client.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	model   string
}

// NewOpenAIClient creates a new OpenAI client. baseURL is optional and
// supports OpenAI-compatible endpoints.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
	}
}

// Complete sends a non-streaming completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	client, params, err := c.prepare(req)
	if err != nil {
		return nil, err
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: "openai", Message: "response has no choices"}
	}

	choice := resp.Choices[0]
	return &CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
		Model:    resp.Model,
		Duration: time.Since(start),
	}, nil
}

// Stream sends a streaming completion request.
func (c *OpenAIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	eventChan := make(chan StreamEvent)

	client, params, err := c.prepare(req)
	if err != nil {
		close(eventChan)
		return eventChan, err
	}

	go func() {
		defer close(eventChan)

		stream := client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		acc := openai.ChatCompletionAccumulator{}
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if len(chunk.Choices) > 0 {
				if delta := chunk.Choices[0].Delta.Content; delta != "" {
					eventChan <- StreamEvent{Type: "delta", Content: delta}
				}
			}
		}

		if err := stream.Err(); err != nil {
			eventChan <- StreamEvent{Type: "error", Error: wrapOpenAIError(err).Error()}
			return
		}

		done := &CompletionResponse{Model: acc.Model}
		if len(acc.Choices) > 0 {
			done.Content = acc.Choices[0].Message.Content
			done.StopReason = string(acc.Choices[0].FinishReason)
		}
		done.Usage = Usage{
			InputTokens:  int(acc.Usage.PromptTokens),
			OutputTokens: int(acc.Usage.CompletionTokens),
		}
		eventChan <- StreamEvent{Type: "done", Response: done}
	}()

	return eventChan, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// prepare resolves the API key and builds the SDK client and params.
func (c *OpenAIClient) prepare(req CompletionRequest) (openai.Client, openai.ChatCompletionNewParams, error) {
	key := c.apiKey
	if req.APIKey != "" {
		key = req.APIKey
	}
	if key == "" {
		return openai.Client{}, openai.ChatCompletionNewParams{},
			&ProviderError{Provider: "openai", Message: "no API key configured", Code: http.StatusUnauthorized}
	}

	options := []option.RequestOption{option.WithAPIKey(key)}
	if c.baseURL != "" {
		options = append(options, option.WithBaseURL(c.baseURL))
	}
	client := openai.NewClient(options...)

	model := req.Model
	if model == "" || model == "openai" {
		model = c.model
	}

	params := openai.ChatCompletionNewParams{Model: model}
	if req.System != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	return client, params, nil
}

// wrapOpenAIError converts SDK errors into ProviderError.
func wrapOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		msg := apierr.Message
		if msg == "" {
			msg = strings.TrimSpace(apierr.Error())
		}
		return &ProviderError{Provider: "openai", Message: msg, Code: apierr.StatusCode}
	}
	return fmt.Errorf("openai: %w", err)
}
