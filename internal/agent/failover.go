package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/llm"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
)

// FailoverClient wraps the LLM registry to try fallback models on failure.
// When a key resolver is set, each attempt carries the user's own key for
// whichever provider the model resolves to.
type FailoverClient struct {
	registry  *llm.Registry
	primary   string
	fallbacks []string
	keys      llm.KeyResolver
	log       *logging.Logger
}

// NewFailoverClient creates a client that tries the primary model first,
// then falls back through the list on retryable errors (401, 429, 5xx).
// The key resolver may be nil.
func NewFailoverClient(registry *llm.Registry, primary string, fallbacks []string, keys llm.KeyResolver, log *logging.Logger) *FailoverClient {
	return &FailoverClient{
		registry:  registry,
		primary:   primary,
		fallbacks: fallbacks,
		keys:      keys,
		log:       log.Sub("failover"),
	}
}

// Complete tries the primary model, falling back on retryable errors. The
// primary argument overrides the configured primary when non-empty.
func (f *FailoverClient) Complete(ctx context.Context, userID, primary string, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var lastErr error
	for _, model := range f.candidates(primary) {
		client, err := f.registry.Resolve(model)
		if err != nil {
			f.log.Debug().Str("model", model).Err(err).Msg("no provider for model, skipping")
			lastErr = err
			continue
		}

		req.Model = model
		req.APIKey = f.keyFor(userID, client)
		resp, err := client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if isRetryable(err) {
			f.log.Warn().
				Str("model", model).
				Err(err).
				Msg("retryable error, trying next model")
			continue
		}

		// Non-retryable, don't try more models.
		return nil, err
	}

	return nil, lastErr
}

// Stream tries the primary model for streaming, with failover.
func (f *FailoverClient) Stream(ctx context.Context, userID, primary string, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
	var lastErr error
	for _, model := range f.candidates(primary) {
		client, err := f.registry.Resolve(model)
		if err != nil {
			lastErr = err
			continue
		}

		req.Model = model
		req.APIKey = f.keyFor(userID, client)
		ch, err := client.Stream(ctx, req)
		if err == nil {
			return ch, nil
		}

		lastErr = err

		if isRetryable(err) {
			f.log.Warn().
				Str("model", model).
				Err(err).
				Msg("retryable stream error, trying next model")
			continue
		}

		return nil, err
	}

	return nil, lastErr
}

func (f *FailoverClient) candidates(primary string) []string {
	if primary == "" {
		primary = f.primary
	}
	return append([]string{primary}, f.fallbacks...)
}

func (f *FailoverClient) keyFor(userID string, client llm.Client) string {
	if f.keys == nil || userID == "" {
		return ""
	}
	return f.keys.KeyFor(userID, client.Name())
}

// isRetryable checks if the error suggests trying another model.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case 401, 403, 429, 500, 502, 503, 529:
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "capacity") ||
		strings.Contains(msg, "timeout")
}
