// Package agent is the orchestration loop behind chat: it routes each query,
// assembles document context, calls the LLM with failover, executes fenced
// tool calls, and persists both sides of the turn to the session store.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/domain"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/llm"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/vector"
)

// Defaults applied when the config leaves them unset.
const (
	defaultMaxIterations = 5
	defaultContextTopK   = 6
)

// RunnerConfig configures the agent runner.
type RunnerConfig struct {
	Model         string
	Fallbacks     []string
	MaxTokens     int
	Temperature   *float64
	MaxIterations int
	HistoryLimit  int
	ContextTopK   int
	ExtraPrompt   string
}

// Request is one user turn.
type Request struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	DocumentPath   string `json:"document_path,omitempty"`
	Query          string `json:"query"`
	Model          string `json:"model,omitempty"`
}

// Result is the outcome of processing a turn.
type Result struct {
	ConversationID string        `json:"conversation_id"`
	Route          string        `json:"route"`
	Response       string        `json:"response"`
	Model          string        `json:"model,omitempty"`
	Usage          llm.Usage     `json:"usage"`
	Duration       time.Duration `json:"duration"`
}

// StreamCallback receives streaming events during RunStream execution.
// Event types:
//   - "delta": incremental text output (Content holds the text)
//   - "tool_start": tool execution is beginning
//   - "tool_result": a tool completed
//   - "tool_error": a tool failed
//   - "done": final response is ready
//   - "error": the stream failed
type StreamCallback func(event llm.StreamEvent)

// Runner drives one conversation turn end to end.
type Runner struct {
	cfg      RunnerConfig
	client   *FailoverClient
	sessions SessionStore
	tools    *ToolRegistry
	router   *Router
	vectors  Retriever
	log      *logging.Logger
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithRetriever attaches the vector service used for context retrieval.
func WithRetriever(v Retriever) RunnerOption {
	return func(r *Runner) { r.vectors = v }
}

// WithRouter replaces the default router.
func WithRouter(router *Router) RunnerOption {
	return func(r *Runner) { r.router = router }
}

// NewRunner creates an agent runner. The key resolver may be nil; per-user
// keys then never override provider keys.
func NewRunner(
	cfg RunnerConfig,
	registry *llm.Registry,
	sessions SessionStore,
	tools *ToolRegistry,
	keys llm.KeyResolver,
	log *logging.Logger,
	opts ...RunnerOption,
) *Runner {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.ContextTopK <= 0 {
		cfg.ContextTopK = defaultContextTopK
	}
	r := &Runner{
		cfg:      cfg,
		client:   NewFailoverClient(registry, cfg.Model, cfg.Fallbacks, keys, log),
		sessions: sessions,
		tools:    tools,
		log:      log.Sub("agent"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.router == nil {
		r.router = NewRouter(nil, log)
	}
	return r
}

// Run processes a turn and returns the agent's response.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	return r.run(ctx, req, nil)
}

// RunStream processes a turn, forwarding deltas and tool progress through cb
// as they happen.
func (r *Runner) RunStream(ctx context.Context, req Request, cb StreamCallback) (*Result, error) {
	return r.run(ctx, req, cb)
}

func (r *Runner) run(ctx context.Context, req Request, cb StreamCallback) (*Result, error) {
	start := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("agent: query required")
	}

	conv, err := r.resolveConversation(req)
	if err != nil {
		return nil, err
	}

	state := domain.TurnState{
		ConversationID: conv.ID,
		Query:          req.Query,
		DocumentPath:   req.DocumentPath,
	}

	if err := r.sessions.Append(conv.ID, domain.Message{
		Role:    domain.RoleUser,
		Content: req.Query,
	}); err != nil {
		return nil, fmt.Errorf("recording query: %w", err)
	}

	r.retrieveContext(ctx, &state)

	routeStart := time.Now()
	state.Route = r.router.Route(ctx, req.Query, req.DocumentPath != "")
	state.AddStep("route", state.Route, time.Since(routeStart))

	system := BuildSystemPrompt(PromptConfig{
		Route:         state.Route,
		UserName:      req.UserID,
		DocumentName:  baseName(req.DocumentPath),
		DocumentKind:  domain.KindForPath(req.DocumentPath),
		ContextChunks: state.ContextChunks,
		Tools:         r.tools.Definitions(),
		Extra:         r.cfg.ExtraPrompt,
	})

	r.log.Info().
		Str("conversationId", conv.ID).
		Str("user", req.UserID).
		Str("route", state.Route).
		Int("contextChunks", len(state.ContextChunks)).
		Msg("processing turn")

	finalResp, err := r.completionLoop(ctx, conv.ID, req, system, cb)
	if err != nil {
		return nil, err
	}

	clean := stripToolCalls(finalResp.Content)
	if err := r.sessions.Append(conv.ID, domain.Message{
		Role:    domain.RoleAssistant,
		Content: clean,
	}); err != nil {
		return nil, fmt.Errorf("recording response: %w", err)
	}

	r.log.Info().
		Str("conversationId", conv.ID).
		Str("model", finalResp.Model).
		Int("inputTokens", finalResp.Usage.InputTokens).
		Int("outputTokens", finalResp.Usage.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("response generated")

	return &Result{
		ConversationID: conv.ID,
		Route:          state.Route,
		Response:       clean,
		Model:          finalResp.Model,
		Usage:          finalResp.Usage,
		Duration:       time.Since(start),
	}, nil
}

// completionLoop runs the LLM, executing fenced tool calls between rounds
// until the model answers without one or the iteration cap is hit.
func (r *Runner) completionLoop(ctx context.Context, convID string, req Request, system string, cb StreamCallback) (*llm.CompletionResponse, error) {
	var finalResp *llm.CompletionResponse

	for i := 0; i < r.cfg.MaxIterations; i++ {
		creq := llm.CompletionRequest{
			System:      system,
			Messages:    r.history(convID),
			MaxTokens:   r.cfg.MaxTokens,
			Temperature: r.cfg.Temperature,
		}

		var resp *llm.CompletionResponse
		var err error
		if cb != nil {
			resp, err = r.streamOnce(ctx, req, creq, cb)
		} else {
			resp, err = r.client.Complete(ctx, req.UserID, req.Model, creq)
		}
		if err != nil {
			return nil, fmt.Errorf("LLM completion: %w", err)
		}
		finalResp = resp

		calls := parseToolCalls(resp.Content)
		if len(calls) == 0 {
			break
		}

		r.log.Info().Int("toolCalls", len(calls)).Msg("executing tool calls")
		if cb != nil {
			cb(llm.StreamEvent{
				Type:    "tool_start",
				Content: fmt.Sprintf("Executing %d tool(s)...", len(calls)),
			})
		}

		// Keep the raw assistant output so the model sees its own calls.
		if err := r.sessions.Append(convID, domain.Message{
			Role:    domain.RoleAssistant,
			Content: resp.Content,
		}); err != nil {
			return nil, fmt.Errorf("recording tool round: %w", err)
		}

		results := r.executeToolCalls(ctx, calls, cb)
		if err := r.sessions.Append(convID, domain.Message{
			Role:    domain.RoleTool,
			Content: formatToolResults(results),
		}); err != nil {
			return nil, fmt.Errorf("recording tool results: %w", err)
		}
	}

	if finalResp == nil {
		return nil, fmt.Errorf("no response from LLM")
	}
	return finalResp, nil
}

// streamOnce runs one streaming completion, forwarding deltas and folding
// the stream back into a response.
func (r *Runner) streamOnce(ctx context.Context, req Request, creq llm.CompletionRequest, cb StreamCallback) (*llm.CompletionResponse, error) {
	creq.Stream = true
	ch, err := r.client.Stream(ctx, req.UserID, req.Model, creq)
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	var resp *llm.CompletionResponse
	for evt := range ch {
		switch evt.Type {
		case "delta":
			content.WriteString(evt.Content)
			cb(evt)
		case "done":
			if evt.Response != nil {
				resp = evt.Response
			}
		case "error":
			return nil, fmt.Errorf("stream error: %s", evt.Error)
		}
	}

	if resp == nil {
		resp = &llm.CompletionResponse{Model: creq.Model}
	}
	if resp.Content == "" {
		resp.Content = content.String()
	}
	return resp, nil
}

func (r *Runner) resolveConversation(req Request) (*domain.Conversation, error) {
	if req.ConversationID != "" {
		return r.sessions.Get(req.ConversationID)
	}
	return r.sessions.GetOrCreate(req.UserID, req.DocumentPath)
}

// retrieveContext pulls the top chunks for the query into the turn state.
// Retrieval failures degrade to an uncontextualized answer.
func (r *Runner) retrieveContext(ctx context.Context, state *domain.TurnState) {
	if r.vectors == nil {
		return
	}

	start := time.Now()
	hits, err := r.vectors.Search(ctx, vector.SearchRequest{
		Query: state.Query,
		TopK:  r.cfg.ContextTopK,
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("context retrieval failed, continuing without")
		return
	}
	state.ContextChunks = hits
	state.AddStep("retrieve", fmt.Sprintf("%d chunks", len(hits)), time.Since(start))
}

// history converts stored messages to LLM turns. Tool results were recorded
// under the tool role; providers see them as user turns.
func (r *Runner) history(convID string) []llm.Message {
	msgs := r.sessions.History(convID, r.cfg.HistoryLimit)
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		if role == domain.RoleTool {
			role = llm.RoleUser
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

// toolCall is a parsed tool invocation from the LLM response.
type toolCall struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

// toolResult holds the output from executing a tool.
type toolResult struct {
	Tool   string
	Output string
	Err    error
}

// toolCallRe matches ```tool_call\n{...}\n``` blocks in LLM output.
var toolCallRe = regexp.MustCompile("(?s)```tool_call\\s*\n(\\{.*?\\})\n\\s*```")

// whitespaceLineRe matches lines containing only horizontal whitespace.
var whitespaceLineRe = regexp.MustCompile(`(?m)^[ \t]+$`)

// blankLineCollapseRe collapses 3+ consecutive newlines to a single blank line.
var blankLineCollapseRe = regexp.MustCompile(`\n{3,}`)

// parseToolCalls extracts tool_call blocks from LLM response text.
func parseToolCalls(text string) []toolCall {
	matches := toolCallRe.FindAllStringSubmatch(text, -1)
	var calls []toolCall
	for _, match := range matches {
		if len(match) < 2 {
			continue
		}
		var tc toolCall
		if err := json.Unmarshal([]byte(match[1]), &tc); err != nil {
			continue
		}
		if tc.Tool != "" {
			calls = append(calls, tc)
		}
	}
	return calls
}

// executeToolCalls runs each tool and returns results.
func (r *Runner) executeToolCalls(ctx context.Context, calls []toolCall, cb StreamCallback) []toolResult {
	var results []toolResult
	for _, tc := range calls {
		tool, ok := r.tools.Get(tc.Tool)
		if !ok {
			results = append(results, toolResult{
				Tool: tc.Tool,
				Err:  fmt.Errorf("unknown tool: %s", tc.Tool),
			})
			continue
		}

		r.log.Debug().Str("tool", tc.Tool).Msg("executing tool")
		output, err := tool.Execute(ctx, string(tc.Input))
		results = append(results, toolResult{Tool: tc.Tool, Output: output, Err: err})
	}

	if cb != nil {
		for _, tr := range results {
			if tr.Err != nil {
				cb(llm.StreamEvent{
					Type:    "tool_error",
					Content: fmt.Sprintf("Tool %s failed: %v", tr.Tool, tr.Err),
				})
			} else {
				cb(llm.StreamEvent{
					Type:    "tool_result",
					Content: fmt.Sprintf("Tool %s completed", tr.Tool),
				})
			}
		}
	}
	return results
}

// formatToolResults renders tool execution results for the LLM.
func formatToolResults(results []toolResult) string {
	var b strings.Builder
	b.WriteString("Tool execution results:\n\n")
	for _, r := range results {
		fmt.Fprintf(&b, "### %s\n", r.Tool)
		if r.Err != nil {
			fmt.Fprintf(&b, "Error: %s\n", r.Err)
		} else {
			b.WriteString(r.Output)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// stripToolCalls removes tool_call fences from the response, leaving
// surrounding text readable.
func stripToolCalls(text string) string {
	cleaned := toolCallRe.ReplaceAllString(text, "\n\n")
	cleaned = whitespaceLineRe.ReplaceAllString(cleaned, "")
	cleaned = blankLineCollapseRe.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
