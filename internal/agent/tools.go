package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/domain"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/vector"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/workspace"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/writer"
)

// Tool is a capability the agent can invoke during a conversation.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns a human-readable description for the LLM.
	Description() string

	// InputSchema returns the JSON Schema for the tool's input.
	InputSchema() string

	// Execute runs the tool with the given JSON input and returns output
	// for the LLM.
	Execute(ctx context.Context, input string) (string, error)
}

// ToolRegistry holds available tools.
type ToolRegistry struct {
	tools map[string]Tool
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool.
func (r *ToolRegistry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns LLM-ready tool definitions, sorted by name.
func (r *ToolRegistry) Definitions() []ToolDef {
	defs := make([]ToolDef, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// ToolDef is a serializable tool definition for passing to the LLM.
type ToolDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema string `json:"inputSchema"`
}

// FileLister exposes the workspace manifest to the list_files tool.
type FileLister interface {
	List() []workspace.Mapping
}

// Retriever exposes chunk search to the runner and the search_chunks tool.
type Retriever interface {
	Search(ctx context.Context, req vector.SearchRequest) ([]domain.ScoredChunk, error)
}

// ListFilesTool reports the tracked workspace files.
type ListFilesTool struct {
	ws FileLister
}

// NewListFilesTool creates the list_files tool.
func NewListFilesTool(ws FileLister) *ListFilesTool { return &ListFilesTool{ws: ws} }

func (t *ListFilesTool) Name() string { return "list_files" }

func (t *ListFilesTool) Description() string {
	return "List the user's tracked document files (name, kind, size, original path)."
}

func (t *ListFilesTool) InputSchema() string {
	return `{"type":"object","properties":{}}`
}

func (t *ListFilesTool) Execute(_ context.Context, _ string) (string, error) {
	mappings := t.ws.List()
	if len(mappings) == 0 {
		return "No files are tracked.", nil
	}

	var b strings.Builder
	for _, m := range mappings {
		fmt.Fprintf(&b, "- %s (%s, %d bytes)\n", m.Filename, m.Kind, m.SizeBytes)
	}
	return b.String(), nil
}

// SearchChunksTool searches indexed document chunks.
type SearchChunksTool struct {
	vectors Retriever
}

// NewSearchChunksTool creates the search_chunks tool.
func NewSearchChunksTool(vectors Retriever) *SearchChunksTool {
	return &SearchChunksTool{vectors: vectors}
}

func (t *SearchChunksTool) Name() string { return "search_chunks" }

func (t *SearchChunksTool) Description() string {
	return "Search the indexed documents for passages relevant to a query."
}

func (t *SearchChunksTool) InputSchema() string {
	return `{"type":"object","properties":{"query":{"type":"string"},"top_k":{"type":"integer"}},"required":["query"]}`
}

func (t *SearchChunksTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	hits, err := t.vectors.Search(ctx, vector.SearchRequest{Query: args.Query, TopK: args.TopK})
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "No matching passages found.", nil
	}

	var b strings.Builder
	for _, h := range hits {
		label := h.DocumentName
		if h.Locator != "" {
			label += " " + h.Locator
		}
		fmt.Fprintf(&b, "[%s] (score %.2f)\n%s\n\n", strings.TrimSpace(label), h.Score, h.Text)
	}
	return strings.TrimSpace(b.String()), nil
}

// ApplyEditsTool dispatches an op batch to the document writer.
type ApplyEditsTool struct {
	executor writer.Executor
}

// NewApplyEditsTool creates the apply_edits tool.
func NewApplyEditsTool(executor writer.Executor) *ApplyEditsTool {
	return &ApplyEditsTool{executor: executor}
}

func (t *ApplyEditsTool) Name() string { return "apply_edits" }

func (t *ApplyEditsTool) Description() string {
	return "Apply a batch of edit operations to a document. " +
		"Op types: duplicate_slide, delete_slide, add_slide, set_chart_data_label_position, " +
		"set_text_frame, set_cells, insert_rows. " +
		"Target names the slide or sheet; op parameters go in params."
}

func (t *ApplyEditsTool) InputSchema() string {
	return `{"type":"object","properties":{` +
		`"document_path":{"type":"string"},` +
		`"ops":{"type":"array","items":{"type":"object","properties":{` +
		`"type":{"type":"string"},"target":{"type":"string"},"params":{"type":"object"}}}}},` +
		`"required":["document_path","ops"]}`
}

func (t *ApplyEditsTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		DocumentPath string      `json:"document_path"`
		Ops          []writer.Op `json:"ops"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	batch := writer.NewBatch(args.DocumentPath, args.Ops...)
	res, err := t.executor.Apply(ctx, batch)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Applied %d of %d ops (batch %s).", res.Applied, len(batch.Ops), res.BatchID)
	for _, opErr := range res.Errors {
		fmt.Fprintf(&b, "\n- %s", opErr.Error())
	}
	return b.String(), nil
}
