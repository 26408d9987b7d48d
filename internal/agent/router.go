package agent

import (
	"context"
	"strings"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/llm"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
)

// Routes a query can take through the runner.
const (
	RouteChat     = "chat"
	RouteFormula  = "formula"
	RouteAnalysis = "analysis"
	RouteEdit     = "edit"
)

var routeKeywords = map[string][]string{
	RouteFormula: {
		"formula", "vlookup", "xlookup", "sumif", "countif", "sumproduct",
		"index match", "calculate", "compute",
	},
	RouteEdit: {
		"change the", "set the", "update the", "insert", "delete", "remove",
		"duplicate", "replace", "add a slide", "add a row", "rename",
	},
	RouteAnalysis: {
		"analyze", "analyse", "summarize", "summarise", "summary", "trend",
		"compare", "insight", "breakdown", "correlation",
	},
}

// routeOrder resolves ties: a query mentioning both a formula and an edit
// word is treated as a formula question.
var routeOrder = []string{RouteFormula, RouteEdit, RouteAnalysis}

const classifyPrompt = `You classify spreadsheet and document copilot queries.
Answer with exactly one word: chat, formula, analysis, or edit.
- formula: the user wants a spreadsheet formula or calculation recipe.
- analysis: the user wants the document's data examined or summarized.
- edit: the user wants the document changed.
- chat: anything else.`

// Router decides which route a query takes. Keyword heuristics run first;
// queries they cannot place go to a single cheap LLM classification call.
type Router struct {
	client llm.Client
	log    *logging.Logger
}

// NewRouter creates a router. A nil client disables the LLM fallback and
// unmatched queries route to chat.
func NewRouter(client llm.Client, log *logging.Logger) *Router {
	return &Router{client: client, log: log.Sub("router")}
}

// Route returns the route for a query. Edit and analysis only make sense
// against a document; without one those keywords are ignored.
func (r *Router) Route(ctx context.Context, query string, hasDocument bool) string {
	lower := strings.ToLower(query)

	for _, route := range routeOrder {
		if !hasDocument && (route == RouteEdit || route == RouteAnalysis) {
			continue
		}
		for _, kw := range routeKeywords[route] {
			if strings.Contains(lower, kw) {
				return route
			}
		}
	}

	// Short conversational queries don't warrant a classifier round trip.
	if r.client == nil || len(strings.Fields(query)) < 4 {
		return RouteChat
	}

	return r.classify(ctx, query, hasDocument)
}

func (r *Router) classify(ctx context.Context, query string, hasDocument bool) string {
	prompt := query
	if !hasDocument {
		prompt = "No document is open. " + query
	}

	resp, err := r.client.Complete(ctx, llm.CompletionRequest{
		System:    classifyPrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens: 8,
	})
	if err != nil {
		r.log.Debug().Err(err).Msg("route classification failed, defaulting to chat")
		return RouteChat
	}

	switch route := strings.ToLower(strings.TrimSpace(resp.Content)); route {
	case RouteFormula, RouteAnalysis, RouteEdit, RouteChat:
		if !hasDocument && (route == RouteEdit || route == RouteAnalysis) {
			return RouteChat
		}
		return route
	default:
		return RouteChat
	}
}
