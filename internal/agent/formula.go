package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/llm"
)

// Formula answers a one-shot formula request: no conversation, no tools,
// just the formula-route prompt and a single completion. It returns the
// formula line and the surrounding explanation.
func (r *Runner) Formula(ctx context.Context, userID, description, sheetContext, model string) (string, string, error) {
	if strings.TrimSpace(description) == "" {
		return "", "", fmt.Errorf("agent: formula description required")
	}

	content := description
	if sheetContext != "" {
		content = fmt.Sprintf("Sheet context:\n%s\n\nRequest: %s", sheetContext, description)
	}

	resp, err := r.client.Complete(ctx, userID, model, llm.CompletionRequest{
		System:      BuildSystemPrompt(PromptConfig{Route: RouteFormula, Extra: r.cfg.ExtraPrompt}),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: content}},
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return "", "", err
	}

	formula, explanation := ExtractFormula(resp.Content)
	if formula == "" {
		return "", "", fmt.Errorf("agent: no formula in model output")
	}
	return formula, explanation, nil
}

// ExtractFormula pulls the first =-prefixed line out of model output. The
// remaining lines, minus code fences, become the explanation.
func ExtractFormula(text string) (string, string) {
	var formula string
	var rest []string

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "`"))
		if formula == "" && strings.HasPrefix(trimmed, "=") {
			formula = trimmed
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		rest = append(rest, line)
	}

	return formula, strings.TrimSpace(strings.Join(rest, "\n"))
}
