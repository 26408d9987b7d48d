package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/llm"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/writer"
)

const planPrompt = `You translate a document edit instruction into a JSON array of ops.
Op shape: {"type": "...", "target": "...", "params": {...}}.
Op types:
- duplicate_slide: target = slide name
- delete_slide: target = slide name
- add_slide: target = slide to insert after (optional), params.layout (optional)
- set_chart_data_label_position: target = slide, params.chart, params.series (int), params.position (one of above, below, best_fit, center, inside_base, inside_end, left, outside_end, right)
- set_text_frame: target = slide, params.shape, params.text
- set_cells: target = sheet, params.ref (e.g. "B2"), params.values (2D array)
- insert_rows: target = sheet, params.at (1-based int), params.count (int)
Answer with the JSON array only, no prose.`

// PlanEdits turns a natural-language instruction into a validated op batch.
// The batch is returned for the caller to apply; nothing is dispatched here.
func (r *Runner) PlanEdits(ctx context.Context, userID, documentPath, instruction, model string) (*writer.Batch, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, fmt.Errorf("agent: edit instruction required")
	}

	resp, err := r.client.Complete(ctx, userID, model, llm.CompletionRequest{
		System: planPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Document: %s\nInstruction: %s", baseName(documentPath), instruction),
		}},
		MaxTokens: r.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("planning edits: %w", err)
	}

	ops, err := parseOps(resp.Content)
	if err != nil {
		return nil, err
	}

	batch := writer.NewBatch(documentPath, ops...)
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	return &batch, nil
}

// parseOps extracts the first JSON array from model output. Models wrap
// answers in fences often enough that plain unmarshal isn't enough.
func parseOps(text string) ([]writer.Op, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("agent: no op array in plan output")
	}

	var ops []writer.Op
	if err := json.Unmarshal([]byte(text[start:end+1]), &ops); err != nil {
		return nil, fmt.Errorf("agent: decoding op plan: %w", err)
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("agent: empty op plan")
	}
	return ops, nil
}
