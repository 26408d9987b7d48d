package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/domain"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	Route         string
	UserName      string
	DocumentName  string
	DocumentKind  domain.FileKind
	ContextChunks []domain.ScoredChunk
	Tools         []ToolDef
	Extra         string
}

// BuildSystemPrompt constructs the system prompt for one turn.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	b.WriteString("You are a document copilot for Excel, PowerPoint, and Word.\n")
	fmt.Fprintf(&b, "Current date: %s\n", time.Now().Format("2006-01-02"))
	if cfg.UserName != "" {
		fmt.Fprintf(&b, "User: %s\n", cfg.UserName)
	}
	if cfg.DocumentName != "" {
		fmt.Fprintf(&b, "Open document: %s", cfg.DocumentName)
		if cfg.DocumentKind != "" {
			fmt.Fprintf(&b, " (%s)", cfg.DocumentKind)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nGuidelines:\n")
	switch cfg.Route {
	case RouteFormula:
		b.WriteString("- Answer with exactly one spreadsheet formula on its own line, starting with =.\n")
		b.WriteString("- Follow the formula with a short explanation of how it works.\n")
	case RouteAnalysis:
		b.WriteString("- Ground every claim in the document excerpts below; do not invent figures.\n")
		b.WriteString("- When the excerpts don't cover the question, say so.\n")
	case RouteEdit:
		b.WriteString("- Apply document changes through the apply_edits tool; never claim an edit happened without it.\n")
		b.WriteString("- Confirm what was changed after the tool reports back.\n")
	default:
		b.WriteString("- Be concise and accurate. When using tools, say what you're doing.\n")
	}

	if len(cfg.ContextChunks) > 0 {
		b.WriteString("\n## Document Context\n\n")
		b.WriteString("Relevant excerpts from the user's documents:\n\n")
		for _, c := range cfg.ContextChunks {
			label := c.DocumentName
			if c.Locator != "" {
				label += " " + c.Locator
			}
			fmt.Fprintf(&b, "[%s]\n%s\n\n", strings.TrimSpace(label), c.Text)
		}
	}

	if len(cfg.Tools) > 0 {
		b.WriteString("\n## Available Tools\n\n")
		b.WriteString("You can call tools by outputting a fenced code block with the language tag `tool_call`:\n\n")
		b.WriteString("```tool_call\n{\"tool\": \"tool_name\", \"input\": {\"param\": \"value\"}}\n```\n\n")
		b.WriteString("After a tool is executed, the result will be provided. You may call multiple tools before giving your final response.\n\n")
		for _, t := range cfg.Tools {
			fmt.Fprintf(&b, "### %s\n%s\n", t.Name, t.Description)
			if t.InputSchema != "" {
				fmt.Fprintf(&b, "Input schema: %s\n", t.InputSchema)
			}
			b.WriteString("\n")
		}
	}

	if cfg.Extra != "" {
		b.WriteString("\n")
		b.WriteString(cfg.Extra)
		b.WriteString("\n")
	}

	return b.String()
}
