package planner

import (
	"context"
	"fmt"
)

// Completer turns a prompt into a single text completion
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Plan is the decision about which tool to call and with which arguments.
// An empty ToolName means no tool was selected.
type Plan struct {
	ToolName  string         `json:"tool_name" yaml:"tool_name"`
	Arguments map[string]any `json:"arguments" yaml:"arguments"`
	Reasoning string         `json:"reasoning" yaml:"reasoning"`
}

// HasTool reports whether a tool was selected
func (p Plan) HasTool() bool {
	return p.ToolName != ""
}

// annotate appends a parenthesized note to the reasoning
func (p *Plan) annotate(format string, args ...any) {
	p.Reasoning += " (" + fmt.Sprintf(format, args...) + ")"
}
