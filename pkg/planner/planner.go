package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/harun/toolwire/internal/observability"
	"github.com/harun/toolwire/pkg/mcpclient"
)

// DefaultFilePath is the path suggested to the model when the user names none
const DefaultFilePath = "sample.txt"

// ErrNoJSONObject is returned when a completion holds no brace-delimited span
var ErrNoJSONObject = errors.New("no JSON object found in completion")

// Planner asks a completion service which tool to call
type Planner struct {
	completer   Completer
	defaultPath string
}

// NewPlanner creates a new planner. An empty defaultPath falls back to
// DefaultFilePath.
func NewPlanner(completer Completer, defaultPath string) *Planner {
	if defaultPath == "" {
		defaultPath = DefaultFilePath
	}
	return &Planner{
		completer:   completer,
		defaultPath: defaultPath,
	}
}

// Plan selects a tool for request. It never fails: completion and parse
// errors produce a plan without a tool whose reasoning names the failure.
// A non-empty requiredTool overrides the model's choice when it exists in
// catalog and clears the selection when it does not.
func (p *Planner) Plan(ctx context.Context, request string, catalog []mcpclient.ToolDescriptor, requiredTool string) Plan {
	plan, err := p.ask(ctx, request, catalog, requiredTool)
	if err != nil {
		observability.RecordPlannerFailure()
		log.Warn().Err(err).Msg("Planning failed")
		plan = Plan{Reasoning: fmt.Sprintf("Planning failed: %v", err)}
	}

	available := make(map[string]bool, len(catalog))
	for _, tool := range catalog {
		available[tool.Name] = true
	}

	if plan.ToolName != "" && !available[plan.ToolName] {
		plan.annotate("tool '%s' not available", plan.ToolName)
		plan.ToolName = ""
	}

	if requiredTool != "" {
		switch {
		case !available[requiredTool]:
			plan.annotate("required tool '%s' not available", requiredTool)
			plan.ToolName = ""
		case plan.ToolName == "":
			plan.annotate("using required tool '%s'", requiredTool)
			plan.ToolName = requiredTool
		case plan.ToolName != requiredTool:
			plan.annotate("overriding '%s' with required '%s'", plan.ToolName, requiredTool)
			plan.ToolName = requiredTool
		}
	}

	if plan.Arguments == nil {
		plan.Arguments = map[string]any{}
	}

	log.Debug().
		Str("tool", plan.ToolName).
		Int("catalog_size", len(catalog)).
		Str("required_tool", requiredTool).
		Msg("Plan ready")

	return plan
}

func (p *Planner) ask(ctx context.Context, request string, catalog []mcpclient.ToolDescriptor, requiredTool string) (Plan, error) {
	if p.completer == nil {
		return Plan{}, errors.New("no completion provider configured")
	}

	out, err := p.completer.Complete(ctx, p.Prompt(request, catalog, requiredTool))
	if err != nil {
		return Plan{}, err
	}

	span, err := ExtractJSONObject(strings.TrimSpace(out))
	if err != nil {
		return Plan{}, err
	}
	return parsePlan(span), nil
}

// Prompt renders the planning prompt
func (p *Planner) Prompt(request string, catalog []mcpclient.ToolDescriptor, requiredTool string) string {
	instruction := "Decide whether to call a tool to help the user."
	if requiredTool != "" {
		instruction = fmt.Sprintf(
			"You must call the file-reading tool named '%s' and supply its required arguments. "+
				"If no path is provided by the user, default to '%s'.",
			requiredTool, p.defaultPath)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an MCP agent. %s\n\n", instruction)
	fmt.Fprintf(&b, "Available tools:\n%s\n\n", DescribeCatalog(catalog))
	fmt.Fprintf(&b, "User request: %s\n\n", request)
	b.WriteString("Respond with a single JSON object containing:\n")
	b.WriteString("- \"tool_name\": string or null\n")
	b.WriteString("- \"arguments\": object (use {} if no arguments or no tool)\n")
	b.WriteString("- \"reasoning\": short explanation\n\n")
	b.WriteString("Return JSON only, no additional commentary.\n")
	return b.String()
}

// DescribeCatalog renders one block per tool with its parameters
func DescribeCatalog(catalog []mcpclient.ToolDescriptor) string {
	if len(catalog) == 0 {
		return "No tools are currently available."
	}

	blocks := make([]string, 0, len(catalog))
	for _, tool := range catalog {
		var b strings.Builder
		fmt.Fprintf(&b, "- Name: %s\n  Description: %s\n  Parameters:", tool.Name, tool.Description)

		names := tool.InputSchema.PropertyNames()
		if len(names) == 0 {
			b.WriteString("\n      - None")
		}
		for _, name := range names {
			prop := tool.InputSchema.Properties[name]
			typ := prop.Type
			if typ == "" {
				typ = "string"
			}
			fmt.Fprintf(&b, "\n      - %s (%s): %s", name, typ, prop.Description)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n")
}

// ExtractJSONObject returns the span from the first '{' to the last '}'
// of text, provided it is valid JSON.
func ExtractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", ErrNoJSONObject
	}

	span := text[start : end+1]
	if !gjson.Valid(span) {
		return "", fmt.Errorf("invalid JSON object in completion: %q", truncate(span, 80))
	}
	return span, nil
}

// parsePlan reads a plan from a valid JSON object, ignoring fields of the
// wrong type.
func parsePlan(span string) Plan {
	var plan Plan

	if name := gjson.Get(span, "tool_name"); name.Type == gjson.String {
		plan.ToolName = strings.TrimSpace(name.Str)
	}
	if reasoning := gjson.Get(span, "reasoning"); reasoning.Type == gjson.String {
		plan.Reasoning = reasoning.Str
	}
	if args := gjson.Get(span, "arguments"); args.IsObject() {
		if m, ok := args.Value().(map[string]any); ok {
			plan.Arguments = m
		}
	}
	return plan
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
