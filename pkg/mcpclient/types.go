package mcpclient

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies a transport variant
type Kind string

const (
	KindSocket Kind = "websocket"
	KindStream Kind = "sse"
	KindHTTP   Kind = "http"
)

// ParseKind maps user-facing transport names onto a Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "websocket", "ws", "socket":
		return KindSocket, nil
	case "sse", "stream", "streaming":
		return KindStream, nil
	case "http", "https":
		return KindHTTP, nil
	default:
		return "", fmt.Errorf("unknown transport %q (must be one of: websocket, sse, http)", s)
	}
}

// Property describes one input parameter of a tool
type Property struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
	HasDefault  bool   `json:"-"`
}

// InputSchema is the JSON schema a tool declares for its arguments.
// Raw keeps the schema as received so validation sees every constraint.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
	Raw        map[string]any      `json:"-"`
}

// PropertyNames returns the declared parameter names, required ones first
// in schema order, then the rest sorted.
func (s InputSchema) PropertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	seen := make(map[string]bool, len(s.Properties))
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}

	var rest []string
	for name := range s.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// ToolDescriptor describes a discovered tool
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InvocationResult is the transport-independent outcome of a tool call
type InvocationResult struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
	Raw     any    `json:"raw"`
	Tool    string `json:"tool"`
	Error   string `json:"error,omitempty"`
}

// DefaultInputSchema is used for tools that declare no schema
func DefaultInputSchema() InputSchema {
	return InputSchema{
		Type:       "object",
		Properties: map[string]Property{},
		Required:   []string{},
		Raw: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []any{},
		},
	}
}

// ParseToolDescriptor builds a descriptor from a decoded JSON object.
// It reports false for entries that are not objects or carry no name.
func ParseToolDescriptor(v any) (ToolDescriptor, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return ToolDescriptor{}, false
	}

	name, _ := m["name"].(string)
	if name == "" {
		return ToolDescriptor{}, false
	}

	desc, _ := m["description"].(string)

	schema := DefaultInputSchema()
	for _, key := range []string{"inputSchema", "input_schema"} {
		if raw, ok := m[key].(map[string]any); ok {
			schema = ParseInputSchema(raw)
			break
		}
	}

	return ToolDescriptor{
		Name:        name,
		Description: desc,
		InputSchema: schema,
	}, true
}

// ParseInputSchema reads type, properties and required from a schema object
func ParseInputSchema(raw map[string]any) InputSchema {
	schema := InputSchema{
		Type:       "object",
		Properties: map[string]Property{},
		Required:   []string{},
		Raw:        raw,
	}

	if t, ok := raw["type"].(string); ok && t != "" {
		schema.Type = t
	}

	if props, ok := raw["properties"].(map[string]any); ok {
		for name, propData := range props {
			prop := Property{}
			if p, ok := propData.(map[string]any); ok {
				if typeVal, ok := p["type"].(string); ok {
					prop.Type = typeVal
				}
				if desc, ok := p["description"].(string); ok {
					prop.Description = desc
				}
				if defVal, ok := p["default"]; ok {
					prop.Default = defVal
					prop.HasDefault = true
				}
			}
			schema.Properties[name] = prop
		}
	}

	if reqList, ok := raw["required"].([]any); ok {
		for _, r := range reqList {
			if name, ok := r.(string); ok && name != "" {
				schema.Required = append(schema.Required, name)
			}
		}
	}

	return schema
}

// ParseToolList converts decoded tool entries into descriptors, dropping
// unnamed entries.
func ParseToolList(entries []any) []ToolDescriptor {
	tools := make([]ToolDescriptor, 0, len(entries))
	for _, entry := range entries {
		if tool, ok := ParseToolDescriptor(entry); ok {
			tools = append(tools, tool)
		}
	}
	return tools
}
