package mcpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Normalize converts a decoded tools/call payload from any transport into
// an InvocationResult. Raw is kept unmodified. Rules, first match wins:
//
//  1. nil gives empty content
//  2. an object whose content list holds text fragments gives the trimmed
//     non-empty texts joined by newlines
//  3. an object whose content is a string gives that string
//  4. an object with a message field gives the message
//  5. any other object gives its indented JSON
//  6. a list gives its elements joined by newlines
//  7. anything else is stringified
func Normalize(raw any) InvocationResult {
	return InvocationResult{
		Success: true,
		Content: normalizedContent(canonical(raw)),
		Raw:     raw,
	}
}

func normalizedContent(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case map[string]any:
		if fragments, ok := textFragments(x["content"]); ok {
			return joinFragments(fragments)
		}
		if s, ok := x["content"].(string); ok {
			return s
		}
		if msg, ok := x["message"]; ok {
			return stringifyOrSprint(msg)
		}
		return prettyJSON(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			s, err := stringify(item)
			if err != nil {
				return fmt.Sprint(x)
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, "\n")
	default:
		return stringifyOrSprint(x)
	}
}

// textFragments collects the text of every fragment tagged type=text.
// It reports false when content is not a list or holds no text fragment.
func textFragments(content any) ([]string, bool) {
	items, ok := content.([]any)
	if !ok {
		return nil, false
	}

	var fragments []string
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok || m["type"] != "text" {
			continue
		}
		text, _ := m["text"].(string)
		fragments = append(fragments, text)
	}
	return fragments, len(fragments) > 0
}

func joinFragments(fragments []string) string {
	kept := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if f == "" {
			continue
		}
		kept = append(kept, strings.TrimSpace(f))
	}
	return strings.Join(kept, "\n")
}

// canonical maps typed Go values onto the shapes encoding/json decodes
// into, so typed SDK results follow the same rules as wire payloads.
func canonical(v any) any {
	switch v.(type) {
	case nil, map[string]any, []any, string, float64, bool, json.Number:
		return v
	}

	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func stringify(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	case json.Number:
		return x.String(), nil
	case map[string]any, []any:
		data, err := marshalNoEscape(x, "")
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return fmt.Sprint(x), nil
	}
}

func stringifyOrSprint(v any) string {
	s, err := stringify(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

func prettyJSON(v any) string {
	data, err := marshalNoEscape(v, "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func marshalNoEscape(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// resultFor normalizes a payload for tool name and turns an isError
// payload into a failed result.
func resultFor(name string, raw any) (InvocationResult, error) {
	result := Normalize(raw)
	result.Tool = name

	if m, ok := canonical(raw).(map[string]any); ok {
		if isErr, _ := m["isError"].(bool); isErr {
			result.Success = false
			result.Error = result.Content
			return result, fmt.Errorf("tool '%s' reported an error: %s: %w", name, result.Content, ErrInvocation)
		}
	}

	return result, nil
}

// failedResult is returned alongside transport errors
func failedResult(name string, err error) InvocationResult {
	return InvocationResult{
		Success: false,
		Tool:    name,
		Error:   err.Error(),
	}
}
