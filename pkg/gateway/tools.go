package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// StaticText is the reply of the read_file_mcp tool
const StaticText = "This is a static response from /read-file."

// maxReadBytes bounds the size of files served by read_file
const maxReadBytes = 1 << 20

// ErrUnknownTool is returned for calls to an unregistered tool
var ErrUnknownTool = errors.New("unknown tool")

// ToolHandler runs a tool and returns its text output
type ToolHandler func(ctx context.Context, args map[string]any) (string, error)

// Tool is a tool served on every transport
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     ToolHandler
}

// Descriptor returns the tool as it appears in a tools/list response
func (t Tool) Descriptor() map[string]any {
	schema := t.InputSchema
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return map[string]any{
		"name":        t.Name,
		"description": t.Description,
		"inputSchema": schema,
	}
}

// Toolbox holds the served tools in registration order
type Toolbox struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

// NewToolbox creates a toolbox holding tools
func NewToolbox(tools ...Tool) (*Toolbox, error) {
	b := &Toolbox{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := b.Register(t); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Register adds or replaces a tool
func (b *Toolbox) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s has no handler", t.Name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.tools[t.Name]; !exists {
		b.order = append(b.order, t.Name)
	}
	b.tools[t.Name] = t
	return nil
}

// List returns the tools in registration order
func (b *Toolbox) List() []Tool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Tool, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.tools[name])
	}
	return out
}

// Get returns the named tool
func (b *Toolbox) Get(name string) (Tool, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.tools[name]
	return t, ok
}

// Call runs the named tool
func (b *Toolbox) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := b.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if args == nil {
		args = map[string]any{}
	}

	log.Debug().
		Str("tool", name).
		Str("transport", transportFromContext(ctx)).
		Str("clientId", clientIDFromContext(ctx)).
		Msg("Tool call")

	return t.Handler(ctx, args)
}

// callResult renders a tool outcome as an MCP tools/call result
func callResult(text string, err error) map[string]any {
	if err != nil {
		text = err.Error()
	}
	return map[string]any{
		"content": []any{map[string]any{"type": "text", "text": text}},
		"isError": err != nil,
	}
}

// DefaultTools returns the demo tools. read_file serves files below root
// and reads defaultPath when no path is given.
func DefaultTools(root, defaultPath string) []Tool {
	return []Tool{
		StaticTool(),
		ReadFileTool(root, defaultPath),
	}
}

// StaticTool returns read_file_mcp, which always answers StaticText
func StaticTool() Tool {
	return Tool{
		Name:        "read_file_mcp",
		Description: "Return the static text of the /read-file endpoint.",
		Handler: func(context.Context, map[string]any) (string, error) {
			return StaticText, nil
		},
	}
}

// ReadFileTool returns read_file, confined to root
func ReadFileTool(root, defaultPath string) Tool {
	if root == "" {
		root = "."
	}
	if defaultPath == "" {
		defaultPath = "sample.txt"
	}

	return Tool{
		Name:        "read_file",
		Description: "Read a text file from the server's root directory.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "File path relative to the server root",
					"default":     defaultPath,
				},
			},
			"required": []any{"path"},
		},
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			if strings.TrimSpace(path) == "" {
				path = defaultPath
			}
			return readConfined(root, path)
		},
	}
}

// readConfined reads name relative to root. ".." segments are clamped
// to root and symlinks that resolve outside it are refused.
func readConfined(root, name string) (string, error) {
	rel := strings.TrimPrefix(filepath.Clean(string(filepath.Separator)+name), string(filepath.Separator))
	if rel == "" {
		rel = "."
	}

	dir, err := os.OpenRoot(root)
	if err != nil {
		return "", fmt.Errorf("open root %s: %w", root, err)
	}
	defer dir.Close()

	f, err := dir.Open(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file not found: %s", name)
		}
		return "", fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", name)
	}
	if info.Size() > maxReadBytes {
		return "", fmt.Errorf("%s is larger than %d bytes", name, maxReadBytes)
	}

	data, err := io.ReadAll(io.LimitReader(f, maxReadBytes+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) > maxReadBytes {
		return "", fmt.Errorf("%s is larger than %d bytes", name, maxReadBytes)
	}
	return string(data), nil
}
