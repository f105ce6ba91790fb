package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/toolwire/pkg/mcpclient"
)

func TestResolveArgumentsPathDefaultFromSchema(t *testing.T) {
	tool := mcpclient.ToolDescriptor{
		Name: "read_file",
		InputSchema: mcpclient.ParseInputSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "default": "sample.txt"},
			},
			"required": []any{"path"},
		}),
	}

	args, err := ResolveArguments(&tool, map[string]any{}, "other.txt")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": "sample.txt"}, args)
}

func TestResolveArgumentsPathFallback(t *testing.T) {
	tool := mcpclient.ToolDescriptor{
		Name: "read_file",
		InputSchema: mcpclient.ParseInputSchema(map[string]any{
			"properties": map[string]any{"path": map[string]any{"type": "string"}},
		}),
	}

	args, err := ResolveArguments(&tool, nil, "notes.md")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": "notes.md"}, args)

	args, err = ResolveArguments(&tool, map[string]any{"path": "given.txt"}, "notes.md")
	require.NoError(t, err)
	assert.Equal(t, "given.txt", args["path"])
}

func TestResolveArgumentsRequiredDefaults(t *testing.T) {
	tool := mcpclient.ToolDescriptor{
		Name: "convert",
		InputSchema: mcpclient.ParseInputSchema(map[string]any{
			"properties": map[string]any{
				"format": map[string]any{"type": "string", "default": "md"},
				"level":  map[string]any{"type": "integer"},
			},
			"required": []any{"format"},
		}),
	}

	args, err := ResolveArguments(&tool, map[string]any{"format": ""}, "")
	require.NoError(t, err)
	assert.Equal(t, "md", args["format"])
	assert.NotContains(t, args, "level")
}

func TestResolveArgumentsMissing(t *testing.T) {
	tool := mcpclient.ToolDescriptor{
		Name: "convert",
		InputSchema: mcpclient.ParseInputSchema(map[string]any{
			"properties": map[string]any{
				"format": map[string]any{"type": "string"},
				"target": map[string]any{"type": "string"},
			},
			"required": []any{"format", "target"},
		}),
	}

	_, err := ResolveArguments(&tool, map[string]any{"target": nil}, "")
	require.Error(t, err)

	var missing *MissingArgumentsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"format", "target"}, missing.Names)
	assert.Equal(t, "Missing required arguments: format, target", err.Error())
}

func TestResolveArgumentsPassesSchemaViolations(t *testing.T) {
	tool := mcpclient.ToolDescriptor{
		Name: "read_file",
		InputSchema: mcpclient.ParseInputSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":      map[string]any{"type": "string"},
				"max_lines": map[string]any{"type": "integer"},
			},
			"required": []any{"path", "max_lines"},
		}),
	}

	args, err := ResolveArguments(&tool, map[string]any{"path": "a.txt", "max_lines": "20"}, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": "a.txt", "max_lines": "20"}, args)

	err = ValidateArguments(&tool, args)
	var invalid *InvalidArgumentsError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "read_file", invalid.Tool)
	assert.Contains(t, err.Error(), "max_lines")
}

func TestValidateArguments(t *testing.T) {
	tool := mcpclient.ToolDescriptor{
		Name: "repeat",
		InputSchema: mcpclient.ParseInputSchema(map[string]any{
			"type":       "object",
			"properties": map[string]any{"count": map[string]any{"type": "integer", "minimum": 1}},
			"required":   []any{"count"},
		}),
	}

	err := ValidateArguments(&tool, map[string]any{"count": 0})
	var invalid *InvalidArgumentsError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "repeat", invalid.Tool)
	assert.NotEmpty(t, invalid.Problems)

	assert.NoError(t, ValidateArguments(&tool, map[string]any{"count": 3}))
	assert.NoError(t, ValidateArguments(nil, map[string]any{"count": "x"}))
	assert.NoError(t, ValidateArguments(&mcpclient.ToolDescriptor{Name: "bare"}, map[string]any{"x": 1}))
}

func TestResolveArgumentsNoTool(t *testing.T) {
	planned := map[string]any{"a": 1}
	args, err := ResolveArguments(nil, planned, "sample.txt")
	require.NoError(t, err)
	assert.Equal(t, planned, args)

	args["b"] = 2
	assert.NotContains(t, planned, "b")
}

func TestFindReadTool(t *testing.T) {
	named := func(names ...string) []mcpclient.ToolDescriptor {
		out := make([]mcpclient.ToolDescriptor, 0, len(names))
		for _, n := range names {
			out = append(out, mcpclient.ToolDescriptor{Name: n})
		}
		return out
	}

	tests := []struct {
		name    string
		catalog []mcpclient.ToolDescriptor
		want    string
		found   bool
	}{
		{"preferred candidate", named("read_file", "read_file_mcp"), "read_file_mcp", true},
		{"later candidate", named("echo", "readfile"), "readfile", true},
		{"substring match", named("echo", "ReadTextFile"), "ReadTextFile", true},
		{"first tool", named("echo", "ping"), "echo", true},
		{"empty", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool, ok := FindReadTool(tt.catalog)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, tool.Name)
		})
	}
}
