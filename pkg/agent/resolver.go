package agent

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/harun/toolwire/pkg/mcpclient"
)

// MissingArgumentsError lists required parameters left unfilled after defaulting
type MissingArgumentsError struct {
	Names []string
}

func (e *MissingArgumentsError) Error() string {
	return fmt.Sprintf("Missing required arguments: %s", strings.Join(e.Names, ", "))
}

// InvalidArgumentsError reports arguments rejected by the tool's input schema
type InvalidArgumentsError struct {
	Tool     string
	Problems []string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("Invalid arguments for tool '%s': %s", e.Tool, strings.Join(e.Problems, "; "))
}

// ResolveArguments fills the planned arguments for tool. A declared "path"
// parameter falls back to its schema default, then to defaultPath. Other
// required parameters fall back to their schema default only.
func ResolveArguments(tool *mcpclient.ToolDescriptor, planned map[string]any, defaultPath string) (map[string]any, error) {
	args := make(map[string]any, len(planned)+1)
	for k, v := range planned {
		args[k] = v
	}
	if tool == nil {
		return args, nil
	}

	schema := tool.InputSchema
	if prop, ok := schema.Properties["path"]; ok {
		if _, set := args["path"]; !set {
			if prop.HasDefault && !isEmpty(prop.Default) {
				args["path"] = prop.Default
			} else if defaultPath != "" {
				args["path"] = defaultPath
			}
		}
	}

	for _, name := range schema.Required {
		if !isEmpty(args[name]) {
			continue
		}
		if prop, ok := schema.Properties[name]; ok && prop.HasDefault && prop.Default != nil {
			args[name] = prop.Default
		}
	}

	var missing []string
	for _, name := range schema.Required {
		if isEmpty(args[name]) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingArgumentsError{Names: missing}
	}
	return args, nil
}

// ValidateArguments checks args against the tool's input schema as the
// server sent it. Servers commonly coerce values such as "20" for an
// integer, so callers decide whether a violation blocks the call. A schema
// that cannot be compiled is skipped.
func ValidateArguments(tool *mcpclient.ToolDescriptor, args map[string]any) error {
	if tool == nil || len(tool.InputSchema.Raw) == 0 {
		return nil
	}
	toolName := tool.Name
	schema := tool.InputSchema

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema.Raw),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		log.Debug().Err(err).Str("tool", toolName).Msg("Skipping argument validation")
		return nil
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		problems = append(problems, re.String())
	}
	return &InvalidArgumentsError{Tool: toolName, Problems: problems}
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

var readToolCandidates = []string{"read_file_mcp", "read_file", "readfile", "read_from_file"}

// FindReadTool picks the catalog's file-reading tool: a known name first,
// then any name mentioning both "read" and "file", else the first tool.
func FindReadTool(catalog []mcpclient.ToolDescriptor) (mcpclient.ToolDescriptor, bool) {
	for _, candidate := range readToolCandidates {
		for _, tool := range catalog {
			if tool.Name == candidate {
				return tool, true
			}
		}
	}

	for _, tool := range catalog {
		name := strings.ToLower(tool.Name)
		if strings.Contains(name, "read") && strings.Contains(name, "file") {
			return tool, true
		}
	}

	if len(catalog) > 0 {
		return catalog[0], true
	}
	return mcpclient.ToolDescriptor{}, false
}
