package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/toolwire/internal/config"
	"github.com/harun/toolwire/pkg/mcpclient"
	"github.com/harun/toolwire/pkg/mcpclient/mcpclienttest"
	"github.com/harun/toolwire/pkg/session"
)

const endpoint = "ws://tools.test/ws"

func agentConfig(requireReadTool bool) config.AgentConfig {
	cfg := config.DefaultConfig().Agent
	cfg.RequireReadTool = requireReadTool
	return cfg
}

func setupTestRunner(t *testing.T, fake *mcpclienttest.Client, provider Provider, agentCfg config.AgentConfig) *Runner {
	t.Helper()

	sessions := session.New(func(kind mcpclient.Kind, _ string) (mcpclient.Client, error) {
		fake.KindValue = kind
		return fake, nil
	})
	t.Cleanup(func() { _ = sessions.Close() })

	runner, err := NewRunner(Config{
		Sessions: sessions,
		Provider: provider,
		Agent:    agentCfg,
	})
	require.NoError(t, err)
	return runner
}

func run(t *testing.T, r *Runner, text string) *HistoryEntry {
	t.Helper()
	entry, err := r.Run(context.Background(), Request{Transport: mcpclient.KindSocket, Endpoint: endpoint, Text: text})
	require.NoError(t, err)
	require.NotNil(t, entry)
	return entry
}

func schemaTool(name string, props map[string]mcpclient.Property, required ...string) mcpclient.ToolDescriptor {
	raw := map[string]any{"type": "object"}
	rawProps := map[string]any{}
	schema := mcpclient.DefaultInputSchema()
	for k, v := range props {
		schema.Properties[k] = v
		p := map[string]any{}
		if v.Type != "" {
			p["type"] = v.Type
		}
		rawProps[k] = p
	}
	raw["properties"] = rawProps
	req := make([]any, 0, len(required))
	for _, r := range required {
		req = append(req, r)
	}
	raw["required"] = req
	schema.Required = required
	schema.Raw = raw
	return mcpclient.ToolDescriptor{Name: name, Description: name, InputSchema: schema}
}

func TestNewRunnerRequiresDependencies(t *testing.T) {
	_, err := NewRunner(Config{Provider: NewScriptedProvider()})
	assert.Error(t, err)

	_, err = NewRunner(Config{Sessions: session.New(nil)})
	assert.Error(t, err)
}

func TestRunEndToEnd(t *testing.T) {
	fake := mcpclienttest.New(endpoint).
		AddTool(mcpclient.ToolDescriptor{Name: "read_file_mcp", Description: "reads a file"}, mcpclienttest.Text("hello world"))
	provider := NewScriptedProvider(
		`{"tool_name": "read_file_mcp", "arguments": {}, "reasoning": "the user asked for a file"}`,
		"The file greets the world.",
	)
	runner := setupTestRunner(t, fake, provider, agentConfig(true))

	entry := run(t, runner, "summarize sample.txt")

	assert.Equal(t, StateDone, entry.State)
	assert.Equal(t, StateDone, runner.State())
	require.NotNil(t, entry.ToolResult)
	assert.Equal(t, "hello world", entry.ToolResult.Content)
	assert.Empty(t, entry.ToolError)
	assert.Contains(t, entry.FinalResponse, "hello world")
	assert.Contains(t, entry.FinalResponse, "--- File Content (read_file_mcp) ---")
	assert.NotEmpty(t, entry.RunID)
	assert.Len(t, entry.Timestamp, len(TimestampLayout))

	assert.Equal(t, 1, runner.History().Len())
	latest, ok := runner.History().Get(0)
	require.True(t, ok)
	assert.Equal(t, entry.RunID, latest.RunID)
}

func TestRunRequiredToolOverride(t *testing.T) {
	fake := mcpclienttest.New(endpoint).
		AddTool(mcpclient.ToolDescriptor{Name: "tool_x"}, mcpclienttest.Text("x")).
		AddTool(mcpclient.ToolDescriptor{Name: "read_file_mcp"}, mcpclienttest.Text("file"))
	provider := NewScriptedProvider(`{"tool_name": "tool_x", "arguments": {}, "reasoning": "x fits"}`, "done")
	runner := setupTestRunner(t, fake, provider, agentConfig(false))

	entry, err := runner.Run(context.Background(), Request{
		Transport:    mcpclient.KindSocket,
		Endpoint:     endpoint,
		Text:         "read it",
		RequiredTool: "read_file_mcp",
	})
	require.NoError(t, err)

	assert.Equal(t, "read_file_mcp", entry.Plan.ToolName)
	assert.Contains(t, entry.Plan.Reasoning, "overriding 'tool_x' with required 'read_file_mcp'")
	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "read_file_mcp", calls[0].Name)
}

func TestRunDefaultsPathArgument(t *testing.T) {
	fake := mcpclienttest.New(endpoint).
		AddTool(schemaTool("read_file", map[string]mcpclient.Property{"path": {Type: "string"}}, "path"), mcpclienttest.Text("contents"))
	provider := NewScriptedProvider(`{"tool_name": "read_file", "arguments": {}, "reasoning": "r"}`, "s")
	runner := setupTestRunner(t, fake, provider, agentConfig(true))

	entry := run(t, runner, "what is in the file?")

	assert.Equal(t, map[string]any{"path": "sample.txt"}, entry.ArgumentsUsed)
	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sample.txt", calls[0].Arguments["path"])
}

func TestRunMissingArgumentsSkipsInvocation(t *testing.T) {
	fake := mcpclienttest.New(endpoint).
		AddTool(schemaTool("convert", map[string]mcpclient.Property{"format": {Type: "string"}}, "format"), mcpclienttest.Text("never"))
	provider := NewScriptedProvider(`{"tool_name": "convert", "arguments": {}, "reasoning": "convert it"}`, "Could not convert.")
	runner := setupTestRunner(t, fake, provider, agentConfig(false))

	entry := run(t, runner, "convert the file")

	assert.Equal(t, StateDone, entry.State)
	assert.Equal(t, "Missing required arguments: format", entry.ToolError)
	assert.Empty(t, entry.Plan.ToolName)
	assert.Nil(t, entry.ToolResult)
	assert.Empty(t, fake.Calls())
	assert.Equal(t, "Could not convert.", entry.FinalResponse)

	prompts := provider.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "tool error: Missing required arguments: format")
}

func TestRunSchemaViolationStillInvokes(t *testing.T) {
	fake := mcpclienttest.New(endpoint).
		AddTool(schemaTool("repeat", map[string]mcpclient.Property{"count": {Type: "integer"}}, "count"), mcpclienttest.Text("repeated"))
	provider := NewScriptedProvider(`{"tool_name": "repeat", "arguments": {"count": "20"}, "reasoning": "r"}`, "s")
	runner := setupTestRunner(t, fake, provider, agentConfig(false))

	entry := run(t, runner, "repeat")

	assert.Empty(t, entry.ToolError)
	assert.Equal(t, "repeat", entry.Plan.ToolName)
	require.Len(t, fake.Calls(), 1)
	assert.Equal(t, map[string]any{"count": "20"}, entry.ArgumentsUsed)
	assert.Equal(t, StateDone, entry.State)
}

func TestRunStrictArgumentsSkipsInvocation(t *testing.T) {
	fake := mcpclienttest.New(endpoint).
		AddTool(schemaTool("repeat", map[string]mcpclient.Property{"count": {Type: "integer"}}, "count"), mcpclienttest.Text("never"))
	provider := NewScriptedProvider(`{"tool_name": "repeat", "arguments": {"count": "many"}, "reasoning": "r"}`, "s")
	cfg := agentConfig(false)
	cfg.StrictArguments = true
	runner := setupTestRunner(t, fake, provider, cfg)

	entry := run(t, runner, "repeat")

	assert.Contains(t, entry.ToolError, "Invalid arguments for tool 'repeat'")
	assert.Empty(t, fake.Calls())
	assert.Equal(t, StateDone, entry.State)
}

func TestRunnerUpdateAgentConfig(t *testing.T) {
	plan := `{"tool_name": "repeat", "arguments": {"count": "many"}, "reasoning": "r"}`
	fake := mcpclienttest.New(endpoint).
		AddTool(schemaTool("repeat", map[string]mcpclient.Property{"count": {Type: "integer"}}, "count"), mcpclienttest.Text("repeated"))
	provider := NewScriptedProvider(plan, "s", plan, "s")
	runner := setupTestRunner(t, fake, provider, agentConfig(false))

	entry := run(t, runner, "repeat")
	assert.Empty(t, entry.ToolError)
	require.Len(t, fake.Calls(), 1)

	cfg := agentConfig(false)
	cfg.StrictArguments = true
	runner.UpdateAgentConfig(cfg)

	entry = run(t, runner, "repeat")
	assert.Contains(t, entry.ToolError, "Invalid arguments for tool 'repeat'")
	assert.Len(t, fake.Calls(), 1)
}

func TestRunInvocationFailureReachesDone(t *testing.T) {
	fake := mcpclienttest.New(endpoint).
		AddTool(mcpclient.ToolDescriptor{Name: "read_file"}, func(map[string]any) (any, error) {
			return nil, errors.New("disk on fire")
		})
	provider := NewScriptedProvider(`{"tool_name": "read_file", "arguments": {}, "reasoning": "r"}`, "Sorry.")
	runner := setupTestRunner(t, fake, provider, agentConfig(true))

	entry := run(t, runner, "read")

	assert.Equal(t, StateDone, entry.State)
	assert.Equal(t, "disk on fire", entry.ToolError)
	assert.Equal(t, "read_file", entry.Plan.ToolName)
	assert.Nil(t, entry.ToolResult)
	assert.Equal(t, "Sorry.", entry.FinalResponse)
}

func TestRunDiscoveryFailureContinues(t *testing.T) {
	fake := mcpclienttest.New(endpoint)
	fake.DiscoverErr = errors.New("tools/list unsupported")
	provider := NewScriptedProvider(`{"tool_name": null, "arguments": {}, "reasoning": "no tools"}`, "Nothing to do.")
	runner := setupTestRunner(t, fake, provider, agentConfig(true))

	entry := run(t, runner, "hello")

	assert.Equal(t, StateDone, entry.State)
	assert.Empty(t, entry.Plan.ToolName)
	assert.Equal(t, "Nothing to do.", entry.FinalResponse)
	assert.Contains(t, provider.Prompts()[0], "No tools are currently available.")
}

func TestRunComposerFallback(t *testing.T) {
	fake := mcpclienttest.New(endpoint).
		AddTool(mcpclient.ToolDescriptor{Name: "read_file_mcp"}, mcpclienttest.Text("hello world"))
	provider := NewScriptedProvider(`{"tool_name": "read_file_mcp", "arguments": {}, "reasoning": "r"}`).
		Fail(errors.New("rate limited"))
	runner := setupTestRunner(t, fake, provider, agentConfig(true))

	entry := run(t, runner, "summarize sample.txt")

	assert.Equal(t, StateDone, entry.State)
	assert.Equal(t,
		"summarize sample.txt\n\nTool 'read_file_mcp' output:\nhello world\n\n(Note: failed to contact language model: rate limited)",
		entry.FinalResponse)
}

func TestRunConnectionFailureRecordsEntry(t *testing.T) {
	fake := mcpclienttest.New(endpoint)
	fake.ConnectErr = errors.New("connection refused")
	runner := setupTestRunner(t, fake, NewScriptedProvider("unused"), agentConfig(true))

	entry, err := runner.Run(context.Background(), Request{Transport: mcpclient.KindSocket, Endpoint: endpoint, Text: "hi"})
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	require.NotNil(t, entry)

	assert.Equal(t, StateFailed, entry.State)
	assert.Contains(t, entry.FinalResponse, "connection refused")
	assert.Equal(t, 1, runner.History().Len())
	assert.Equal(t, StateFailed, runner.State())
}

func TestRunRejectsEmptyRequest(t *testing.T) {
	runner := setupTestRunner(t, mcpclienttest.New(endpoint), NewScriptedProvider(), agentConfig(true))

	_, err := runner.Run(context.Background(), Request{Transport: mcpclient.KindSocket, Endpoint: endpoint, Text: "  "})
	assert.Error(t, err)
	assert.Equal(t, 0, runner.History().Len())
}

func TestRunHistoryIsBounded(t *testing.T) {
	fake := mcpclienttest.New(endpoint).
		AddTool(mcpclient.ToolDescriptor{Name: "read_file_mcp"}, mcpclienttest.Text("hello"))
	provider := &ScriptedProvider{Respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Return JSON only") {
			return `{"tool_name": "read_file_mcp", "arguments": {}, "reasoning": "r"}`, nil
		}
		return "ok", nil
	}}
	runner := setupTestRunner(t, fake, provider, agentConfig(true))

	for i := 0; i < 12; i++ {
		run(t, runner, fmt.Sprintf("run %d", i))
	}

	entries := runner.History().List()
	require.Len(t, entries, 10)
	assert.Equal(t, "run 11", entries[0].Request)
	assert.Equal(t, "run 2", entries[9].Request)


	// the session is reused, never swapped
	assert.Zero(t, fake.Closes())
}
