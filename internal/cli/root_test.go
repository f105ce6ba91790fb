package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with fresh flag values
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cfgFile, logLevel, transport, endpoint = "", "", "", ""
	callArgs, callRaw = "{}", false
	runTool, runOutput = "", "text"
	initForce, initProvider, initAPIKey = false, "", ""
	serveHost, servePort, serveRoot = "", 0, ""

	cmd := GetRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// writeConfig writes a config file using the scripted provider
func writeConfig(t *testing.T, transport, endpoint string) string {
	t.Helper()

	cfg := map[string]any{
		"mcp":     map[string]any{"transport": transport, "endpoint": endpoint, "request_timeout": 5, "http_timeout": 5},
		"ai":      map[string]any{"provider": "scripted", "max_tokens": 256},
		"logging": map[string]any{"level": "error"},
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		out, err := execute(t, "", "--version")
		require.NoError(t, err)

		assert.Contains(t, out, "toolwire version")
		assert.Contains(t, out, GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		out, err := execute(t, "", "--help")
		require.NoError(t, err)

		assert.Contains(t, out, "Toolwire")
		for _, name := range []string{"tools", "call", "read", "run", "chat", "serve", "status", "init"} {
			assert.Contains(t, out, name)
		}
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "", logLevelFlag.DefValue)

		require.NotNil(t, cmd.PersistentFlags().ShorthandLookup("t"))
		require.NotNil(t, cmd.PersistentFlags().ShorthandLookup("e"))
	})

	t.Run("invalid log level", func(t *testing.T) {
		path := writeConfig(t, "websocket", "ws://127.0.0.1:1/ws")
		_, err := execute(t, "", "--config", path, "--log-level", "loud", "status")
		assert.Error(t, err)
	})
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs(`{"path": "a.txt", "n": 2}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": "a.txt", "n": float64(2)}, args)

	args, err = parseArgs("  ")
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = parseArgs(`[1, 2]`)
	assert.Error(t, err)

	_, err = parseArgs(`{broken`)
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "5s", formatDuration(5*time.Second))
	assert.Equal(t, "2m3s", formatDuration(2*time.Minute+3*time.Second))
	assert.Equal(t, "1h0m1s", formatDuration(time.Hour+time.Second))
}
