package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("defaults when file doesn't exist", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nonexistent.json")

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "websocket", cfg.MCP.Transport)
		assert.Equal(t, 10, cfg.Agent.HistorySize)
		assert.NotEmpty(t, cfg.DataDir)
	})

	t.Run("load config from file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")

		testConfig := `{
			"mcp": {
				"transport": "http",
				"endpoint": "http://localhost:9000"
			},
			"ai": {
				"provider": "anthropic",
				"api_key": "sk-ant-test",
				"model": "claude-sonnet-4"
			},
			"agent": {
				"history_size": 5
			}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "http", cfg.MCP.Transport)
		assert.Equal(t, "http://localhost:9000", cfg.MCP.Endpoint)
		assert.Equal(t, "anthropic", cfg.AI.Provider)
		assert.Equal(t, "sk-ant-test", cfg.AI.APIKey)
		assert.Equal(t, 5, cfg.Agent.HistorySize)
		// untouched keys keep their defaults
		assert.Equal(t, "sample.txt", cfg.Agent.DefaultFilePath)
		assert.Equal(t, 10, cfg.MCP.HTTPTimeout)
	})

	t.Run("environment overrides", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		t.Setenv("TOOLWIRE_AI_API_KEY", "sk-from-env")
		t.Setenv("TOOLWIRE_MCP_TRANSPORT", "sse")

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "sk-from-env", cfg.AI.APIKey)
		assert.Equal(t, "sse", cfg.MCP.Transport)
	})

	t.Run("invalid json", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.json")
	loader := NewLoader(configPath)

	cfg := DefaultConfig()
	cfg.MCP.Endpoint = "ws://tools.internal:7000/ws"
	cfg.Agent.SummaryWords = 80
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "ws://tools.internal:7000/ws", loaded.MCP.Endpoint)
	assert.Equal(t, 80, loaded.Agent.SummaryWords)
}

func TestLoaderWatch(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"agent": {"strict_arguments": false}}`), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []*Config
	require.NoError(t, NewLoader(configPath).Watch(ctx, func(cfg *Config) {
		mu.Lock()
		seen = append(seen, cfg)
		mu.Unlock()
	}))

	latest := func() *Config {
		mu.Lock()
		defer mu.Unlock()
		if len(seen) == 0 {
			return nil
		}
		return seen[len(seen)-1]
	}

	// a broken edit is skipped and the next good one is delivered
	require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(configPath, []byte(`{"agent": {"strict_arguments": true, "summary_words": 42}}`), 0644))

	require.Eventually(t, func() bool {
		cfg := latest()
		return cfg != nil && cfg.Agent.StrictArguments && cfg.Agent.SummaryWords == 42
	}, 5*time.Second, 20*time.Millisecond)

	// other files in the directory are ignored
	mu.Lock()
	before := len(seen)
	mu.Unlock()
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(configPath), "other.json"), []byte("{}"), 0644))
	time.Sleep(3 * reloadDelay)
	mu.Lock()
	assert.Equal(t, before, len(seen))
	mu.Unlock()
}

func TestLoaderWatchMissingDirectory(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "absent", "config.json")
	err := NewLoader(configPath).Watch(context.Background(), func(*Config) {})
	assert.Error(t, err)
}
