package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// reloadDelay coalesces the burst of events an editor save produces
const reloadDelay = 100 * time.Millisecond

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the config file when present and overlays TOOLWIRE_*
// environment variables, e.g. TOOLWIRE_AI_API_KEY or TOOLWIRE_MCP_ENDPOINT.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("TOOLWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".toolwire")
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it
// during Unmarshal even when the file does not mention it.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("mcp.transport", cfg.MCP.Transport)
	v.SetDefault("mcp.endpoint", cfg.MCP.Endpoint)
	v.SetDefault("mcp.client_name", cfg.MCP.ClientName)
	v.SetDefault("mcp.client_version", cfg.MCP.ClientVersion)
	v.SetDefault("mcp.request_timeout", cfg.MCP.RequestTimeout)
	v.SetDefault("mcp.http_timeout", cfg.MCP.HTTPTimeout)

	v.SetDefault("ai.provider", cfg.AI.Provider)
	v.SetDefault("ai.api_key", cfg.AI.APIKey)
	v.SetDefault("ai.model", cfg.AI.Model)
	v.SetDefault("ai.max_tokens", cfg.AI.MaxTokens)

	v.SetDefault("agent.history_size", cfg.Agent.HistorySize)
	v.SetDefault("agent.default_file_path", cfg.Agent.DefaultFilePath)
	v.SetDefault("agent.summary_words", cfg.Agent.SummaryWords)
	v.SetDefault("agent.require_read_tool", cfg.Agent.RequireReadTool)
	v.SetDefault("agent.strict_arguments", cfg.Agent.StrictArguments)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)

	v.SetDefault("gateway.host", cfg.Gateway.Host)
	v.SetDefault("gateway.port", cfg.Gateway.Port)
	v.SetDefault("gateway.root", cfg.Gateway.Root)
	v.SetDefault("gateway.page_size", cfg.Gateway.PageSize)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)

	v.SetDefault("data_dir", cfg.DataDir)
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to resolve config path")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("mcp", cfg.MCP)
	v.Set("ai", cfg.AI)
	v.Set("agent", cfg.Agent)
	v.Set("logging", cfg.Logging)
	v.Set("gateway", cfg.Gateway)
	v.Set("metrics", cfg.Metrics)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	return nil
}

// Watch reloads the config whenever its file changes and hands every
// successfully loaded copy to onChange. The directory is watched rather
// than the file so editors that replace the file on save are seen.
// Watching stops when ctx ends.
func (l *Loader) Watch(ctx context.Context, onChange func(*Config)) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to resolve config path")
	}
	configPath = filepath.Clean(configPath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go func() {
		defer watcher.Close()

		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != configPath {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					pending = time.After(reloadDelay)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("config", configPath).Msg("Config watcher error")

			case <-pending:
				pending = nil
				cfg, err := l.Load()
				if err != nil {
					log.Warn().Err(err).Str("config", configPath).Msg("Ignoring config change")
					continue
				}
				log.Info().Str("config", configPath).Msg("Configuration reloaded")
				onChange(cfg)
			}
		}
	}()

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".toolwire", "config.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
