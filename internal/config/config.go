package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main toolwire configuration
type Config struct {
	// Tool server connection
	MCP MCPConfig `json:"mcp" mapstructure:"mcp"`

	// Completion provider
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Agent loop
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Demo tool server
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Prometheus endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// MCPConfig holds the tool server endpoint and transport settings
type MCPConfig struct {
	Transport      string `json:"transport" mapstructure:"transport"` // websocket, sse, http
	Endpoint       string `json:"endpoint" mapstructure:"endpoint"`
	ClientName     string `json:"client_name" mapstructure:"client_name"`
	ClientVersion  string `json:"client_version" mapstructure:"client_version"`
	RequestTimeout int    `json:"request_timeout" mapstructure:"request_timeout"` // seconds
	HTTPTimeout    int    `json:"http_timeout" mapstructure:"http_timeout"`       // seconds
}

// AIConfig holds completion provider configuration
type AIConfig struct {
	Provider  string `json:"provider" mapstructure:"provider"` // openai, anthropic, scripted
	APIKey    string `json:"api_key" mapstructure:"api_key"`
	Model     string `json:"model" mapstructure:"model"`
	MaxTokens int    `json:"max_tokens" mapstructure:"max_tokens"`
}

// AgentConfig holds agent loop settings
type AgentConfig struct {
	HistorySize     int    `json:"history_size" mapstructure:"history_size"`
	DefaultFilePath string `json:"default_file_path" mapstructure:"default_file_path"`
	SummaryWords    int    `json:"summary_words" mapstructure:"summary_words"`
	RequireReadTool bool   `json:"require_read_tool" mapstructure:"require_read_tool"`
	// StrictArguments skips the call when arguments violate the tool schema
	StrictArguments bool   `json:"strict_arguments" mapstructure:"strict_arguments"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// GatewayConfig holds demo tool server configuration
type GatewayConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Root     string `json:"root" mapstructure:"root"` // directory served by read_file
	PageSize int    `json:"page_size" mapstructure:"page_size"`
}

// MetricsConfig holds the prometheus listener settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// RequestTimeoutDuration returns the socket read deadline
func (c MCPConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// HTTPTimeoutDuration returns the per-probe HTTP timeout
func (c MCPConfig) HTTPTimeoutDuration() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Second
}

// Addr returns the gateway listen address
func (c GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		MCP: MCPConfig{
			Transport:      "websocket",
			Endpoint:       "ws://localhost:8000/ws",
			ClientName:     "toolwire",
			ClientVersion:  "0.1.0",
			RequestTimeout: 30,
			HTTPTimeout:    10,
		},
		AI: AIConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			MaxTokens: 1024,
		},
		Agent: AgentConfig{
			HistorySize:     10,
			DefaultFilePath: "sample.txt",
			SummaryWords:    50,
			RequireReadTool: true,
		},
		Logging: LoggingConfig{
			Level:     "warn",
			Pretty:    true,
			Redaction: true,
		},
		Gateway: GatewayConfig{
			Host:     "127.0.0.1",
			Port:     8000,
			Root:     ".",
			PageSize: 50,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	v := NewValidator()

	if err := v.ValidateTransport(c.MCP.Transport); err != nil {
		return err
	}
	if c.MCP.Endpoint == "" {
		return fmt.Errorf("mcp endpoint is required")
	}
	if c.MCP.RequestTimeout <= 0 {
		return fmt.Errorf("mcp request_timeout must be positive, got %d", c.MCP.RequestTimeout)
	}
	if c.MCP.HTTPTimeout <= 0 {
		return fmt.Errorf("mcp http_timeout must be positive, got %d", c.MCP.HTTPTimeout)
	}

	if err := v.ValidateProvider(c.AI.Provider); err != nil {
		return err
	}
	if c.AI.Provider != "scripted" {
		if err := v.ValidateAPIKey(c.AI.APIKey, c.AI.Provider); err != nil {
			return err
		}
		if c.AI.Model == "" {
			return fmt.Errorf("ai model is required for provider %s", c.AI.Provider)
		}
	}
	if err := v.ValidateMaxTokens(c.AI.MaxTokens); err != nil {
		return err
	}

	if c.Agent.HistorySize <= 0 {
		return fmt.Errorf("agent history_size must be positive, got %d", c.Agent.HistorySize)
	}
	if c.Agent.SummaryWords <= 0 {
		return fmt.Errorf("agent summary_words must be positive, got %d", c.Agent.SummaryWords)
	}

	if c.Logging.Level != "" {
		if err := v.ValidateLogLevel(c.Logging.Level); err != nil {
			return err
		}
	}

	return nil
}
