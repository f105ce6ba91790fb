package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTransport validates a transport kind name
func (v *Validator) ValidateTransport(transport string) error {
	validTransports := []string{"websocket", "ws", "socket", "sse", "stream", "streaming", "http", "https"}
	for _, valid := range validTransports {
		if strings.EqualFold(transport, valid) {
			return nil
		}
	}
	return fmt.Errorf("invalid transport: %s (must be one of: websocket, sse, http)", transport)
}

// ValidateEndpoint checks that an endpoint parses and matches its transport
func (v *Validator) ValidateEndpoint(endpoint, transport string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	// HTTP shim accepts bare host:port
	if !strings.Contains(endpoint, "://") {
		if strings.EqualFold(transport, "http") || strings.EqualFold(transport, "https") {
			return nil
		}
		return fmt.Errorf("endpoint %s has no scheme", endpoint)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %s: %w", endpoint, err)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %s has no host", endpoint)
	}

	switch strings.ToLower(transport) {
	case "websocket", "ws", "socket":
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("websocket endpoint must use ws:// or wss://, got %s", u.Scheme)
		}
	case "sse", "stream", "streaming":
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("sse endpoint must use http:// or https://, got %s", u.Scheme)
		}
	}

	return nil
}

// ValidateProvider validates a completion provider name
func (v *Validator) ValidateProvider(provider string) error {
	validProviders := []string{"openai", "anthropic", "scripted"}
	for _, valid := range validProviders {
		if provider == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid ai provider: %s (must be one of: %s)", provider, strings.Join(validProviders, ", "))
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig collects every problem instead of stopping at the first
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateTransport(cfg.MCP.Transport); err != nil {
		errors = append(errors, err)
	} else if err := v.ValidateEndpoint(cfg.MCP.Endpoint, cfg.MCP.Transport); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateProvider(cfg.AI.Provider); err != nil {
		errors = append(errors, err)
	} else if cfg.AI.Provider != "scripted" {
		if err := v.ValidateAPIKey(cfg.AI.APIKey, cfg.AI.Provider); err != nil {
			errors = append(errors, err)
		}
	}
	if err := v.ValidateMaxTokens(cfg.AI.MaxTokens); err != nil {
		errors = append(errors, err)
	}

	if cfg.Agent.HistorySize <= 0 {
		errors = append(errors, fmt.Errorf("agent.history_size must be > 0"))
	}
	if cfg.Agent.SummaryWords <= 0 {
		errors = append(errors, fmt.Errorf("agent.summary_words must be > 0"))
	}
	if cfg.Gateway.PageSize < 0 {
		errors = append(errors, fmt.Errorf("gateway.page_size must be >= 0"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
