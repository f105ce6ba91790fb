package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/toolwire/internal/config"
)

// Provider is a completion service used by the planner and the composer
type Provider interface {
	// Complete returns the model's reply to a single prompt
	Complete(ctx context.Context, prompt string) (string, error)

	// Name returns the provider name
	Name() string
}

// NewProvider creates the provider named in cfg
func NewProvider(cfg config.AIConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.MaxTokens), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.Model, cfg.MaxTokens), nil
	case "scripted":
		return NewOfflineProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
