package generation

import (
	"context"
	"fmt"
	"time"
)

// Settings selects and configures a provider. Zero-value fields fall back to
// provider defaults.
type Settings struct {
	Provider string // openai, anthropic, gemini
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// NewClient builds a Client for the configured provider.
func NewClient(ctx context.Context, settings Settings) (Client, error) {
	timeout := settings.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	switch settings.Provider {
	case "openai", "":
		config := DefaultOpenAIConfig(settings.APIKey)
		config.Timeout = timeout
		if settings.Model != "" {
			config.Model = settings.Model
		}
		if settings.BaseURL != "" {
			config.BaseURL = settings.BaseURL
		}
		return NewOpenAIClientWithConfig(config), nil

	case "anthropic":
		config := DefaultAnthropicConfig(settings.APIKey)
		config.Timeout = timeout
		if settings.Model != "" {
			config.Model = settings.Model
		}
		if settings.BaseURL != "" {
			config.BaseURL = settings.BaseURL
		}
		return NewAnthropicClientWithConfig(config), nil

	case "gemini":
		return NewGeminiClient(ctx, settings.APIKey, settings.Model)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", settings.Provider)
	}
}
