package llm

import (
	"context"
	"fmt"
	"time"

	"polyagent/internal/config"
)

// NewProvider creates an LLM provider from config.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaProvider(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil
	case "openai", "openrouter", "local":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil
	case "anthropic":
		return NewAnthropicProvider(AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil
	case "gemini":
		return NewGeminiProvider(ctx, GeminiConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}

// NewGatewayFromConfig builds the primary provider, chains the optional fallback
// behind it and wraps both in a Gateway.
func NewGatewayFromConfig(ctx context.Context, primary config.LLMConfig, fallback *config.LLMConfig) (*Gateway, error) {
	provider, err := NewProvider(ctx, primary)
	if err != nil {
		return nil, err
	}
	if fallback != nil {
		second, err := NewProvider(ctx, *fallback)
		if err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
		provider = NewFallbackProvider(provider, second)
	}

	return NewGateway(provider, GatewayOptions{
		Model:       primary.Model,
		Temperature: primary.Temperature,
		Stream:      primary.Stream,
		MaxTokens:   primary.MaxTokens,
		Timeout:     time.Duration(primary.TimeoutSecs) * time.Second,
		JSONMode:    true,
	}), nil
}
