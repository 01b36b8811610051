package config

import (
	"fmt"
	"net/url"
)

var knownProviders = map[string]bool{
	"ollama":     true,
	"openai":     true,
	"openrouter": true,
	"local":      true,
	"anthropic":  true,
	"gemini":     true,
}

// Validate checks that the merged configuration is usable.
func (c *Config) Validate() error {
	if c.Agent.MaxRounds <= 0 {
		return fmt.Errorf("agent.max_rounds must be positive, got %d", c.Agent.MaxRounds)
	}
	if c.Agent.MaxClarifications < 0 {
		return fmt.Errorf("agent.max_clarifications must not be negative, got %d", c.Agent.MaxClarifications)
	}
	if err := c.LLM.validate("llm"); err != nil {
		return err
	}
	if c.FallbackLLM != nil {
		if err := c.FallbackLLM.validate("fallback_llm"); err != nil {
			return err
		}
	}
	if c.Tools.TimeoutSecs < 0 {
		return fmt.Errorf("tools.timeout_secs must not be negative, got %d", c.Tools.TimeoutSecs)
	}
	if c.Channels.HTTP != nil && c.Channels.HTTP.Addr == "" {
		return fmt.Errorf("channels.http.addr must be set when the http channel is configured")
	}
	return nil
}

func (l LLMConfig) validate(section string) error {
	if !knownProviders[l.Provider] {
		return fmt.Errorf("%s.provider: unknown provider %q", section, l.Provider)
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("%s.temperature must be within [0, 2], got %v", section, l.Temperature)
	}
	if l.TimeoutSecs < 0 {
		return fmt.Errorf("%s.timeout_secs must not be negative, got %d", section, l.TimeoutSecs)
	}
	if l.BaseURL != "" {
		if err := ValidateBaseURL(l.BaseURL); err != nil {
			return fmt.Errorf("%s.base_url: %w", section, err)
		}
	}
	return nil
}

// ValidateBaseURL checks that a base URL is valid and uses http/https scheme.
func ValidateBaseURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("base URL must use http or https scheme, got: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL must have a host")
	}
	return nil
}
