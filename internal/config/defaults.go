package config

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			DefaultAgent:      "PlannerAgent",
			MaxRounds:         10,
			ChainTools:        true,
			MaxClarifications: 3,
		},
		LLM: LLMConfig{
			Provider:    "ollama",
			Model:       "qwen2.5:32b",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.0,
			Stream:      false,
			MaxTokens:   4096,
			TimeoutSecs: 120,
		},
		Tools: ToolsConfig{
			CurrencyBaseURL: "https://open.er-api.com/v6/latest",
			WeatherBaseURL:  "https://api.openweathermap.org/data/2.5/weather",
			Location:        "Cary, US",
			TimeoutSecs:     15,
		},
		Browser: BrowserConfig{
			Enabled:     false,
			Headless:    true,
			TimeoutSecs: 30,
			MaxChars:    20000,
		},
		Plugins: PluginsConfig{
			Enabled:        true,
			TimeoutSecs:    60,
			SandboxEnabled: true,
		},
		Channels: ChannelsConfig{},
		Security: SecurityConfig{
			PIIFiltering: PIIFilterConfig{
				Enabled:      true,
				FilterEmails: true,
				FilterPhones: true,
				FilterCards:  true,
				FilterIPs:    false,
				FilterSSN:    true,
			},
		},
		Memory: MemoryConfig{
			Enabled: true,
		},
	}
}
