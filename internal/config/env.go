package config

import "strconv"

// ApplyEnv overrides selected settings from the environment. Values set here are
// not meant to be saved back to the file.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set("POLYAGENT_LLM_PROVIDER", &cfg.LLM.Provider)
	set("POLYAGENT_LLM_MODEL", &cfg.LLM.Model)
	set("POLYAGENT_LLM_BASE_URL", &cfg.LLM.BaseURL)
	set("POLYAGENT_API_KEY", &cfg.LLM.APIKey)
	set("POLYAGENT_DEFAULT_AGENT", &cfg.Agent.DefaultAgent)
	set("POLYAGENT_WEATHER_API_KEY", &cfg.Tools.WeatherAPIKey)
	set("POLYAGENT_MEMORY_DB", &cfg.Memory.DBPath)

	if token := getenv("POLYAGENT_TELEGRAM_TOKEN"); token != "" {
		if cfg.Channels.Telegram == nil {
			cfg.Channels.Telegram = &TelegramConfig{}
		}
		cfg.Channels.Telegram.Token = token
	}
	if v := getenv("POLYAGENT_MEMORY_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Memory.Enabled = enabled
		}
	}
}
