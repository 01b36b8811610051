package config

// Config is the top-level application configuration.
type Config struct {
	Agent       AgentConfig    `json:"agent"`
	LLM         LLMConfig      `json:"llm"`
	FallbackLLM *LLMConfig     `json:"fallback_llm,omitempty"`
	Tools       ToolsConfig    `json:"tools"`
	Browser     BrowserConfig  `json:"browser"`
	Plugins     PluginsConfig  `json:"plugins"`
	Channels    ChannelsConfig `json:"channels"`
	Security    SecurityConfig `json:"security"`
	Memory      MemoryConfig   `json:"memory"`
	Blog        BlogConfig     `json:"blog"`
}

type AgentConfig struct {
	DefaultAgent      string `json:"default_agent"`
	MaxRounds         int    `json:"max_rounds"`
	ChainTools        bool   `json:"chain_tools"`
	MaxClarifications int    `json:"max_clarifications"`
}

type LLMConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	APIKey      string  `json:"api_key,omitempty"`
	BaseURL     string  `json:"base_url,omitempty"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
	MaxTokens   int     `json:"max_tokens"`
	TimeoutSecs int     `json:"timeout_secs"`
}

type ToolsConfig struct {
	Enabled         []string `json:"enabled,omitempty"`
	CurrencyBaseURL string   `json:"currency_base_url"`
	WeatherBaseURL  string   `json:"weather_base_url"`
	WeatherAPIKey   string   `json:"weather_api_key,omitempty"`
	Location        string   `json:"location"`
	TimeoutSecs     int      `json:"timeout_secs"`
}

type BrowserConfig struct {
	Enabled        bool     `json:"enabled"`
	Headless       bool     `json:"headless"`
	TimeoutSecs    int      `json:"timeout_secs"`
	AllowedDomains []string `json:"allowed_domains,omitempty"`
	DeniedDomains  []string `json:"denied_domains,omitempty"`
	MaxChars       int      `json:"max_chars"`
}

type PluginsConfig struct {
	Enabled        bool     `json:"enabled"`
	SkillsDir      string   `json:"skills_dir,omitempty"`
	EnabledSkills  []string `json:"enabled_skills,omitempty"`
	TimeoutSecs    int      `json:"timeout_secs"`
	SandboxEnabled bool     `json:"sandbox_enabled"`
}

type ChannelsConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	HTTP     *HTTPConfig     `json:"http,omitempty"`
}

type TelegramConfig struct {
	Token      string  `json:"token"`
	AllowedIDs []int64 `json:"allowed_ids,omitempty"`
}

type HTTPConfig struct {
	Addr          string `json:"addr"`
	EnableMetrics bool   `json:"enable_metrics"`
}

type SecurityConfig struct {
	PIIFiltering PIIFilterConfig `json:"pii_filtering"`
}

type PIIFilterConfig struct {
	Enabled      bool `json:"enabled"`
	FilterEmails bool `json:"filter_emails"`
	FilterPhones bool `json:"filter_phones"`
	FilterCards  bool `json:"filter_cards"`
	FilterIPs    bool `json:"filter_ips"`
	FilterSSN    bool `json:"filter_ssn"`
}

type MemoryConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"db_path,omitempty"`
}

type BlogConfig struct {
	OutputDir string `json:"output_dir,omitempty"`
}
