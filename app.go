package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"polyagent/internal/agent"
	"polyagent/internal/blog"
	"polyagent/internal/channel"
	"polyagent/internal/config"
	"polyagent/internal/eventbus"
	"polyagent/internal/llm"
	"polyagent/internal/memory"
	"polyagent/internal/metrics"
	"polyagent/internal/security"
	"polyagent/internal/skill"
	"polyagent/internal/tool"
)

// masterPasswordEnv unlocks the encrypted vault used when no OS keyring is available.
const masterPasswordEnv = "POLYAGENT_MASTER_PASSWORD"

// App holds the wired application.
type App struct {
	cfg         *config.Config
	cfgLoader   *config.Loader
	home        string
	bus         *eventbus.Bus
	keyStore    *security.KeyStore
	sanitizer   *security.Sanitizer
	journal     memory.Journal
	metrics     *metrics.Metrics
	gateway     *llm.Gateway
	registry    *tool.Registry
	skillLoader *skill.Loader
	factory     *agent.Factory
	runner      *agent.Runner
	chanMgr     *channel.Manager
	clarifier   agent.Clarifier
}

// AppOptions overrides parts of the wiring.
type AppOptions struct {
	// ConfigPath replaces ~/.polyagent/config.json.
	ConfigPath string
	// Completer replaces the configured LLM gateway.
	Completer agent.Completer
	// Clarifier answers InteractiveAgent questions outside channel runs.
	Clarifier agent.Clarifier
}

// NewApp loads the config and wires every component.
func NewApp(ctx context.Context, opts AppOptions) (*App, error) {
	loader := config.NewLoaderAt(opts.ConfigPath)
	if opts.ConfigPath == "" {
		var err error
		if loader, err = config.NewLoader(); err != nil {
			return nil, fmt.Errorf("config loader: %w", err)
		}
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &App{
		cfg:       cfg,
		cfgLoader: loader,
		home:      filepath.Dir(loader.FilePath()),
		bus:       eventbus.New(),
		chanMgr:   channel.NewManager(),
		clarifier: opts.Clarifier,
	}

	if err := a.initSecrets(); err != nil {
		return nil, err
	}
	// Applied after sealing so environment values never reach the file.
	config.ApplyEnv(cfg, os.Getenv)
	a.sanitizer = security.NewSanitizer(cfg.Security.PIIFiltering)

	a.metrics = metrics.New()
	a.metrics.Subscribe(a.bus)

	if cfg.Memory.Enabled {
		dbPath := cfg.Memory.DBPath
		if dbPath == "" {
			dbPath = filepath.Join(a.home, "memory.db")
		}
		journal, err := memory.NewSQLiteJournal(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.journal = journal
		memory.Record(a.bus, journal)
	}

	completer := opts.Completer
	if completer == nil {
		gw, err := llm.NewGatewayFromConfig(ctx, cfg.LLM, cfg.FallbackLLM)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("llm: %w", err)
		}
		gw.SetBus(a.bus)
		a.gateway = gw
		completer = gw
	}

	a.registry = tool.NewRegistry()
	tool.RegisterBuiltins(a.registry, cfg.Tools, cfg.Browser)
	if cfg.Plugins.Enabled {
		a.loadSkills()
	}

	if err := a.registerAgents(completer); err != nil {
		a.Close()
		return nil, err
	}
	a.runner = agent.NewRunner(a.factory, cfg.Agent.DefaultAgent, a.bus, a.sanitizer, a.chanMgr)

	log.Printf("[app] ready: %d tools, agents %v, default %s", a.registry.Len(), a.factory.Names(), cfg.Agent.DefaultAgent)
	return a, nil
}

// initSecrets resolves "[keyring]" values and moves plaintext secrets out of the
// config file on first run.
func (a *App) initSecrets() error {
	masterKey, err := security.MasterKey(a.home, os.Getenv(masterPasswordEnv))
	if err != nil {
		return fmt.Errorf("master key: %w", err)
	}
	ks, err := security.NewKeyStoreAt(a.home, masterKey)
	if err != nil {
		return fmt.Errorf("key store: %w", err)
	}
	a.keyStore = ks

	if security.HasPlainSecrets(a.cfg) {
		if err := ks.SealSecrets(a.cfg); err != nil {
			log.Printf("[app] warning: secrets stay in config file: %v", err)
		} else if err := a.cfgLoader.Save(a.cfg); err != nil {
			return fmt.Errorf("save sealed config: %w", err)
		} else {
			log.Printf("[app] moved plaintext secrets from %s to the key store", a.cfgLoader.FilePath())
		}
	}
	return ks.ResolveSecrets(a.cfg)
}

func (a *App) loadSkills() {
	dir := a.skillsDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("[app] failed to create skills directory: %v", err)
	}
	a.skillLoader = skill.NewLoader(dir, a.cfg.Plugins.TimeoutSecs, a.cfg.Plugins.SandboxEnabled)
	n, err := a.skillLoader.Register(a.registry, a.cfg.Plugins.EnabledSkills)
	if err != nil {
		log.Printf("[app] failed to load skills: %v", err)
	}
	log.Printf("[app] loaded %d skills from %s", n, dir)
}

func (a *App) skillsDir() string {
	if a.cfg.Plugins.SkillsDir != "" {
		return a.cfg.Plugins.SkillsDir
	}
	return filepath.Join(a.home, "skills")
}

// agentInfos are the agents the planner may route to.
var agentInfos = []agent.AgentInfo{
	{Name: "ToolAgent", Description: "Answers questions that need live data or actions: currency conversion, weather, country lookups, current location, web search, web pages and installed skills."},
	{Name: "GenericAgent", Description: "Answers general knowledge questions and holds conversation without tools."},
	{Name: "InteractiveAgent", Description: "Handles requests that are missing details and must ask the user clarifying questions first."},
	{Name: "BlogAgent", Description: "Writes a complete technical blog post with introduction, body sections and conclusion."},
}

func (a *App) registerAgents(c agent.Completer) error {
	var exporter *blog.Exporter
	if a.cfg.Blog.OutputDir != "" {
		var err error
		if exporter, err = blog.NewExporter(a.cfg.Blog.OutputDir); err != nil {
			return fmt.Errorf("blog exporter: %w", err)
		}
	}

	toolCfg := agent.ToolAgentConfig{
		MaxRounds:  a.cfg.Agent.MaxRounds,
		SingleShot: !a.cfg.Agent.ChainTools,
	}

	f := agent.NewFactory()
	f.Register("ToolAgent", func() agent.Agent {
		return agent.NewToolAgent(c, a.registry, a.bus, toolCfg)
	})
	f.Alias("ToolsAgent", "ToolAgent")
	f.Register("GenericAgent", func() agent.Agent {
		return agent.NewGenericAgent(c, a.bus)
	})
	f.Register("InteractiveAgent", func() agent.Agent {
		return agent.NewInteractiveAgent(c, a.bus, a.clarifier, a.cfg.Agent.MaxClarifications)
	})
	f.Register("BlogAgent", func() agent.Agent {
		return blog.NewAgent(c, a.bus, exporter)
	})
	f.Register("PlannerAgent", func() agent.Agent {
		return agent.NewPlannerAgent(c, f, a.bus, agentInfos)
	})
	a.factory = f
	return nil
}

// Ask answers one query with the named agent.
func (a *App) Ask(ctx context.Context, name, query string) (agent.Result, error) {
	return a.runner.Ask(ctx, name, query, agent.RunOptions{Channel: "cli", Clarifier: a.clarifier})
}

// Chat serves the console until its input ends or ctx is cancelled.
func (a *App) Chat(ctx context.Context, in io.Reader, out io.Writer) error {
	console := channel.NewConsoleChannelWith(in, out)
	a.chanMgr.Register(console)
	if err := a.chanMgr.StartAll(ctx); err != nil {
		return err
	}
	a.runner.Start(ctx)

	select {
	case <-console.Done():
	case <-ctx.Done():
	}
	a.runner.Wait()
	return nil
}

// Serve runs the configured Telegram and HTTP channels until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if tg := a.cfg.Channels.Telegram; tg != nil && tg.Token != "" {
		a.chanMgr.Register(channel.NewTelegramChannel(channel.TelegramConfig{
			Token:      tg.Token,
			AllowedIDs: tg.AllowedIDs,
		}))
	}
	if hc := a.cfg.Channels.HTTP; hc != nil {
		httpCfg := channel.HTTPConfig{Addr: hc.Addr}
		if hc.EnableMetrics {
			httpCfg.Metrics = a.metrics.Handler()
		}
		a.chanMgr.Register(channel.NewHTTPChannel(httpCfg, a.askHTTP))
	}
	if len(a.chanMgr.Names()) == 0 {
		return fmt.Errorf("no channels configured in %s", a.cfgLoader.FilePath())
	}

	if err := a.chanMgr.StartAll(ctx); err != nil {
		return err
	}
	a.runner.Start(ctx)
	log.Printf("[app] serving on %v", a.chanMgr.Names())

	<-ctx.Done()
	a.runner.Wait()
	return nil
}

func (a *App) askHTTP(ctx context.Context, name, query string) (channel.AskResponse, error) {
	res, err := a.runner.Ask(ctx, name, query, agent.RunOptions{Channel: "http"})
	if err != nil {
		return channel.AskResponse{}, err
	}
	return channel.AskResponse{RunID: res.RunID, Agent: res.Agent, Answer: res.Answer, Failed: res.Failed}, nil
}

// History returns the most recent runs from the journal.
func (a *App) History(ctx context.Context, limit int) ([]memory.Run, error) {
	if a.journal == nil {
		return nil, fmt.Errorf("memory is disabled in %s", a.cfgLoader.FilePath())
	}
	return a.journal.RecentRuns(ctx, limit)
}

// RunEvents returns the events recorded for one run.
func (a *App) RunEvents(ctx context.Context, runID string) ([]memory.RunEvent, error) {
	if a.journal == nil {
		return nil, fmt.Errorf("memory is disabled in %s", a.cfgLoader.FilePath())
	}
	return a.journal.Events(ctx, runID)
}

// Tools lists the registered tools.
func (a *App) Tools() []tool.Descriptor {
	return a.registry.Describe()
}

// Skills lists the installed skills.
func (a *App) Skills() []skill.SkillInfo {
	if a.skillLoader == nil {
		return skill.NewLoader(a.skillsDir(), 0, true).ListInstalled(a.cfg.Plugins.EnabledSkills)
	}
	return a.skillLoader.ListInstalled(a.cfg.Plugins.EnabledSkills)
}

// Agents lists the agent identifiers.
func (a *App) Agents() []string {
	return a.factory.Names()
}

// SetSecret stores a secret and points the config at the key store.
func (a *App) SetSecret(name, value string) error {
	if !security.IsSecretName(name) {
		return fmt.Errorf("unknown secret %q, expected one of %v", name, security.SecretNames())
	}
	if err := a.keyStore.Set(name, value); err != nil {
		return err
	}
	sealed, err := a.sealedConfig()
	if err != nil {
		return err
	}
	switch name {
	case security.SecretLLMAPIKey:
		sealed.LLM.APIKey = security.KeyringPlaceholder
	case security.SecretFallbackLLMAPIKey:
		if sealed.FallbackLLM != nil {
			sealed.FallbackLLM.APIKey = security.KeyringPlaceholder
		}
	case security.SecretWeatherAPIKey:
		sealed.Tools.WeatherAPIKey = security.KeyringPlaceholder
	case security.SecretTelegramToken:
		if sealed.Channels.Telegram == nil {
			sealed.Channels.Telegram = &config.TelegramConfig{}
		}
		sealed.Channels.Telegram.Token = security.KeyringPlaceholder
	}
	return a.cfgLoader.Save(sealed)
}

// DeleteSecret removes a secret from the key store.
func (a *App) DeleteSecret(name string) error {
	if !security.IsSecretName(name) {
		return fmt.Errorf("unknown secret %q, expected one of %v", name, security.SecretNames())
	}
	return a.keyStore.Delete(name)
}

// sealedConfig re-reads the config file so resolved secrets never reach disk.
func (a *App) sealedConfig() (*config.Config, error) {
	cfg, err := config.NewLoaderAt(a.cfgLoader.FilePath()).Load()
	if err != nil {
		return nil, err
	}
	if err := a.keyStore.SealSecrets(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Close releases the browser, channels and journal.
func (a *App) Close() {
	a.chanMgr.StopAll(context.Background())
	if a.registry != nil {
		if t, err := a.registry.Resolve("read_webpage"); err == nil {
			if c, ok := t.(io.Closer); ok {
				c.Close()
			}
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			log.Printf("[app] close journal: %v", err)
		}
	}
}
