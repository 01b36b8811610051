package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	loader := NewLoaderAt(filepath.Join(t.TempDir(), "config.json"))

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "qwen2.5:32b", cfg.LLM.Model)
	assert.Equal(t, 10, cfg.Agent.MaxRounds)
	assert.True(t, cfg.Agent.ChainTools)
	assert.Equal(t, "PlannerAgent", cfg.Agent.DefaultAgent)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	loader := NewLoaderAt(path)

	cfg := Defaults()
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.APIKey = "test-key"
	cfg.Agent.ChainTools = false

	require.NoError(t, loader.Save(cfg))

	_, err := os.Stat(path)
	require.NoError(t, err, "config file was not created")

	loaded, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", loaded.LLM.Provider)
	assert.Equal(t, "test-key", loaded.LLM.APIKey)
	assert.False(t, loaded.Agent.ChainTools)
}

func TestLoad_PartialOverrideKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"agent": {"max_rounds": 3}}`), 0600))

	cfg, err := NewLoaderAt(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Agent.MaxRounds)
	// The whole agent object is decoded over the default struct, so untouched keys survive.
	assert.True(t, cfg.Agent.ChainTools)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"agent": `), 0600))

	_, err := NewLoaderAt(path).Load()
	require.Error(t, err)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"agent": {"max_rounds": 0}}`), 0600))

	_, err := NewLoaderAt(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_rounds")
}

func TestGetBeforeLoadReturnsDefaults(t *testing.T) {
	loader := NewLoaderAt(filepath.Join(t.TempDir(), "config.json"))
	assert.Equal(t, Defaults().LLM.Model, loader.Get().LLM.Model)
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	loader := NewLoaderAt(path)

	require.NoError(t, loader.Save(Defaults()))
	require.NoError(t, loader.Save(Defaults()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files left behind")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestHomeDirFromEnv(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home")
	t.Setenv(HomeEnv, dir)

	got, err := HomeDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.DirExists(t, dir)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"POLYAGENT_LLM_PROVIDER":   "anthropic",
		"POLYAGENT_API_KEY":        "sk-env",
		"POLYAGENT_TELEGRAM_TOKEN": "tg",
		"POLYAGENT_MEMORY_ENABLED": "false",
	}
	cfg := Defaults()
	ApplyEnv(cfg, func(k string) string { return env[k] })

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "qwen2.5:32b", cfg.LLM.Model)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	require.NotNil(t, cfg.Channels.Telegram)
	assert.Equal(t, "tg", cfg.Channels.Telegram.Token)
	assert.False(t, cfg.Memory.Enabled)
}
