package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	configDir  = ".polyagent"
	configFile = "config.json"
	// HomeEnv relocates the polyagent home directory.
	HomeEnv = "POLYAGENT_HOME"
)

// Loader reads and writes one JSON config file and caches the last value seen.
type Loader struct {
	path string

	mu  sync.RWMutex
	cfg *Config
}

// NewLoader binds the loader to config.json in the polyagent home.
func NewLoader() (*Loader, error) {
	dir, err := HomeDir()
	if err != nil {
		return nil, err
	}
	return NewLoaderAt(filepath.Join(dir, configFile)), nil
}

func NewLoaderAt(path string) *Loader {
	return &Loader{path: path}
}

// HomeDir returns $POLYAGENT_HOME, or ~/.polyagent, creating it when missing.
func HomeDir() (string, error) {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locate home: %w", err)
		}
		dir = filepath.Join(home, configDir)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// Load decodes the file over Defaults, so a key that is present wins even when it
// holds a zero value. A missing file yields the defaults.
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", l.path, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", l.path, err)
		}
	}

	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Save replaces the file atomically. The temp file lives next to the target so
// the rename stays on one filesystem.
func (l *Loader) Save(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replace %s: %w", l.path, err)
	}

	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
	return nil
}

// Get returns the last loaded or saved config, or the defaults.
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.cfg == nil {
		return Defaults()
	}
	return l.cfg
}

func (l *Loader) FilePath() string { return l.path }
