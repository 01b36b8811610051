package security

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"

	"polyagent/internal/config"
)

const (
	keyringService = "polyagent"

	// KeyringPlaceholder marks a config value that lives in the KeyStore.
	KeyringPlaceholder = "[keyring]"
)

// Secret names used for config values.
const (
	SecretLLMAPIKey         = "llm_api_key"
	SecretFallbackLLMAPIKey = "fallback_llm_api_key"
	SecretWeatherAPIKey     = "weather_api_key"
	SecretTelegramToken     = "telegram_token"
)

// KeyStore keeps secrets in the OS keyring and falls back to a vault file sealed
// with the master key.
type KeyStore struct {
	vault *vault
}

// NewKeyStore places the vault in the polyagent home. masterKey may be nil when
// only the OS keyring is used.
func NewKeyStore(masterKey []byte) (*KeyStore, error) {
	dir, err := config.HomeDir()
	if err != nil {
		return nil, err
	}
	return NewKeyStoreAt(dir, masterKey)
}

func NewKeyStoreAt(dir string, masterKey []byte) (*KeyStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &KeyStore{vault: &vault{path: filepath.Join(dir, vaultFile), key: masterKey}}, nil
}

func (ks *KeyStore) Set(name, value string) error {
	err := keyring.Set(keyringService, name, value)
	if err == nil {
		return nil
	}
	if verr := ks.vault.set(name, value); verr != nil {
		return fmt.Errorf("keyring: %v; vault: %w", err, verr)
	}
	return nil
}

func (ks *KeyStore) Get(name string) (string, error) {
	val, err := keyring.Get(keyringService, name)
	if err == nil {
		return val, nil
	}
	return ks.vault.get(name)
}

// Delete removes name from both stores.
func (ks *KeyStore) Delete(name string) error {
	if err := keyring.Delete(keyringService, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		log.Printf("[security] keyring delete %s: %v", name, err)
	}
	return ks.vault.delete(name)
}

// MaskKey shows the first three and last four characters of a key.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}

// secretFields lists every config value that may be kept in the KeyStore.
func secretFields(cfg *config.Config) map[string]*string {
	fields := map[string]*string{
		SecretLLMAPIKey:     &cfg.LLM.APIKey,
		SecretWeatherAPIKey: &cfg.Tools.WeatherAPIKey,
	}
	if cfg.FallbackLLM != nil {
		fields[SecretFallbackLLMAPIKey] = &cfg.FallbackLLM.APIKey
	}
	if cfg.Channels.Telegram != nil {
		fields[SecretTelegramToken] = &cfg.Channels.Telegram.Token
	}
	return fields
}

// ResolveSecrets replaces every "[keyring]" value in cfg with the stored secret.
func (ks *KeyStore) ResolveSecrets(cfg *config.Config) error {
	for name, field := range secretFields(cfg) {
		if *field != KeyringPlaceholder {
			continue
		}
		val, err := ks.Get(name)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", name, err)
		}
		*field = val
	}
	return nil
}

// SealSecrets moves plain secret values from cfg into the KeyStore and leaves
// "[keyring]" in their place, ready for config.Loader.Save.
func (ks *KeyStore) SealSecrets(cfg *config.Config) error {
	for name, field := range secretFields(cfg) {
		if *field == "" || *field == KeyringPlaceholder {
			continue
		}
		if err := ks.Set(name, *field); err != nil {
			return fmt.Errorf("store %s: %w", name, err)
		}
		*field = KeyringPlaceholder
	}
	return nil
}

// HasPlainSecrets reports whether cfg holds a secret that SealSecrets would move.
func HasPlainSecrets(cfg *config.Config) bool {
	for _, field := range secretFields(cfg) {
		if *field != "" && *field != KeyringPlaceholder {
			return true
		}
	}
	return false
}

// SecretNames returns the secret names the config knows about.
func SecretNames() []string {
	return []string{SecretLLMAPIKey, SecretFallbackLLMAPIKey, SecretWeatherAPIKey, SecretTelegramToken}
}

// IsSecretName reports whether name is one of SecretNames.
func IsSecretName(name string) bool {
	for _, n := range SecretNames() {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
