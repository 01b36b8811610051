package security

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

const vaultFile = "vault.enc"

// ErrSecretNotFound is returned for a name that neither the OS keyring nor the
// vault holds.
var ErrSecretNotFound = errors.New("secret not found")

// vault is an AES-GCM sealed JSON object of name to secret, used when the OS
// keyring is unavailable.
type vault struct {
	mu   sync.Mutex
	path string
	key  []byte
}

func (v *vault) read() (map[string]string, error) {
	data, err := os.ReadFile(v.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if v.key == nil {
		return nil, errors.New("vault is locked: no master password")
	}
	plain, err := Decrypt(string(data), v.key)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	entries := map[string]string{}
	if err := json.Unmarshal(plain, &entries); err != nil {
		return nil, fmt.Errorf("parse vault: %w", err)
	}
	return entries, nil
}

func (v *vault) write(entries map[string]string) error {
	if v.key == nil {
		return errors.New("vault is locked: no master password")
	}
	plain, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	sealed, err := Encrypt(plain, v.key)
	if err != nil {
		return err
	}
	return os.WriteFile(v.path, []byte(sealed), 0600)
}

func (v *vault) get(name string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	entries, err := v.read()
	if err != nil {
		return "", err
	}
	val, ok := entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return val, nil
}

// set refuses to write when the existing vault cannot be opened, so a wrong
// password never replaces the stored secrets.
func (v *vault) set(name, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	entries, err := v.read()
	if err != nil {
		return err
	}
	entries[name] = value
	return v.write(entries)
}

// delete is a no-op when the vault is missing or does not hold name.
func (v *vault) delete(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, err := os.Stat(v.path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	entries, err := v.read()
	if err != nil {
		return err
	}
	if _, ok := entries[name]; !ok {
		return nil
	}
	delete(entries, name)
	return v.write(entries)
}
