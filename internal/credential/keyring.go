// Package credential stores passwords and OAuth 2 tokens in the system
// keyring.
package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/99designs/keyring"
)

// DefaultService is the keyring service used for login passwords when the
// configuration does not name one.
const DefaultService = "mail-notifier"

// ErrNotFound is returned when a keyring has no entry for an account.
var ErrNotFound = keyring.ErrKeyNotFound

// Keyring opens keyrings by service name. Entries are keyed by account.
type Keyring struct {
	Backends []keyring.BackendType

	// FileDir is the parent directory of the encrypted file backend. Each
	// service gets its own subdirectory.
	FileDir      string
	FilePassword string
}

// Default returns a Keyring using the platform backends, falling back to
// encrypted files under the user's config directory.
func Default() *Keyring {
	return &Keyring{
		Backends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:      "~/.config/mail-notifier/credentials",
		FilePassword: "mail-notifier-file-key",
	}
}

// openKeyring returns a configured keyring instance for service.
func (k *Keyring) openKeyring(service string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              service,
		AllowedBackends:          k.Backends,
		FileDir:                  filepath.Join(k.FileDir, service),
		FilePasswordFunc:         keyring.FixedStringPrompt(k.FilePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring %q: %w", service, err)
	}
	return ring, nil
}

// Get retrieves the secret stored for account.
func (k *Keyring) Get(service, account string) (string, error) {
	data, err := k.get(service, account)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (k *Keyring) get(service, account string) ([]byte, error) {
	ring, err := k.openKeyring(service)
	if err != nil {
		return nil, err
	}

	item, err := ring.Get(account)
	if err != nil {
		return nil, fmt.Errorf("getting credential %s/%s: %w", service, account, err)
	}

	return item.Data, nil
}

// Set stores a secret for account.
func (k *Keyring) Set(service, account, value string) error {
	return k.set(service, account, []byte(value))
}

func (k *Keyring) set(service, account string, data []byte) error {
	ring, err := k.openKeyring(service)
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   account,
		Data:  data,
		Label: service + " " + account,
	})
	if err != nil {
		return fmt.Errorf("setting credential %s/%s: %w", service, account, err)
	}

	return nil
}

// Delete removes the entry for account. Deleting a missing entry is not an
// error.
func (k *Keyring) Delete(service, account string) error {
	ring, err := k.openKeyring(service)
	if err != nil {
		return err
	}

	err = ring.Remove(account)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting credential %s/%s: %w", service, account, err)
	}

	return nil
}
