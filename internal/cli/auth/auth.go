package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	service = "shelfdesk-cli"
)

// KeyringStore persists tokens in the OS keychain/credential manager
type KeyringStore struct {
	scope string
}

// NewKeyringStore creates a keyring-backed store. Tokens are namespaced by scope.
func NewKeyringStore(scope string) *KeyringStore {
	return &KeyringStore{scope: scope}
}

// keyringKey returns a unique key for storing a token per API server
func (k *KeyringStore) keyringKey(key string) string {
	if k.scope == "" {
		return key
	}
	return fmt.Sprintf("%s-%s", key, k.scope)
}

// Get retrieves a token from the OS keychain
func (k *KeyringStore) Get(key string) (string, error) {
	token, err := keyring.Get(service, k.keyringKey(key))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load %s: %w", key, err)
	}
	return token, nil
}

// Set persists a token securely in the OS keychain
func (k *KeyringStore) Set(key, value string) error {
	if err := keyring.Set(service, k.keyringKey(key), value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Clear removes a token from the OS keychain
func (k *KeyringStore) Clear(key string) error {
	if err := keyring.Delete(service, k.keyringKey(key)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
