package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultService namespaces entries in the OS keychain.
const DefaultService = "reflecta"

// OSKeyring stores entries in the platform keychain (macOS Keychain, Secret
// Service on Linux, Windows Credential Manager).
type OSKeyring struct {
	service string
}

// NewOSKeyring returns a keychain-backed Keyring under service.
func NewOSKeyring(service string) *OSKeyring {
	if service == "" {
		service = DefaultService
	}
	return &OSKeyring{service: service}
}

// Get returns the value stored under key.
func (k *OSKeyring) Get(_ context.Context, key string) (string, error) {
	v, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keychain get %s: %w", key, err)
	}
	return v, nil
}

// Set stores value under key.
func (k *OSKeyring) Set(_ context.Context, key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("keychain set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (k *OSKeyring) Delete(_ context.Context, key string) error {
	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keychain delete %s: %w", key, err)
	}
	return nil
}
