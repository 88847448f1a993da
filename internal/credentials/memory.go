package credentials

import (
	"context"
	"sync"
)

// NewMemoryKeyring returns a Keyring that lives only as long as the process.
func NewMemoryKeyring() *MemoryKeyring {
	return &MemoryKeyring{items: make(map[string]string)}
}

// MemoryKeyring implements Keyring for tests and ephemeral sessions.
type MemoryKeyring struct {
	mu    sync.RWMutex
	items map[string]string
}

// Get returns the value stored under key.
func (k *MemoryKeyring) Get(_ context.Context, key string) (string, error) {
	k.mu.RLock()
	v, ok := k.items[key]
	k.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key.
func (k *MemoryKeyring) Set(_ context.Context, key, value string) error {
	k.mu.Lock()
	k.items[key] = value
	k.mu.Unlock()
	return nil
}

// Delete removes key.
func (k *MemoryKeyring) Delete(_ context.Context, key string) error {
	k.mu.Lock()
	delete(k.items, key)
	k.mu.Unlock()
	return nil
}

// Has reports whether key is stored. Useful for tests.
func (k *MemoryKeyring) Has(key string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.items[key]
	return ok
}
