package credentials

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// FileKeyring keeps all entries in one AES-256-GCM encrypted JSON file.
type FileKeyring struct {
	path string
	gcm  cipher.AEAD

	mu sync.Mutex
}

// NewFileKeyring opens (lazily) an encrypted keyring at path sealed with key.
func NewFileKeyring(path string, key []byte) (*FileKeyring, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("file keyring: path is required")
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("file keyring: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("file keyring: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("file keyring: %w", err)
	}
	return &FileKeyring{path: path, gcm: gcm}, nil
}

// Get returns the value stored under key.
func (k *FileKeyring) Get(_ context.Context, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	items, err := k.load()
	if err != nil {
		return "", err
	}
	v, ok := items[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key and rewrites the file.
func (k *FileKeyring) Set(_ context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	items, err := k.load()
	if err != nil {
		// An unreadable file is replaced rather than blocking new sign-ins.
		items = make(map[string]string)
	}
	items[key] = value
	return k.save(items)
}

// Delete removes key and rewrites the file.
func (k *FileKeyring) Delete(_ context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	items, err := k.load()
	if err != nil {
		items = make(map[string]string)
	}
	if _, ok := items[key]; !ok && err == nil {
		return nil
	}
	delete(items, key)
	return k.save(items)
}

func (k *FileKeyring) load() (map[string]string, error) {
	blob, err := os.ReadFile(k.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}

	nonceSize := k.gcm.NonceSize()
	if len(blob) < nonceSize {
		return nil, errors.New("keyring file truncated")
	}
	plain, err := k.gcm.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt keyring: %w", err)
	}

	items := make(map[string]string)
	if err := json.Unmarshal(plain, &items); err != nil {
		return nil, fmt.Errorf("decode keyring: %w", err)
	}
	return items, nil
}

func (k *FileKeyring) save(items map[string]string) error {
	plain, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode keyring: %w", err)
	}

	nonce := make([]byte, k.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("keyring nonce: %w", err)
	}
	blob := k.gcm.Seal(nonce, nonce, plain, nil)

	return writeFileAtomic(k.path, blob)
}

// DecodeKey parses a base64-encoded AES-256 key.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, errors.New("keyring key must be base64-encoded")
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("keyring key must decode to exactly %d bytes", KeySize)
	}
	return key, nil
}

// LoadOrCreateKey reads the base64 key stored at path, generating and
// persisting a fresh one (mode 0600) when the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return DecodeKey(string(data))
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read keyring key: %w", err)
	}

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate keyring key: %w", err)
	}
	if err := writeFileAtomic(path, []byte(base64.StdEncoding.EncodeToString(key))); err != nil {
		return nil, err
	}
	return key, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create keyring dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
