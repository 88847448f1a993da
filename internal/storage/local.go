package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DirStorage writes exports below a local directory.
type DirStorage struct {
	root string
}

// NewDirStorage returns storage rooted at dir.
func NewDirStorage(dir string) *DirStorage {
	return &DirStorage{root: dir}
}

// Save writes r to name under the root and returns the file path.
func (d *DirStorage) Save(_ context.Context, name string, r io.Reader) (string, error) {
	clean := filepath.Clean("/" + strings.TrimLeft(name, "/"))
	if clean == "/" {
		return "", errors.New("dir storage: empty key")
	}
	path := filepath.Join(d.root, clean)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("dir storage mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("dir storage open: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("dir storage write: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("dir storage close: %w", err)
	}
	return path, nil
}
