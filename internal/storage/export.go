package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Storage persists named blobs and returns where they landed.
type Storage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// Snapshot is the exported document.
type Snapshot struct {
	Kind       string    `json:"kind"`
	UserID     string    `json:"userId"`
	ExportedAt time.Time `json:"exportedAt"`
	Data       any       `json:"data"`
}

// Exporter serialises snapshots into a Storage.
type Exporter struct {
	Storage Storage
	NowFunc func() time.Time
}

// Export writes data as <userID>/<kind>-<timestamp>.json and returns its location.
func (e Exporter) Export(ctx context.Context, userID, kind string, data any) (string, error) {
	if e.Storage == nil {
		return "", fmt.Errorf("export: storage not configured")
	}
	if userID == "" {
		userID = "anonymous"
	}

	now := e.now()
	payload, err := json.MarshalIndent(Snapshot{Kind: kind, UserID: userID, ExportedAt: now, Data: data}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	name := fmt.Sprintf("%s/%s-%s.json", userID, kind, now.Format("20060102T150405Z"))
	return e.Storage.Save(ctx, name, bytes.NewReader(payload))
}

func (e Exporter) now() time.Time {
	if e.NowFunc != nil {
		return e.NowFunc().UTC()
	}
	return time.Now().UTC()
}
