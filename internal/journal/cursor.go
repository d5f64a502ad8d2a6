package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CursorStore persists the publisher's read position so a restart resumes
// from where it left off instead of re-publishing the whole journal. The
// persistence is best-effort: losing the file degrades to at-least-once
// redelivery, never to data loss.
type CursorStore struct {
	path string
}

// NewCursorStore creates a cursor store backed by a file in dir.
func NewCursorStore(dir string) *CursorStore {
	return &CursorStore{path: filepath.Join(dir, "cursor.json")}
}

// Load reads the persisted cursor. A missing file yields the zero position.
func (c *CursorStore) Load() (Position, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Position{}, nil
		}
		return Position{}, fmt.Errorf("cursor: failed to read: %w", err)
	}

	var pos Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return Position{}, fmt.Errorf("cursor: failed to decode: %w", err)
	}
	return pos, nil
}

// Save atomically persists the cursor via a temp file and rename, so a crash
// mid-save leaves the previous cursor intact.
func (c *CursorStore) Save(pos Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("cursor: failed to encode: %w", err)
	}

	tmp := c.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("cursor: failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("cursor: failed to write: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("cursor: failed to fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("cursor: failed to close: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("cursor: failed to rename: %w", err)
	}
	return nil
}
