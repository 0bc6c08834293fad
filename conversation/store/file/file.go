// Package file persists conversation snapshots as a single JSON document
// on disk. The previous snapshot is overwritten on every save.
package file

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/becomeliminal/recall/conversation"
)

// Store writes the snapshot to one JSON file.
type Store struct {
	path string
}

// New creates a file store rooted at path. The parent directory is
// created on first save.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the snapshot. A missing file is not an error: it yields a
// fresh empty conversation. A file that exists but does not decode
// surfaces conversation.ErrMalformedSnapshot.
func (s *Store) Load(ctx context.Context) (*conversation.Conversation, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("[STORE] no snapshot at %s, starting fresh", s.path)
			return conversation.New(), nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	conv, err := conversation.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return conv, nil
}

// Save overwrites the snapshot with the full current state.
func (s *Store) Save(ctx context.Context, conv *conversation.Conversation) error {
	data, err := conversation.EncodeSnapshot(conv)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	// Write-then-rename so a crash mid-write cannot truncate the only copy.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Close is a no-op; the store holds no open handles between calls.
func (s *Store) Close() error { return nil }
