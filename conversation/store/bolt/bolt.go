// Package bolt persists conversation snapshots in a bbolt database.
// The snapshot lives under a single bucket and key, so a save is one
// atomic transaction and a torn write can never be observed.
package bolt

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/becomeliminal/recall/conversation"
)

var (
	bucketName  = []byte("conversation")
	snapshotKey = []byte("snapshot")
)

// Store keeps the snapshot in one bbolt file.
type Store struct {
	db *bbolt.DB
}

// New opens (creating if needed) the bbolt file at path.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	return &Store{db: db}, nil
}

// Load reads the snapshot. An absent bucket or key yields a fresh empty
// conversation; a stored document that does not decode surfaces
// conversation.ErrMalformedSnapshot.
func (s *Store) Load(ctx context.Context) (*conversation.Conversation, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		if v := b.Get(snapshotKey); v != nil {
			data = append(data, v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if data == nil {
		log.Printf("[STORE] no snapshot in %s, starting fresh", s.db.Path())
		return conversation.New(), nil
	}

	conv, err := conversation.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.db.Path(), err)
	}
	return conv, nil
}

// Save overwrites the stored snapshot in a single transaction.
func (s *Store) Save(ctx context.Context, conv *conversation.Conversation) error {
	data, err := conversation.EncodeSnapshot(conv)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		return b.Put(snapshotKey, data)
	})
}

// Close releases the database file.
func (s *Store) Close() error { return s.db.Close() }
