// Package mirror keeps a local, non-authoritative copy of the last catalog a view
// loaded and of the admin session. Nothing read from here overrides the backend.
package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Ad1th/Poster-Website/internal/poster"
	"github.com/Ad1th/Poster-Website/pkg/auth"
	bolt "go.etcd.io/bbolt"
)

var ErrStoreClosed = errors.New("mirror store is closed")

var (
	catalogBucket = []byte("catalog")
	adminBucket   = []byte("admin")
	snapshotKey   = []byte("snapshot")
	sessionKey    = []byte("session")
)

// Snapshot is the last catalog a view loaded successfully.
type Snapshot struct {
	Entries []poster.Entry `json:"entries"`
	SavedAt time.Time      `json:"saved_at"`
}

type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	closed bool
}

func OpenStore(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("mirror path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure mirror dir: %w", err)
	}
	db, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open mirror db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{catalogBucket, adminBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// SaveSnapshot replaces the stored catalog copy.
func (s *Store) SaveSnapshot(entries []poster.Entry, at time.Time) error {
	return s.put(catalogBucket, snapshotKey, Snapshot{Entries: entries, SavedAt: at.UTC()})
}

// Snapshot returns the stored catalog copy and whether one exists.
func (s *Store) Snapshot() (Snapshot, bool, error) {
	var snap Snapshot
	found, err := s.get(catalogBucket, snapshotKey, &snap)
	return snap, found, err
}

// SaveSession records the admin session so the CLI stays logged in.
func (s *Store) SaveSession(session auth.Session) error {
	return s.put(adminBucket, sessionKey, session)
}

// Session returns the stored admin session, if any. Callers still verify it.
func (s *Store) Session() (auth.Session, bool, error) {
	var session auth.Session
	found, err := s.get(adminBucket, sessionKey, &session)
	return session, found, err
}

// ClearSession forgets the admin session.
func (s *Store) ClearSession() error {
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(adminBucket).Delete(sessionKey)
	})
}

func (s *Store) put(bucket, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, data)
	})
}

func (s *Store) get(bucket, key []byte, out any) (bool, error) {
	var raw []byte
	err := s.view(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucket).Get(key); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) view(fn func(tx *bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(tx *bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.Update(fn)
}
