// Package state persists client state as keyed JSON documents.
//
// The keys mirror what a browser client would keep in local storage: the selected
// seed tracks, the in-progress draft, the generation history and the current
// generated playlist. Values are plain JSON with no versioning.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

const (
	KeySelectedTracks    = "selectedTracks"
	KeyDraft             = "draft"
	KeyPlaylistHistory   = "playlistHistory"
	KeyGeneratedPlaylist = "generatedPlaylist"
)

// Store loads and saves JSON values by key.
type Store interface {
	// Load decodes the value under key into v. found is false when nothing is stored.
	Load(ctx context.Context, key string, v any) (found bool, err error)
	Save(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

// Exclusive holds store's update lock, when it has one, for a load-modify-save
// cycle and returns the matching unlock. Stores handed out for the same owner
// share one lock, so handlers that build a fresh [Client] or history per request
// still serialize their updates.
func Exclusive(store Store) (unlock func()) {
	if l, ok := store.(sync.Locker); ok {
		l.Lock()
		return l.Unlock
	}
	return func() {}
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func checkKey(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid state key %q", key)
	}
	return nil
}

// MemoryStore keeps encoded values in memory.
type MemoryStore struct {
	update sync.Mutex
	mu     sync.RWMutex
	data   map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

func (m *MemoryStore) Lock()   { m.update.Lock() }
func (m *MemoryStore) Unlock() { m.update.Unlock() }

func (m *MemoryStore) Load(_ context.Context, key string, v any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, v any) error {
	if err := checkKey(key); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Owners hands out a [Store] scoped to one owner.
type Owners interface {
	ForOwner(ownerID string) Store
}

// MemoryOwners keeps one [MemoryStore] per owner for the life of the process.
type MemoryOwners struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

func NewMemoryOwners() *MemoryOwners {
	return &MemoryOwners{stores: map[string]*MemoryStore{}}
}

func (m *MemoryOwners) ForOwner(ownerID string) Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stores[ownerID]
	if !ok {
		s = NewMemoryStore()
		m.stores[ownerID] = s
	}
	return s
}

// FileStore keeps one <key>.json file per key under a directory.
type FileStore struct {
	dir    string
	mu     sync.Mutex
	update sync.Mutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) Dir() string { return f.dir }

func (f *FileStore) Lock()   { f.update.Lock() }
func (f *FileStore) Unlock() { f.update.Unlock() }

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *FileStore) Load(_ context.Context, key string, v any) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}

	f.mu.Lock()
	raw, err := os.ReadFile(f.path(key))
	f.mu.Unlock()

	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Save replaces the file atomically.
func (f *FileStore) Save(_ context.Context, key string, v any) error {
	if err := checkKey(key); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
