package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/djai/internal/state"
)

// StateRepository stores client-state JSON documents in the client_state table.
type StateRepository struct {
	db    *sql.DB
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db, locks: map[string]*sync.Mutex{}}
}

// ForOwner returns a [state.Store] scoped to one owner, typically a Spotify user id.
//
// Stores for the same owner share an update lock (see [state.Exclusive]).
func (r *StateRepository) ForOwner(ownerID string) state.Store {
	r.mu.Lock()
	lock, ok := r.locks[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[ownerID] = lock
	}
	r.mu.Unlock()

	return &ownerStore{db: r.db, owner: ownerID, lock: lock}
}

// Clear removes every key stored for the owner.
func (r *StateRepository) Clear(ctx context.Context, ownerID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM client_state WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("failed to clear client state: %w", err)
	}
	return nil
}

type ownerStore struct {
	db    *sql.DB
	owner string
	lock  *sync.Mutex
}

func (s *ownerStore) Lock()   { s.lock.Lock() }
func (s *ownerStore) Unlock() { s.lock.Unlock() }

func (s *ownerStore) Load(ctx context.Context, key string, v any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM client_state WHERE owner_id = ? AND key = ?`, s.owner, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *ownerStore) Save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	query := `
		INSERT INTO client_state (owner_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, s.owner, key, string(raw), time.Now()); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *ownerStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM client_state WHERE owner_id = ? AND key = ?`, s.owner, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
