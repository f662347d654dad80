// Package history keeps the capped, newest-first list of past generations.
package history

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
	"github.com/desertthunder/djai/internal/state"
)

// History stores [models.GenerationSession] values under [state.KeyPlaylistHistory].
type History struct {
	store    state.Store
	capacity int
	mu       sync.Mutex

	Now   func() time.Time
	NewID func() string
}

// New creates a History holding at most [models.HistoryCapacity] sessions.
func New(store state.Store) *History {
	return &History{
		store:    store,
		capacity: models.HistoryCapacity,
		Now:      time.Now,
		NewID:    shared.GenerateID,
	}
}

func (h *History) load(ctx context.Context) ([]models.GenerationSession, error) {
	var sessions []models.GenerationSession
	if _, err := h.store.Load(ctx, state.KeyPlaylistHistory, &sessions); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if sessions == nil {
		sessions = []models.GenerationSession{}
	}
	return sessions, nil
}

func (h *History) save(ctx context.Context, sessions []models.GenerationSession) error {
	if err := h.store.Save(ctx, state.KeyPlaylistHistory, sessions); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// List returns sessions newest first.
func (h *History) List(ctx context.Context) ([]models.GenerationSession, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load(ctx)
}

// Record prepends session and evicts the oldest entries beyond capacity.
//
// A missing id or timestamp is filled in. Identical sessions are not merged.
func (h *History) Record(ctx context.Context, session models.GenerationSession) (models.GenerationSession, error) {
	if session.ID == "" {
		session.ID = h.NewID()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = h.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	defer state.Exclusive(h.store)()

	sessions, err := h.load(ctx)
	if err != nil {
		return session, err
	}

	sessions = append([]models.GenerationSession{session}, sessions...)
	if len(sessions) > h.capacity {
		sessions = sessions[:h.capacity]
	}
	return session, h.save(ctx, sessions)
}

// Remove deletes the session with id. An unknown id is a no-op.
func (h *History) Remove(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	defer state.Exclusive(h.store)()

	sessions, err := h.load(ctx)
	if err != nil {
		return err
	}

	kept := sessions[:0]
	for _, s := range sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(sessions) {
		return nil
	}
	return h.save(ctx, kept)
}

// Clear empties the history.
func (h *History) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	defer state.Exclusive(h.store)()
	return h.save(ctx, []models.GenerationSession{})
}

// Restore returns the stored session unchanged, or [shared.ErrHistoryNotFound].
func (h *History) Restore(ctx context.Context, id string) (*models.GenerationSession, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, err := h.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrHistoryNotFound, id)
}

// Find resolves an id or a 1-based position ("1" is newest) to a session.
func (h *History) Find(ctx context.Context, ref string) (*models.GenerationSession, error) {
	if s, err := h.Restore(ctx, ref); err == nil {
		return s, nil
	}

	pos, err := strconv.Atoi(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrHistoryNotFound, ref)
	}

	sessions, err := h.List(ctx)
	if err != nil {
		return nil, err
	}
	if pos < 1 || pos > len(sessions) {
		return nil, fmt.Errorf("%w: position %d", shared.ErrHistoryNotFound, pos)
	}
	return &sessions[pos-1], nil
}
