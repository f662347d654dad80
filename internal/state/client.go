package state

import (
	"context"
	"fmt"

	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
)

// Client gives typed access to the client-state keys of one user.
type Client struct {
	store Store
}

func NewClient(store Store) *Client {
	return &Client{store: store}
}

// Store returns the underlying store.
func (c *Client) Store() Store { return c.store }

// SelectedTracks returns the seed selection, empty when none is stored.
func (c *Client) SelectedTracks(ctx context.Context) ([]models.Track, error) {
	var tracks []models.Track
	if _, err := c.store.Load(ctx, KeySelectedTracks, &tracks); err != nil {
		return nil, err
	}
	if tracks == nil {
		tracks = []models.Track{}
	}
	return tracks, nil
}

// SetSelectedTracks replaces the seed selection.
func (c *Client) SetSelectedTracks(ctx context.Context, tracks []models.Track) error {
	if len(tracks) > models.MaxSeedTracks {
		return fmt.Errorf("%w: got %d, max %d", shared.ErrTooManySeedTracks, len(tracks), models.MaxSeedTracks)
	}
	if tracks == nil {
		tracks = []models.Track{}
	}
	return c.store.Save(ctx, KeySelectedTracks, tracks)
}

// ToggleTrack removes track from the selection when present and appends it otherwise.
//
// selected reports the track's membership after the toggle.
func (c *Client) ToggleTrack(ctx context.Context, track models.Track) (tracks []models.Track, selected bool, err error) {
	defer Exclusive(c.store)()

	current, err := c.SelectedTracks(ctx)
	if err != nil {
		return nil, false, err
	}

	next := make([]models.Track, 0, len(current)+1)
	for _, t := range current {
		if t.ID == track.ID {
			selected = true
			continue
		}
		next = append(next, t)
	}

	if selected {
		return next, false, c.SetSelectedTracks(ctx, next)
	}

	next = append(next, track)
	if err := c.SetSelectedTracks(ctx, next); err != nil {
		return current, false, err
	}
	return next, true, nil
}

// Draft returns the stored prompt and count, defaulting the count.
func (c *Client) Draft(ctx context.Context) (models.Draft, error) {
	draft := models.DefaultDraft()
	if _, err := c.store.Load(ctx, KeyDraft, &draft); err != nil {
		return models.Draft{}, err
	}
	if draft.NumberOfTracks == 0 {
		draft.NumberOfTracks = models.DefaultCount
	}
	return draft, nil
}

// SetDraft stores the prompt and count.
func (c *Client) SetDraft(ctx context.Context, draft models.Draft) error {
	if draft.NumberOfTracks == 0 {
		draft.NumberOfTracks = models.DefaultCount
	}
	if draft.NumberOfTracks < models.MinTrackCount || draft.NumberOfTracks > models.MaxTrackCount {
		return fmt.Errorf("%w: number of tracks must be between %d and %d",
			shared.ErrInvalidArgument, models.MinTrackCount, models.MaxTrackCount)
	}
	return c.store.Save(ctx, KeyDraft, draft)
}

// Generated returns the current generated playlist or [shared.ErrNoGeneration].
func (c *Client) Generated(ctx context.Context) (*models.GenerationResult, error) {
	var result models.GenerationResult
	found, err := c.store.Load(ctx, KeyGeneratedPlaylist, &result)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, shared.ErrNoGeneration
	}
	return &result, nil
}

func (c *Client) SetGenerated(ctx context.Context, result *models.GenerationResult) error {
	if result == nil {
		return c.store.Delete(ctx, KeyGeneratedPlaylist)
	}
	return c.store.Save(ctx, KeyGeneratedPlaylist, result)
}

// ReorderGenerated moves one entry of the current generation.
func (c *Client) ReorderGenerated(ctx context.Context, from, to int) (*models.GenerationResult, error) {
	defer Exclusive(c.store)()

	result, err := c.Generated(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := models.Reorder(result.Entries, from, to)
	if err != nil {
		return nil, err
	}
	result.Entries = entries
	return result, c.SetGenerated(ctx, result)
}

// RemoveGenerated drops a track from the current generation. An absent id is a no-op.
func (c *Client) RemoveGenerated(ctx context.Context, trackID string) (*models.GenerationResult, error) {
	defer Exclusive(c.store)()

	result, err := c.Generated(ctx)
	if err != nil {
		return nil, err
	}

	result.Entries = models.RemoveTrack(result.Entries, trackID)
	return result, c.SetGenerated(ctx, result)
}

// AttachPlaylist records the saved playlist on the current generation, keeping
// any edits made while the save ran.
func (c *Client) AttachPlaylist(ctx context.Context, playlist *models.PlaylistRef) (*models.GenerationResult, error) {
	defer Exclusive(c.store)()

	result, err := c.Generated(ctx)
	if err != nil {
		return nil, err
	}
	result.Playlist = playlist
	return result, c.SetGenerated(ctx, result)
}

// Reset clears the selection, the draft and the current generation. History is kept.
func (c *Client) Reset(ctx context.Context) error {
	defer Exclusive(c.store)()

	for _, key := range []string{KeySelectedTracks, KeyDraft, KeyGeneratedPlaylist} {
		if err := c.store.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Apply writes a past session's seeds, draft and result back as the current state.
func (c *Client) Apply(ctx context.Context, session models.GenerationSession) error {
	defer Exclusive(c.store)()

	if err := c.SetSelectedTracks(ctx, session.SeedTracks); err != nil {
		return err
	}
	if err := c.SetDraft(ctx, models.Draft{Prompt: session.Prompt, NumberOfTracks: session.RequestedCount}); err != nil {
		return err
	}
	result := session.Result
	return c.SetGenerated(ctx, &result)
}
