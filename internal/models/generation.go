package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/djai/internal/shared"
)

const (
	MaxSeedTracks   = 5
	MinTrackCount   = 1
	MaxTrackCount   = 50
	DefaultCount    = 10
	HistoryCapacity = 10

	// SeedReason tags seed tracks in a generated list.
	SeedReason = "One of your selected tracks"
	// BrandSuffix is appended to every generated playlist name.
	BrandSuffix = " • Created by dJai"
)

// CountOptions are the track counts offered by the client.
var CountOptions = []int{10, 20, 30}

// Suggestion is a completion-service proposal awaiting catalog resolution.
type Suggestion struct {
	Title  string `json:"name"`
	Artist string `json:"artist"`
	Reason string `json:"reason"`
}

// Recommendations is the validated completion-service payload.
type Recommendations struct {
	PlaylistName string       `json:"playlistName"`
	Suggestions  []Suggestion `json:"recommendations"`
}

// GenerationRequest carries the inputs of one generate action.
type GenerationRequest struct {
	SeedTracks     []Track `json:"seedTracks"`
	Prompt         string  `json:"prompt,omitempty"`
	NumberOfTracks int     `json:"numberOfTracks"`
}

// WithDefaults returns a copy with a zero count replaced by [DefaultCount].
func (r GenerationRequest) WithDefaults() GenerationRequest {
	if r.NumberOfTracks == 0 {
		r.NumberOfTracks = DefaultCount
	}
	return r
}

// Validate checks seed and count bounds.
func (r GenerationRequest) Validate() error {
	if len(r.SeedTracks) == 0 {
		return fmt.Errorf("%w: at least one seed track is required", shared.ErrInvalidInput)
	}
	if len(r.SeedTracks) > MaxSeedTracks {
		return fmt.Errorf("%w: got %d, max %d", shared.ErrTooManySeedTracks, len(r.SeedTracks), MaxSeedTracks)
	}
	if r.NumberOfTracks < MinTrackCount || r.NumberOfTracks > MaxTrackCount {
		return fmt.Errorf("%w: number of tracks must be between %d and %d, got %d",
			shared.ErrInvalidArgument, MinTrackCount, MaxTrackCount, r.NumberOfTracks)
	}
	return nil
}

// ResolvedEntry pairs a concrete track with the reason it is in the list.
type ResolvedEntry struct {
	Track  Track  `json:"track"`
	Reason string `json:"reason"`
}

// GenerationResult is the output of a generate action, and of a save once Playlist is set.
type GenerationResult struct {
	PlaylistName string          `json:"playlistName"`
	Entries      []ResolvedEntry `json:"tracks"`
	Playlist     *PlaylistRef    `json:"playlist,omitempty"`
}

// GenerationSession is one generate action as stored in history.
type GenerationSession struct {
	ID             string           `json:"id"`
	CreatedAt      time.Time        `json:"timestamp"`
	SeedTracks     []Track          `json:"seedTracks"`
	Prompt         string           `json:"prompt"`
	RequestedCount int              `json:"numberOfTracks"`
	Result         GenerationResult `json:"generatedPlaylist"`
}

// Draft is the in-progress prompt and requested count.
type Draft struct {
	Prompt         string `json:"prompt"`
	NumberOfTracks int    `json:"numberOfTracks"`
}

// DefaultDraft returns an empty prompt with the default count.
func DefaultDraft() Draft {
	return Draft{NumberOfTracks: DefaultCount}
}
