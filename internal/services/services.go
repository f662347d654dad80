package services

import (
	"context"

	"github.com/desertthunder/djai/internal/models"
)

// TokenProvider yields a bearer token that is valid for the next request.
//
// [auth.CredentialStore] is the production implementation.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// Catalog defines the music catalog operations the generation pipeline needs.
type Catalog interface {
	// Search returns up to limit tracks for query. An empty result is not an error.
	Search(ctx context.Context, query string, limit int) ([]models.Track, error)

	// Track retrieves a single track by its catalog id.
	Track(ctx context.Context, id string) (*models.Track, error)

	// CurrentUser returns the authenticated account.
	CurrentUser(ctx context.Context) (*models.CatalogUser, error)

	// CreatePlaylist creates a private playlist owned by ownerID.
	CreatePlaylist(ctx context.Context, ownerID string, details models.PlaylistDetails) (*models.PlaylistRef, error)

	// AddItems appends uris to the playlist in one call, preserving order.
	AddItems(ctx context.Context, playlistID string, uris []string) error
}

// Recommender asks a completion service for track suggestions.
type Recommender interface {
	Recommend(ctx context.Context, req models.GenerationRequest) (*models.Recommendations, error)
}
