package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
)

// StaticTokens is a token provider that always returns the same token or error.
type StaticTokens struct {
	Token string
	Err   error
}

func (s StaticTokens) AccessToken(context.Context) (string, error) {
	return s.Token, s.Err
}

// MockCatalog is an in-memory catalog keyed by exact search query.
type MockCatalog struct {
	mu sync.Mutex

	Results   map[string][]models.Track
	SearchErr map[string]error
	Tracks    map[string]models.Track
	User      models.CatalogUser

	CreateErr error
	AddErr    error

	Searches []string
	Created  []models.PlaylistDetails
	Added    map[string][]string
}

// NewMockCatalog creates a catalog whose current user is "user-1".
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{
		Results:   map[string][]models.Track{},
		SearchErr: map[string]error{},
		Tracks:    map[string]models.Track{},
		User:      models.CatalogUser{ID: "user-1", DisplayName: "Test User"},
		Added:     map[string][]string{},
	}
}

func (m *MockCatalog) Search(_ context.Context, query string, limit int) ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Searches = append(m.Searches, query)
	if err := m.SearchErr[query]; err != nil {
		return nil, err
	}
	results := m.Results[query]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MockCatalog) Track(_ context.Context, id string) (*models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.Tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: status 404", shared.ErrAPIRequest)
	}
	return &t, nil
}

func (m *MockCatalog) CurrentUser(context.Context) (*models.CatalogUser, error) {
	u := m.User
	return &u, nil
}

func (m *MockCatalog) CreatePlaylist(_ context.Context, ownerID string, details models.PlaylistDetails) (*models.PlaylistRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.Created = append(m.Created, details)
	id := fmt.Sprintf("playlist-%d", len(m.Created))
	return &models.PlaylistRef{
		ID:           id,
		Name:         details.Name,
		Description:  details.Description,
		ExternalURLs: models.ExternalURLs{Spotify: "https://open.spotify.com/playlist/" + id},
	}, nil
}

func (m *MockCatalog) AddItems(_ context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AddErr != nil {
		return m.AddErr
	}
	m.Added[playlistID] = append(m.Added[playlistID], uris...)
	return nil
}

// SearchCount returns how many searches were issued.
func (m *MockCatalog) SearchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Searches)
}

// MockRecommender returns fixed recommendations.
type MockRecommender struct {
	mu sync.Mutex

	Recs *models.Recommendations
	Err  error

	Calls       int
	LastRequest models.GenerationRequest
}

func (m *MockRecommender) Recommend(_ context.Context, req models.GenerationRequest) (*models.Recommendations, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	m.LastRequest = req
	if m.Err != nil {
		return nil, m.Err
	}
	recs := *m.Recs
	recs.Suggestions = append([]models.Suggestion(nil), m.Recs.Suggestions...)
	return &recs, nil
}
