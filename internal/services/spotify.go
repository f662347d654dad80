// Spotify Web API implementation of [Catalog]
//
// Response types are decoded straight into [models.Track] and friends, see https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/djai/internal/auth"
	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultSpotifyTimeout = 30 * time.Second

	// SearchLimit is the page size used for interactive search.
	SearchLimit = 10
	// maxSearchLimit is the API's upper bound for limit.
	maxSearchLimit = 50
)

// Scopes requested at login.
var Scopes = []string{
	"user-read-email",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
	"user-library-read",
	"user-read-private",
}

// SpotifyService implements [Catalog] for the Spotify Web API.
type SpotifyService struct {
	config     *oauth2.Config
	apiURL     string
	httpClient *http.Client
	tokens     TokenProvider
}

type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []models.Track `json:"items"`
		Total int            `json:"total"`
	} `json:"tracks"`
}

// NewSpotifyService creates a Spotify service from a settings map.
//
// Recognised keys are client_id, client_secret, redirect_uri, api_url, auth_url and token_url.
// The URL keys fall back to the public Spotify endpoints.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/auth/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   withDefault(credentials["auth_url"], spotifyAuthURL),
			TokenURL:  withDefault(credentials["token_url"], spotifyTokenURL),
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	return &SpotifyService{
		config:     config,
		apiURL:     withDefault(credentials["api_url"], spotifyBaseURL),
		httpClient: &http.Client{Timeout: defaultSpotifyTimeout},
	}, nil
}

func withDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SetHTTPClient replaces the client used for API and token requests.
func (s *SpotifyService) SetHTTPClient(client *http.Client) {
	s.httpClient = client
}

// ForTokens returns a copy of the service that authenticates with tp.
//
// The web backend derives one per session from a shared base service.
func (s *SpotifyService) ForTokens(tp TokenProvider) *SpotifyService {
	cp := *s
	cp.tokens = tp
	return &cp
}

// OAuthConfig returns the underlying oauth2 configuration.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// AuthURL returns the authorization URL for user login. The consent dialog is always shown.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// Exchange trades an authorization code for a credential.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (models.Credential, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	tok, err := s.config.Exchange(ctx, code)
	if err != nil {
		return models.Credential{}, fmt.Errorf("%w: failed to exchange auth code: %w", shared.ErrAuthFailed, err)
	}
	return auth.CredentialFromToken(tok, "", time.Now()), nil
}

// Refresher returns a refresh-grant client bound to this service's token endpoint.
func (s *SpotifyService) Refresher() *auth.OAuthRefresher {
	return auth.NewOAuthRefresher(s.config, s.httpClient)
}

// doRequest performs an authenticated JSON request against the Web API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if s.tokens == nil {
		return fmt.Errorf("%w: no credential attached", shared.ErrNotAuthenticated)
	}

	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.apiURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", shared.ErrAPIRequest, method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: spotify rejected the access token", shared.ErrNotAuthenticated)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr spotifyErrorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%w: %s %s: status %d: %s", shared.ErrAPIRequest, method, endpoint, resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("%w: %s %s: status %d", shared.ErrAPIRequest, method, endpoint, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %w", shared.ErrAPIRequest, err)
		}
	}

	return nil
}

// Search runs a track search.
func (s *SpotifyService) Search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrMissingArgument)
	}
	if limit <= 0 {
		limit = SearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", fmt.Sprint(limit))

	var response spotifySearchResponse
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	return response.Tracks.Items, nil
}

// Track retrieves a single track by ID.
func (s *SpotifyService) Track(ctx context.Context, trackID string) (*models.Track, error) {
	if trackID == "" {
		return nil, fmt.Errorf("%w: empty track id", shared.ErrMissingArgument)
	}

	var track models.Track
	if err := s.doRequest(ctx, http.MethodGet, "/tracks/"+url.PathEscape(trackID), nil, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// CurrentUser retrieves the current authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*models.CatalogUser, error) {
	var user models.CatalogUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreatePlaylist creates a playlist owned by ownerID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, ownerID string, details models.PlaylistDetails) (*models.PlaylistRef, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: empty owner id", shared.ErrMissingArgument)
	}
	if details.Name == "" {
		return nil, fmt.Errorf("%w: playlist name is required", shared.ErrMissingArgument)
	}

	var playlist models.PlaylistRef
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(ownerID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, details, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// AddItems appends uris to a playlist in a single request.
func (s *SpotifyService) AddItems(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}

	body := struct {
		URIs []string `json:"uris"`
	}{URIs: uris}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodPost, endpoint, body, nil)
}
