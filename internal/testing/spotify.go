package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/djai/internal/models"
)

// FakePlaylist is a playlist created against [FakeSpotify].
type FakePlaylist struct {
	Owner   string
	Details models.PlaylistDetails
	URIs    []string
}

// FakeSpotify serves the subset of the Spotify Web API and accounts service that djai calls.
//
// Search matches "<title> artist:<artist>" queries case-insensitively against Catalog.
type FakeSpotify struct {
	*httptest.Server

	mu         sync.Mutex
	Catalog    []models.Track
	User       models.CatalogUser
	Playlists  map[string]*FakePlaylist
	Order      []string
	TokenCalls int
	Grants     []string
	Status     map[string]int // forced status per "METHOD /path"
	issued     int
}

// NewFakeSpotify starts a fake server that is closed when the test ends.
func NewFakeSpotify(t *testing.T, catalog ...models.Track) *FakeSpotify {
	t.Helper()

	f := &FakeSpotify{
		Catalog:   catalog,
		User:      models.CatalogUser{ID: "user-1", DisplayName: "Test User"},
		Playlists: map[string]*FakePlaylist{},
		Status:    map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", f.token)
	mux.HandleFunc("GET /v1/search", f.authed(f.search))
	mux.HandleFunc("GET /v1/tracks/{id}", f.authed(f.track))
	mux.HandleFunc("GET /v1/me", f.authed(f.me))
	mux.HandleFunc("POST /v1/users/{owner}/playlists", f.authed(f.createPlaylist))
	mux.HandleFunc("POST /v1/playlists/{id}/tracks", f.authed(f.addItems))

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// Credentials returns a settings map for services.NewSpotifyService pointing at the fake.
func (f *FakeSpotify) Credentials() map[string]string {
	return map[string]string{
		"client_id":     "client",
		"client_secret": "secret",
		"redirect_uri":  "http://127.0.0.1:3000/auth/callback",
		"api_url":       f.URL + "/v1",
		"auth_url":      f.URL + "/authorize",
		"token_url":     f.URL + "/api/token",
	}
}

// Playlist returns a created playlist by id.
func (f *FakeSpotify) Playlist(id string) (*FakePlaylist, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Playlists[id]
	return p, ok
}

// SetStatus forces a response status for route, e.g. "GET /v1/me".
func (f *FakeSpotify) SetStatus(route string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Status[route] = status
}

// TokenRequests returns the number of token endpoint calls.
func (f *FakeSpotify) TokenRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.TokenCalls
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"status": status, "message": http.StatusText(status)},
	})
}

func (f *FakeSpotify) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := f.Status[r.Method+" "+r.URL.Path]
		f.mu.Unlock()

		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeAPIError(w, http.StatusUnauthorized)
			return
		}
		if status != 0 {
			writeAPIError(w, status)
			return
		}
		next(w, r)
	}
}

func (f *FakeSpotify) token(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.TokenCalls++
	status := f.Status["POST /api/token"]
	f.issued++
	n := f.issued
	f.mu.Unlock()

	if id, secret, ok := r.BasicAuth(); !ok || id != "client" || secret != "secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if status != 0 {
		writeJSON(w, status, map[string]string{"error": "invalid_grant"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	grant := r.PostForm.Get("grant_type")
	f.mu.Lock()
	f.Grants = append(f.Grants, grant)
	f.mu.Unlock()

	body := map[string]any{
		"access_token": fmt.Sprintf("access-%d", n),
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	switch grant {
	case "authorization_code":
		if r.PostForm.Get("code") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		body["refresh_token"] = "refresh-1"
	case "refresh_token":
		body["refresh_token"] = fmt.Sprintf("refresh-%d", n)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (f *FakeSpotify) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" || r.URL.Query().Get("type") != "track" {
		writeAPIError(w, http.StatusBadRequest)
		return
	}

	title, artist, hasArtist := strings.Cut(q, " artist:")
	title = strings.ToLower(strings.TrimSpace(title))
	artist = strings.ToLower(strings.TrimSpace(artist))

	f.mu.Lock()
	var items []models.Track
	for _, t := range f.Catalog {
		if hasArtist {
			if strings.ToLower(t.Title) == title && strings.ToLower(t.PrimaryArtist()) == artist {
				items = append(items, t)
			}
			continue
		}
		if strings.Contains(strings.ToLower(t.Title), title) || strings.Contains(strings.ToLower(t.ArtistNames()), title) {
			items = append(items, t)
		}
	}
	f.mu.Unlock()

	if items == nil {
		items = []models.Track{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tracks": map[string]any{"items": items, "total": len(items)},
	})
}

func (f *FakeSpotify) track(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.Catalog {
		if t.ID == id {
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeAPIError(w, http.StatusNotFound)
}

func (f *FakeSpotify) me(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	user := f.User
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, user)
}

func (f *FakeSpotify) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var details models.PlaylistDetails
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		writeAPIError(w, http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	id := fmt.Sprintf("playlist-%d", len(f.Playlists)+1)
	f.Playlists[id] = &FakePlaylist{Owner: r.PathValue("owner"), Details: details}
	f.Order = append(f.Order, id)
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, models.PlaylistRef{
		ID:           id,
		Name:         details.Name,
		Description:  details.Description,
		ExternalURLs: models.ExternalURLs{Spotify: "https://open.spotify.com/playlist/" + id},
		URI:          "spotify:playlist:" + id,
	})
}

func (f *FakeSpotify) addItems(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URIs []string `json:"uris"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIError(w, http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	p, ok := f.Playlists[r.PathValue("id")]
	if ok {
		p.URIs = append(p.URIs, body.URIs...)
	}
	f.mu.Unlock()

	if !ok {
		writeAPIError(w, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"snapshot_id": "snap"})
}
