// Package web implements the JSON backend a browser client drives.
//
// # Routes
//
//	GET    /health                              liveness
//	GET    /auth/login                          redirect to Spotify with a state cookie
//	GET    /auth/callback                       code exchange, session cookie
//	POST   /auth/logout                         end the session
//	GET    /api/me                              current user
//	GET    /api/spotify/search?q=               catalog search
//	POST   /api/openai                          raw recommendations
//	POST   /api/spotify/create-playlist         create and populate from a body
//	POST   /api/playlists/generate              full pipeline; stores the generation and records history
//	GET    /api/playlists/current               current generation
//	POST   /api/playlists/current/reorder       {from, to}
//	DELETE /api/playlists/current/tracks/{id}   remove an entry
//	POST   /api/playlists/current/save          create and populate from the current generation
//	GET    /api/state/selected-tracks           seed selection
//	PUT    /api/state/selected-tracks           replace the seed selection
//	POST   /api/state/selected-tracks/toggle    toggle one seed
//	GET    /api/state/draft                     prompt and count
//	PUT    /api/state/draft                     replace prompt and count
//	POST   /api/state/reset                     clear selection, draft and generation
//	GET    /api/history                         history, newest first
//	DELETE /api/history                         clear history
//	GET    /api/history/{id}                    restore an entry into client state
//	DELETE /api/history/{id}                    remove an entry
//
// Every /api route requires a session. Errors are {"error": "<message>"}.
//
// # Sessions
//
// [SessionManager] stores sessions through [repositories.SessionRepository] and caches one
// [auth.CredentialStore] per session so concurrent requests share a single token refresh.
// Rotated tokens are written back to the session row. A failed refresh deletes the session
// and clears the cookie.
//
// # Client State
//
// Selected seeds, the draft, the current generation and history live in a [state.Store]
// scoped by the Spotify user id, so they follow the account across sessions.
package web

import (
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/djai/internal/history"
	"github.com/desertthunder/djai/internal/repositories"
	"github.com/desertthunder/djai/internal/server"
	"github.com/desertthunder/djai/internal/services"
	"github.com/desertthunder/djai/internal/state"
	"github.com/desertthunder/djai/internal/tasks"
)

// Options configures an [App].
type Options struct {
	Spotify           *services.SpotifyService
	Recommender       services.Recommender
	Sessions          *repositories.SessionRepository
	States            state.Owners
	Logger            *log.Logger
	PublicURL         string // post-login redirect; "/" when empty
	SecureCookies     bool
	SearchConcurrency int
}

// App is the web backend's [http.Handler].
type App struct {
	spotify     *services.SpotifyService
	recommender services.Recommender
	states      state.Owners
	sessions    *SessionManager
	logger      *log.Logger
	publicURL   string
	concurrency int
	router      *server.BasicRouter
}

// New wires the routes listed in the package documentation.
func New(opts Options) *App {
	publicURL := opts.PublicURL
	if publicURL == "" {
		publicURL = "/"
	}

	a := &App{
		spotify:     opts.Spotify,
		recommender: opts.Recommender,
		states:      opts.States,
		sessions:    NewSessionManager(opts.Sessions, opts.Spotify.Refresher(), opts.SecureCookies, opts.Logger),
		logger:      opts.Logger,
		publicURL:   publicURL,
		concurrency: opts.SearchConcurrency,
		router:      server.NewBasicRouter(),
	}
	a.routes()
	return a
}

// Sessions exposes the session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *App) routes() {
	r := a.router
	r.Use(server.Recover(a.logger), server.Logging(a.logger))

	r.HandleFunc(http.MethodGet, "/health", a.health)
	r.HandleFunc(http.MethodGet, "/auth/login", a.login)
	r.HandleFunc(http.MethodGet, "/auth/callback", a.callback)
	r.HandleFunc(http.MethodPost, "/auth/logout", a.logout)

	protected := func(method, path string, h http.HandlerFunc) {
		r.Handle(method, path, a.sessions.Require(h))
	}

	protected(http.MethodGet, "/api/me", a.me)
	protected(http.MethodGet, "/api/spotify/search", a.search)
	protected(http.MethodPost, "/api/openai", a.recommend)
	protected(http.MethodPost, "/api/spotify/create-playlist", a.createPlaylist)

	protected(http.MethodPost, "/api/playlists/generate", a.generate)
	protected(http.MethodGet, "/api/playlists/current", a.current)
	protected(http.MethodPost, "/api/playlists/current/reorder", a.reorder)
	protected(http.MethodDelete, "/api/playlists/current/tracks/{id}", a.removeTrack)
	protected(http.MethodPost, "/api/playlists/current/save", a.saveCurrent)

	protected(http.MethodGet, "/api/state/selected-tracks", a.selectedTracks)
	protected(http.MethodPut, "/api/state/selected-tracks", a.setSelectedTracks)
	protected(http.MethodPost, "/api/state/selected-tracks/toggle", a.toggleTrack)
	protected(http.MethodGet, "/api/state/draft", a.draft)
	protected(http.MethodPut, "/api/state/draft", a.setDraft)
	protected(http.MethodPost, "/api/state/reset", a.reset)

	protected(http.MethodGet, "/api/history", a.listHistory)
	protected(http.MethodDelete, "/api/history", a.clearHistory)
	protected(http.MethodGet, "/api/history/{id}", a.restoreHistory)
	protected(http.MethodDelete, "/api/history/{id}", a.removeHistory)
}

func (a *App) catalog(cur *Current) services.Catalog {
	return a.spotify.ForTokens(cur.Credentials)
}

func (a *App) engine(cur *Current) *tasks.PlaylistEngine {
	return tasks.NewPlaylistEngine(a.catalog(cur), a.recommender, a.logger.With("user", cur.Owner()), a.concurrency)
}

func (a *App) client(cur *Current) *state.Client {
	return state.NewClient(a.states.ForOwner(cur.Owner()))
}

func (a *App) history(cur *Current) *history.History {
	return history.New(a.states.ForOwner(cur.Owner()))
}
