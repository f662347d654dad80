package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/djai/internal/auth"
	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/server"
	"github.com/desertthunder/djai/internal/services"
	"github.com/desertthunder/djai/internal/shared"
	"github.com/desertthunder/djai/internal/tasks"
)

const (
	msgNotAuthenticated = "Not authenticated"
	msgInvalidBody      = "Invalid request body"
	msgNoQuery          = "No search query provided"
	msgSearchFailed     = "Failed to search tracks"
	msgGenerateFailed   = "Failed to generate recommendations"
	msgCreateFailed     = "Failed to create playlist"
	msgStateFailed      = "Failed to update state"
	msgHistoryFailed    = "Failed to load history"
	msgRefreshFailed    = "Failed to refresh credentials"
	maxBodyBytes        = 1 << 20
)

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// fail maps err onto a status and message. Unexpected errors are logged and
// reported with fallback.
func (a *App) fail(w http.ResponseWriter, cur *Current, err error, fallback string) {
	switch {
	case errors.Is(err, shared.ErrRefreshFailed),
		errors.Is(err, shared.ErrNotAuthenticated):
		if cur != nil && !cur.Credentials.Authenticated() {
			a.sessions.Expire(w, cur)
		}
		server.WriteError(w, http.StatusUnauthorized, msgNotAuthenticated)
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrTooManySeedTracks),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument):
		server.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrNoGeneration),
		errors.Is(err, shared.ErrHistoryNotFound):
		server.WriteError(w, http.StatusNotFound, err.Error())
	default:
		a.logger.Error(fallback, "error", err)
		server.WriteError(w, http.StatusInternalServerError, fallback)
	}
}

func (a *App) health(w http.ResponseWriter, _ *http.Request) {
	server.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	st, err := shared.GenerateState()
	if err != nil {
		a.fail(w, nil, err, "Failed to start login")
		return
	}

	http.SetCookie(w, a.sessions.cookie(StateCookie, st, stateMaxAge))
	http.Redirect(w, r, a.spotify.AuthURL(st), http.StatusFound)
}

func (a *App) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	expected, err := r.Cookie(StateCookie)
	if err != nil || expected.Value == "" || expected.Value != q.Get("state") {
		server.WriteError(w, http.StatusBadRequest, "Invalid state parameter")
		return
	}
	a.sessions.clear(w, StateCookie)

	code := q.Get("code")
	if code == "" {
		a.logger.Warn("authorization denied", "error", q.Get("error"))
		server.WriteError(w, http.StatusUnauthorized, "Authorization failed")
		return
	}

	cred, err := a.spotify.Exchange(r.Context(), code)
	if err != nil {
		a.logger.Error("code exchange failed", "error", err)
		server.WriteError(w, http.StatusUnauthorized, "Authorization failed")
		return
	}

	store := auth.NewCredentialStore(cred, a.spotify.Refresher())
	user, err := a.spotify.ForTokens(store).CurrentUser(r.Context())
	if err != nil {
		a.logger.Error("failed to fetch profile", "error", err)
		server.WriteError(w, http.StatusUnauthorized, "Authorization failed")
		return
	}

	if _, err := a.sessions.Start(w, user, store.Credential()); err != nil {
		a.fail(w, nil, err, "Failed to start session")
		return
	}
	http.Redirect(w, r, a.publicURL, http.StatusFound)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	a.sessions.End(w, r)
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

func (a *App) me(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())
	server.WriteJSON(w, http.StatusOK, meResponse{
		ID:          cur.Session.SpotifyUserID(),
		DisplayName: cur.Session.DisplayName(),
	})
}

func (a *App) search(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		server.WriteError(w, http.StatusBadRequest, msgNoQuery)
		return
	}

	tracks, err := a.catalog(cur).Search(r.Context(), q, services.SearchLimit)
	if err != nil {
		a.fail(w, cur, err, msgSearchFailed)
		return
	}
	if tracks == nil {
		tracks = []models.Track{}
	}
	server.WriteJSON(w, http.StatusOK, tracks)
}

func (a *App) recommend(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())

	var req models.GenerationRequest
	if err := decode(w, r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	recs, err := a.engine(cur).Recommend(r.Context(), req, nil)
	if err != nil {
		a.fail(w, cur, err, msgGenerateFailed)
		return
	}
	server.WriteJSON(w, http.StatusOK, recs)
}

type createPlaylistRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Tracks      []models.Track `json:"tracks"`
	SeedTracks  []models.Track `json:"seedTracks"`
	Prompt      string         `json:"prompt"`
}

func (a *App) createPlaylist(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())

	var body createPlaylistRequest
	if err := decode(w, r, &body); err != nil {
		server.WriteError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	entries := make([]models.ResolvedEntry, len(body.Tracks))
	for i, t := range body.Tracks {
		entries[i] = models.ResolvedEntry{Track: t}
	}

	playlist, err := a.engine(cur).Save(r.Context(), tasks.SaveRequest{
		Name:        body.Name,
		Description: body.Description,
		Entries:     entries,
		Seeds:       body.SeedTracks,
		Prompt:      body.Prompt,
	}, nil)
	if err != nil {
		a.fail(w, cur, err, msgCreateFailed)
		return
	}
	server.WriteJSON(w, http.StatusOK, playlist)
}

// generate runs the full pipeline. Missing seeds, prompt or count are taken from client state.
func (a *App) generate(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())
	ctx := r.Context()
	client := a.client(cur)

	var req models.GenerationRequest
	if err := decode(w, r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if len(req.SeedTracks) == 0 {
		seeds, err := client.SelectedTracks(ctx)
		if err != nil {
			a.fail(w, cur, err, msgStateFailed)
			return
		}
		draft, err := client.Draft(ctx)
		if err != nil {
			a.fail(w, cur, err, msgStateFailed)
			return
		}

		req.SeedTracks = seeds
		if req.Prompt == "" {
			req.Prompt = draft.Prompt
		}
		if req.NumberOfTracks == 0 {
			req.NumberOfTracks = draft.NumberOfTracks
		}
	}
	req = req.WithDefaults()

	result, err := a.engine(cur).Generate(ctx, req, nil)
	if err != nil {
		a.fail(w, cur, err, msgGenerateFailed)
		return
	}

	if err := client.SetSelectedTracks(ctx, req.SeedTracks); err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}
	if err := client.SetDraft(ctx, models.Draft{Prompt: req.Prompt, NumberOfTracks: req.NumberOfTracks}); err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}
	if err := client.SetGenerated(ctx, result); err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}

	session, err := a.history(cur).Record(ctx, models.GenerationSession{
		SeedTracks:     req.SeedTracks,
		Prompt:         req.Prompt,
		RequestedCount: req.NumberOfTracks,
		Result:         *result,
	})
	if err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}
	server.WriteJSON(w, http.StatusOK, session)
}

func (a *App) current(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())

	result, err := a.client(cur).Generated(r.Context())
	if err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}
	server.WriteJSON(w, http.StatusOK, result)
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (a *App) reorder(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())

	var body reorderRequest
	if err := decode(w, r, &body); err != nil {
		server.WriteError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	result, err := a.client(cur).ReorderGenerated(r.Context(), body.From, body.To)
	if err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}
	server.WriteJSON(w, http.StatusOK, result)
}

func (a *App) removeTrack(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())

	result, err := a.client(cur).RemoveGenerated(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}
	server.WriteJSON(w, http.StatusOK, result)
}

type saveRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// saveCurrent saves the current generation. The stored result records the created playlist.
func (a *App) saveCurrent(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())
	ctx := r.Context()
	client := a.client(cur)

	var body saveRequest
	if err := decode(w, r, &body); err != nil {
		server.WriteError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	result, err := client.Generated(ctx)
	if err != nil {
		a.fail(w, cur, err, msgCreateFailed)
		return
	}
	seeds, err := client.SelectedTracks(ctx)
	if err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}
	draft, err := client.Draft(ctx)
	if err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}

	name := body.Name
	if name == "" {
		name = result.PlaylistName
	}

	playlist, err := a.engine(cur).Save(ctx, tasks.SaveRequest{
		Name:        name,
		Description: body.Description,
		Entries:     result.Entries,
		Seeds:       seeds,
		Prompt:      draft.Prompt,
	}, nil)
	if err != nil {
		a.fail(w, cur, err, msgCreateFailed)
		return
	}

	if _, err := client.AttachPlaylist(ctx, playlist); err != nil {
		a.logger.Warn("failed to record saved playlist", "error", err)
	}
	server.WriteJSON(w, http.StatusOK, playlist)
}

func (a *App) selectedTracks(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())

	tracks, err := a.client(cur).SelectedTracks(r.Context())
	if err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}
	server.WriteJSON(w, http.StatusOK, tracks)
}

func (a *App) setSelectedTracks(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())

	var tracks []models.Track
	if err := decode(w, r, &tracks); err != nil {
		server.WriteError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if err := a.client(cur).SetSelectedTracks(r.Context(), tracks); err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}
	if tracks == nil {
		tracks = []models.Track{}
	}
	server.WriteJSON(w, http.StatusOK, tracks)
}

type toggleResponse struct {
	Tracks   []models.Track `json:"tracks"`
	Selected bool           `json:"selected"`
}

func (a *App) toggleTrack(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())

	var track models.Track
	if err := decode(w, r, &track); err != nil || track.ID == "" {
		server.WriteError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	tracks, selected, err := a.client(cur).ToggleTrack(r.Context(), track)
	if err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}
	server.WriteJSON(w, http.StatusOK, toggleResponse{Tracks: tracks, Selected: selected})
}

func (a *App) draft(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())

	d, err := a.client(cur).Draft(r.Context())
	if err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}
	server.WriteJSON(w, http.StatusOK, d)
}

func (a *App) setDraft(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())
	client := a.client(cur)

	var d models.Draft
	if err := decode(w, r, &d); err != nil {
		server.WriteError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if err := client.SetDraft(r.Context(), d); err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}

	stored, err := client.Draft(r.Context())
	if err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}
	server.WriteJSON(w, http.StatusOK, stored)
}

func (a *App) reset(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())

	if err := a.client(cur).Reset(r.Context()); err != nil {
		a.fail(w, cur, err, msgStateFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) listHistory(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())

	sessions, err := a.history(cur).List(r.Context())
	if err != nil {
		a.fail(w, cur, err, msgHistoryFailed)
		return
	}
	server.WriteJSON(w, http.StatusOK, sessions)
}

func (a *App) clearHistory(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())

	if err := a.history(cur).Clear(r.Context()); err != nil {
		a.fail(w, cur, err, msgHistoryFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// restoreHistory returns the stored session and makes it the current client state.
func (a *App) restoreHistory(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())

	session, err := a.history(cur).Restore(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, cur, err, msgHistoryFailed)
		return
	}

	if err := a.client(cur).Apply(r.Context(), *session); err != nil {
		a.fail(w, cur, fmt.Errorf("failed to apply history entry: %w", err), msgStateFailed)
		return
	}
	server.WriteJSON(w, http.StatusOK, session)
}

func (a *App) removeHistory(w http.ResponseWriter, r *http.Request) {
	cur := FromContext(r.Context())

	if err := a.history(cur).Remove(r.Context(), r.PathValue("id")); err != nil {
		a.fail(w, cur, err, msgHistoryFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
