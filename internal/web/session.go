package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/djai/internal/auth"
	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/repositories"
	"github.com/desertthunder/djai/internal/server"
	"github.com/desertthunder/djai/internal/shared"
)

const (
	SessionCookie = "djai_session"
	StateCookie   = "djai_oauth_state"

	sessionMaxAge = 30 * 24 * time.Hour
	stateMaxAge   = 10 * time.Minute
)

// Current is the authenticated session attached to a request.
type Current struct {
	Session     *models.Session
	Credentials *auth.CredentialStore
}

// Owner returns the key client state is scoped by.
func (c *Current) Owner() string { return c.Session.SpotifyUserID() }

type currentKey struct{}

// FromContext returns the session set by [SessionManager.Require], or nil.
func FromContext(ctx context.Context) *Current {
	c, _ := ctx.Value(currentKey{}).(*Current)
	return c
}

// SessionManager binds session cookies to persisted sessions and keeps one
// [auth.CredentialStore] per live session.
type SessionManager struct {
	repo      *repositories.SessionRepository
	refresher auth.Refresher
	secure    bool
	logger    *log.Logger

	// Now is handed to each credential store.
	Now func() time.Time

	mu     sync.Mutex
	stores map[string]*auth.CredentialStore
}

func NewSessionManager(repo *repositories.SessionRepository, refresher auth.Refresher, secure bool, logger *log.Logger) *SessionManager {
	return &SessionManager{
		repo:      repo,
		refresher: refresher,
		secure:    secure,
		logger:    logger,
		Now:       time.Now,
		stores:    map[string]*auth.CredentialStore{},
	}
}

func (m *SessionManager) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *SessionManager) clear(w http.ResponseWriter, name string) {
	c := m.cookie(name, "", 0)
	c.MaxAge = -1
	http.SetCookie(w, c)
}

// Start persists a new session for user and sets the session cookie.
func (m *SessionManager) Start(w http.ResponseWriter, user *models.CatalogUser, cred models.Credential) (*models.Session, error) {
	key, err := shared.GenerateState()
	if err != nil {
		return nil, err
	}

	session := models.NewSession(key, user.ID, user.DisplayName, cred)
	if err := m.repo.Create(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	http.SetCookie(w, m.cookie(SessionCookie, key, sessionMaxAge))
	m.logger.Info("session started", "user", user.ID, "session", session.ID())
	return session, nil
}

// Load resolves the request's session cookie. It returns [shared.ErrNotAuthenticated]
// when there is no cookie or no live session for it.
func (m *SessionManager) Load(r *http.Request) (*Current, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil, shared.ErrNotAuthenticated
	}

	session, err := m.repo.GetByKey(c.Value)
	if errors.Is(err, repositories.ErrSessionNotFound) {
		return nil, shared.ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}

	return &Current{Session: session, Credentials: m.credentials(session)}, nil
}

// credentials returns the cached store for session, creating it on first use.
func (m *SessionManager) credentials(session *models.Session) *auth.CredentialStore {
	m.mu.Lock()
	defer m.mu.Unlock()

	if store, ok := m.stores[session.ID()]; ok {
		return store
	}

	id := session.ID()
	store := auth.NewCredentialStore(session.Credential(), m.refresher)
	store.Now = m.Now
	store.OnRefresh = func(_ context.Context, cred models.Credential) error {
		m.logger.Debug("credential refreshed", "session", id)
		return m.repo.UpdateCredential(id, cred)
	}

	m.stores[id] = store
	return store
}

// End deletes the request's session, if any, and clears the cookie.
func (m *SessionManager) End(w http.ResponseWriter, r *http.Request) {
	if cur, err := m.Load(r); err == nil {
		m.drop(cur.Session.ID())
	}
	m.clear(w, SessionCookie)
}

func (m *SessionManager) drop(id string) {
	m.mu.Lock()
	delete(m.stores, id)
	m.mu.Unlock()

	if err := m.repo.Delete(id); err != nil && !errors.Is(err, repositories.ErrSessionNotFound) {
		m.logger.Error("failed to delete session", "session", id, "error", err)
	}
}

// Expire ends the session after its credential became unusable.
func (m *SessionManager) Expire(w http.ResponseWriter, cur *Current) {
	m.logger.Warn("session expired", "session", cur.Session.ID(), "user", cur.Owner())
	m.drop(cur.Session.ID())
	m.clear(w, SessionCookie)
}

// Require rejects requests without a live session and a valid credential with
// 401 {"error":"Not authenticated"}. A failed refresh ends the session; a request
// that ends while the refresh runs leaves it alone.
func (m *SessionManager) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur, err := m.Load(r)
		if err != nil {
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				m.logger.Error("failed to load session", "error", err)
			}
			server.WriteError(w, http.StatusUnauthorized, msgNotAuthenticated)
			return
		}

		if _, err := cur.Credentials.Valid(r.Context()); err != nil {
			switch {
			case errors.Is(err, shared.ErrRefreshFailed), errors.Is(err, shared.ErrNotAuthenticated):
				m.logger.Warn("credential unusable", "error", err)
				m.Expire(w, cur)
				server.WriteError(w, http.StatusUnauthorized, msgNotAuthenticated)
			case r.Context().Err() != nil:
				m.logger.Debug("request ended during credential refresh", "user", cur.Owner(), "error", err)
			default:
				m.logger.Error("failed to refresh credential", "user", cur.Owner(), "error", err)
				server.WriteError(w, http.StatusInternalServerError, msgRefreshFailed)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), currentKey{}, cur)))
	})
}
