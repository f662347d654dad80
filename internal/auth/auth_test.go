package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
	"golang.org/x/oauth2"
)

type tokenServer struct {
	*httptest.Server
	calls   atomic.Int32
	status  int
	refresh string
	delay   time.Duration
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{status: http.StatusOK}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		if ts.delay > 0 {
			time.Sleep(ts.delay)
		}

		id, secret, ok := r.BasicAuth()
		if !ok || id != "client" || secret != "secret" {
			t.Errorf("expected basic auth client credentials, got %q %q %v", id, secret, ok)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("expected refresh_token grant, got %q", got)
		}

		if ts.status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(ts.status)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}

		body := map[string]any{
			"access_token": "fresh-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if ts.refresh != "" {
			body["refresh_token"] = ts.refresh
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) refresher() *OAuthRefresher {
	return NewOAuthRefresher(&oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: ts.URL},
	}, ts.Client())
}

func expired() models.Credential {
	return models.Credential{AccessToken: "stale", RefreshToken: "r1", ExpiresAt: time.Now().Add(-time.Minute)}
}

func TestCredentialStore(t *testing.T) {
	t.Run("valid credential issues no refresh", func(t *testing.T) {
		ts := newTokenServer(t)
		cred := models.Credential{AccessToken: "live", RefreshToken: "r1", ExpiresAt: time.Now().Add(time.Hour)}
		store := NewCredentialStore(cred, ts.refresher())

		got, err := store.Valid(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.AccessToken != "live" {
			t.Errorf("expected held token, got %q", got.AccessToken)
		}
		if n := ts.calls.Load(); n != 0 {
			t.Errorf("expected no token endpoint calls, got %d", n)
		}
	})

	t.Run("expired credential is refreshed", func(t *testing.T) {
		ts := newTokenServer(t)
		store := NewCredentialStore(expired(), ts.refresher())

		got, err := store.Valid(context.Background())
		returned := time.Now()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.AccessToken != "fresh-access" {
			t.Errorf("expected fresh token, got %q", got.AccessToken)
		}
		if !got.ExpiresAt.After(returned) {
			t.Errorf("expected expiry after %v, got %v", returned, got.ExpiresAt)
		}
		if got.RefreshToken != "r1" {
			t.Errorf("expected refresh token to be kept, got %q", got.RefreshToken)
		}
		if n := ts.calls.Load(); n != 1 {
			t.Errorf("expected 1 token endpoint call, got %d", n)
		}

		if _, err := store.Valid(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := ts.calls.Load(); n != 1 {
			t.Errorf("refreshed credential should be reused, got %d calls", n)
		}
	})

	t.Run("expiry equal to now triggers refresh", func(t *testing.T) {
		ts := newTokenServer(t)
		now := time.Now()
		cred := models.Credential{AccessToken: "edge", RefreshToken: "r1", ExpiresAt: now}
		store := NewCredentialStore(cred, ts.refresher())
		store.Now = func() time.Time { return now }

		if _, err := store.Valid(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := ts.calls.Load(); n != 1 {
			t.Errorf("expected 1 call, got %d", n)
		}
	})

	t.Run("rotated refresh token is stored", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.refresh = "r2"
		store := NewCredentialStore(expired(), ts.refresher())

		var persisted models.Credential
		store.OnRefresh = func(_ context.Context, c models.Credential) error {
			persisted = c
			return nil
		}

		if _, err := store.Valid(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.Credential().RefreshToken != "r2" {
			t.Errorf("expected rotated refresh token, got %q", store.Credential().RefreshToken)
		}
		if persisted.AccessToken != "fresh-access" || persisted.RefreshToken != "r2" {
			t.Errorf("OnRefresh got %+v", persisted)
		}
	})

	t.Run("concurrent callers share one refresh", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.delay = 50 * time.Millisecond
		store := NewCredentialStore(expired(), ts.refresher())

		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				cred, err := store.Valid(context.Background())
				if err == nil && cred.AccessToken != "fresh-access" {
					err = errors.New("unexpected token " + cred.AccessToken)
				}
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Errorf("caller failed: %v", err)
			}
		}
		if n := ts.calls.Load(); n != 1 {
			t.Errorf("expected exactly 1 token endpoint call, got %d", n)
		}
	})

	t.Run("failed refresh makes the store unauthenticated", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.status = http.StatusBadRequest
		store := NewCredentialStore(expired(), ts.refresher())

		_, err := store.Valid(context.Background())
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Fatalf("expected ErrRefreshFailed, got %v", err)
		}
		if store.Authenticated() {
			t.Error("store should be unauthenticated")
		}

		_, err = store.Valid(context.Background())
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if n := ts.calls.Load(); n != 1 {
			t.Errorf("expected no retry after failure, got %d calls", n)
		}
	})

	t.Run("caller cancellation does not abort the refresh", func(t *testing.T) {
		release := make(chan struct{})
		var calls atomic.Int32
		refresher := RefreshFunc(func(ctx context.Context, _ string) (models.Credential, error) {
			calls.Add(1)
			<-release
			if err := ctx.Err(); err != nil {
				return models.Credential{}, err
			}
			return models.Credential{AccessToken: "fresh", ExpiresAt: time.Now().Add(time.Hour)}, nil
		})
		store := NewCredentialStore(expired(), refresher)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := store.Valid(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("cancellation should not be reported as a refresh failure: %v", err)
		}

		close(release)

		got, err := store.Valid(context.Background())
		if err != nil {
			t.Fatalf("expected the detached refresh to succeed, got %v", err)
		}
		if got.AccessToken != "fresh" {
			t.Errorf("expected fresh token, got %q", got.AccessToken)
		}
		if !store.Authenticated() {
			t.Error("store should stay authenticated")
		}
		if n := calls.Load(); n != 1 {
			t.Errorf("expected 1 refresh, got %d", n)
		}
	})

	t.Run("refresh timeout fails the refresh", func(t *testing.T) {
		refresher := RefreshFunc(func(ctx context.Context, _ string) (models.Credential, error) {
			<-ctx.Done()
			return models.Credential{}, ctx.Err()
		})
		store := NewCredentialStore(expired(), refresher)
		store.Timeout = 10 * time.Millisecond

		_, err := store.Valid(context.Background())
		if !errors.Is(err, shared.ErrRefreshFailed) || !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected ErrRefreshFailed wrapping DeadlineExceeded, got %v", err)
		}
		if store.Authenticated() {
			t.Error("store should be unauthenticated after a timed out exchange")
		}
	})

	t.Run("missing refresh token", func(t *testing.T) {
		store := NewCredentialStore(models.Credential{AccessToken: "a", ExpiresAt: time.Now().Add(-time.Second)}, nil)

		_, err := store.Valid(context.Background())
		if !errors.Is(err, shared.ErrRefreshFailed) || !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrRefreshFailed wrapping ErrNoRefreshToken, got %v", err)
		}
	})

	t.Run("refresh without future expiry fails", func(t *testing.T) {
		refresher := RefreshFunc(func(context.Context, string) (models.Credential, error) {
			return models.Credential{AccessToken: "x", ExpiresAt: time.Now().Add(-time.Hour)}, nil
		})
		store := NewCredentialStore(expired(), refresher)

		if _, err := store.Valid(context.Background()); !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
	})

	t.Run("AccessToken", func(t *testing.T) {
		cred := models.Credential{AccessToken: "live", ExpiresAt: time.Now().Add(time.Hour)}
		token, err := NewCredentialStore(cred, nil).AccessToken(context.Background())
		if err != nil || token != "live" {
			t.Errorf("AccessToken() = %q, %v", token, err)
		}
	})
}

func TestCredentialFromToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	got := CredentialFromToken(&oauth2.Token{AccessToken: "a"}, "old", now)
	if got.RefreshToken != "old" {
		t.Errorf("expected fallback refresh token, got %q", got.RefreshToken)
	}
	if !got.ExpiresAt.Equal(now.Add(DefaultExpiry)) {
		t.Errorf("expected default expiry, got %v", got.ExpiresAt)
	}

	exp := now.Add(10 * time.Minute)
	got = CredentialFromToken(&oauth2.Token{AccessToken: "a", RefreshToken: "new", Expiry: exp}, "old", now)
	if got.RefreshToken != "new" || !got.ExpiresAt.Equal(exp) {
		t.Errorf("unexpected credential %+v", got)
	}
}
