package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
)

func TestBasicRouter(t *testing.T) {
	t.Run("routes by method and path", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc(http.MethodGet, "/items/{id}", func(w http.ResponseWriter, req *http.Request) {
			WriteJSON(w, http.StatusOK, map[string]string{"id": req.PathValue("id")})
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"id":"42"`) {
			t.Errorf("unexpected body %s", rec.Body.String())
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items/42", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var calls []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					calls = append(calls, name)
					next.ServeHTTP(w, req)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.HandleFunc(http.MethodGet, "/", func(w http.ResponseWriter, req *http.Request) {
			calls = append(calls, "handler")
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		want := []string{"first", "second", "handler"}
		if strings.Join(calls, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, calls)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Recover", func(t *testing.T) {
		var buf bytes.Buffer
		h := Recover(shared.NewLogger(&buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		var body ErrorBody
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body.Error == "" {
			t.Error("expected error body")
		}
		if !strings.Contains(buf.String(), "boom") {
			t.Error("expected panic to be logged")
		}
	})

	t.Run("Logging", func(t *testing.T) {
		var buf bytes.Buffer
		h := Logging(shared.NewLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

		out := buf.String()
		if !strings.Contains(out, "/brew") || !strings.Contains(out, "418") {
			t.Errorf("expected path and status in log, got %q", out)
		}
	})

	t.Run("WriteError", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, http.StatusUnauthorized, "Not authenticated")

		if got := rec.Header().Get("Content-Type"); got != "application/json" {
			t.Errorf("expected JSON content type, got %s", got)
		}
		if strings.TrimSpace(rec.Body.String()) != `{"error":"Not authenticated"}` {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})
}

type stubExchanger struct {
	cred models.Credential
	err  error
	code string
}

func (s *stubExchanger) Exchange(_ context.Context, code string) (models.Credential, error) {
	s.code = code
	return s.cred, s.err
}

func TestOAuthHandler(t *testing.T) {
	serve := func(h *OAuthHandler, query string) *httptest.ResponseRecorder {
		r := NewBasicRouter()
		r.Handler(h)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?"+query, nil))
		return rec
	}

	t.Run("success", func(t *testing.T) {
		ex := &stubExchanger{cred: models.Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)}}
		h := NewOAuthHandler(ex, "xyz", "")

		rec := serve(h, "state=xyz&code=abc")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ex.code != "abc" {
			t.Errorf("expected code abc, got %s", ex.code)
		}

		result := <-h.Result()
		if result.Error() != nil || result.Credential.AccessToken != "a" {
			t.Errorf("unexpected result %+v %v", result.Credential, result.Error())
		}
	})

	t.Run("state mismatch", func(t *testing.T) {
		h := NewOAuthHandler(&stubExchanger{}, "xyz", "")

		rec := serve(h, "state=other&code=abc")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		result := <-h.Result()
		if !errors.Is(result.Error(), shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", result.Error())
		}
	})

	t.Run("denied", func(t *testing.T) {
		h := NewOAuthHandler(&stubExchanger{}, "xyz", "")

		rec := serve(h, "state=xyz&error=access_denied")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected error")
		}
	})

	t.Run("exchange failure", func(t *testing.T) {
		h := NewOAuthHandler(&stubExchanger{err: shared.ErrAuthFailed}, "xyz", "")

		rec := serve(h, "state=xyz&code=abc")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if result := <-h.Result(); !errors.Is(result.Error(), shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", result.Error())
		}
	})

	t.Run("second callback rejected", func(t *testing.T) {
		h := NewOAuthHandler(&stubExchanger{cred: models.Credential{AccessToken: "a"}}, "xyz", "/cb")

		r := NewBasicRouter()
		r.Handler(h)
		for i, want := range []int{http.StatusOK, http.StatusBadRequest} {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=xyz&code=abc", nil))
			if rec.Code != want {
				t.Errorf("call %d: expected %d, got %d", i, want, rec.Code)
			}
		}
	})
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), shared.NewLogger(&bytes.Buffer{}))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
