package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
	tu "github.com/desertthunder/djai/internal/testing"
)

type completionServer struct {
	*httptest.Server
	calls    atomic.Int32
	statuses []int // status per call; 200 after the list runs out
	content  string
	lastBody map[string]any
}

func newCompletionServer(t *testing.T, content string, statuses ...int) *completionServer {
	t.Helper()
	cs := &completionServer{content: content, statuses: statuses}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(cs.calls.Add(1))
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&cs.lastBody)

		w.Header().Set("Content-Type", "application/json")
		if n <= len(cs.statuses) && cs.statuses[n-1] != http.StatusOK {
			w.WriteHeader(cs.statuses[n-1])
			fmt.Fprintf(w, `{"error":{"message":"status %d","type":"server_error"}}`, cs.statuses[n-1])
			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4-turbo-preview",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": cs.content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *completionServer) service(t *testing.T, retries int) *OpenAIService {
	t.Helper()
	svc, err := NewOpenAIService(OpenAIOptions{
		APIKey:        "sk-test",
		BaseURL:       cs.URL,
		MaxRetries:    retries,
		Timeout:       5 * time.Second,
		HTTPClient:    cs.Client(),
		RetryInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

const validContent = `{"playlistName":"Night Drive","recommendations":[
	{"name":"Song A","artist":"Artist A","reason":"same energy"},
	{"name":"Song B","artist":"Artist B","reason":"similar synths"}
]}`

func generationRequest() models.GenerationRequest {
	return models.GenerationRequest{
		SeedTracks:     []models.Track{tu.Track("s1", "Seed One", "Seed Artist"), tu.Track("s2", "Seed Two", "Other Artist")},
		Prompt:         "upbeat workout mix",
		NumberOfTracks: 10,
	}
}

func TestOpenAIService(t *testing.T) {
	t.Run("NewOpenAIService requires key", func(t *testing.T) {
		if _, err := NewOpenAIService(OpenAIOptions{}); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Recommend", func(t *testing.T) {
		cs := newCompletionServer(t, validContent)
		recs, err := cs.service(t, 3).Recommend(context.Background(), generationRequest())
		if err != nil {
			t.Fatalf("recommend failed: %v", err)
		}

		if recs.PlaylistName != "Night Drive"+models.BrandSuffix {
			t.Errorf("unexpected name %q", recs.PlaylistName)
		}
		if len(recs.Suggestions) != 2 || recs.Suggestions[1].Artist != "Artist B" {
			t.Errorf("unexpected suggestions %+v", recs.Suggestions)
		}

		if cs.lastBody["model"] != defaultModel {
			t.Errorf("expected default model, got %v", cs.lastBody["model"])
		}
		format, _ := cs.lastBody["response_format"].(map[string]any)
		if format["type"] != "json_object" {
			t.Errorf("expected json_object response format, got %v", cs.lastBody["response_format"])
		}
		messages, _ := cs.lastBody["messages"].([]any)
		if len(messages) != 2 {
			t.Fatalf("expected system and user messages, got %d", len(messages))
		}
		user, _ := messages[1].(map[string]any)
		content, _ := user["content"].(string)
		for _, want := range []string{`"Seed One" by Seed Artist`, "Additional context: upbeat workout mix", "Recommend 10 songs"} {
			if !strings.Contains(content, want) {
				t.Errorf("user prompt missing %q:\n%s", want, content)
			}
		}
	})

	t.Run("Recovers from one 500", func(t *testing.T) {
		cs := newCompletionServer(t, validContent, http.StatusInternalServerError)
		if _, err := cs.service(t, 3).Recommend(context.Background(), generationRequest()); err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if n := cs.calls.Load(); n != 2 {
			t.Errorf("expected 2 calls, got %d", n)
		}
	})

	t.Run("Retries 429", func(t *testing.T) {
		cs := newCompletionServer(t, validContent, http.StatusTooManyRequests, http.StatusTooManyRequests)
		if _, err := cs.service(t, 3).Recommend(context.Background(), generationRequest()); err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if n := cs.calls.Load(); n != 3 {
			t.Errorf("expected 3 calls, got %d", n)
		}
	})

	t.Run("Retry budget exhausted", func(t *testing.T) {
		cs := newCompletionServer(t, validContent, 503, 503, 503, 503, 503)
		_, err := cs.service(t, 3).Recommend(context.Background(), generationRequest())
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if n := cs.calls.Load(); n != 4 {
			t.Errorf("expected 1 attempt + 3 retries, got %d calls", n)
		}
	})

	t.Run("Does not retry 400", func(t *testing.T) {
		cs := newCompletionServer(t, validContent, http.StatusBadRequest)
		_, err := cs.service(t, 3).Recommend(context.Background(), generationRequest())
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if n := cs.calls.Load(); n != 1 {
			t.Errorf("expected no retry, got %d calls", n)
		}
	})

	t.Run("Does not retry format errors", func(t *testing.T) {
		cs := newCompletionServer(t, `{"playlistName":"x","recommendations":"nope"}`)
		_, err := cs.service(t, 3).Recommend(context.Background(), generationRequest())
		if !errors.Is(err, shared.ErrInvalidRecommendationFormat) {
			t.Errorf("expected ErrInvalidRecommendationFormat, got %v", err)
		}
		if n := cs.calls.Load(); n != 1 {
			t.Errorf("expected no retry, got %d calls", n)
		}
	})

	t.Run("Rejects invalid request before calling", func(t *testing.T) {
		cs := newCompletionServer(t, validContent)
		_, err := cs.service(t, 3).Recommend(context.Background(), models.GenerationRequest{NumberOfTracks: 10})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if n := cs.calls.Load(); n != 0 {
			t.Errorf("expected no calls, got %d", n)
		}
	})
}

func TestParseRecommendations(t *testing.T) {
	valid := []struct {
		name    string
		content string
		count   int
	}{
		{"two entries", validContent, 2},
		{"empty array", `{"playlistName":"x","recommendations":[]}`, 0},
		{"extra keys ignored", `{"playlistName":"x","recommendations":[],"note":"hi"}`, 0},
	}
	for _, tt := range valid {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := ParseRecommendations(tt.content)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(recs.Suggestions) != tt.count {
				t.Errorf("expected %d suggestions, got %d", tt.count, len(recs.Suggestions))
			}
		})
	}

	invalid := []struct {
		name    string
		content string
	}{
		{"not json", `here are some songs`},
		{"array root", `[]`},
		{"missing name", `{"recommendations":[]}`},
		{"empty name", `{"playlistName":"  ","recommendations":[]}`},
		{"numeric name", `{"playlistName":5,"recommendations":[]}`},
		{"missing recommendations", `{"playlistName":"x"}`},
		{"null recommendations", `{"playlistName":"x","recommendations":null}`},
		{"object recommendations", `{"playlistName":"x","recommendations":{}}`},
		{"string entries", `{"playlistName":"x","recommendations":["a"]}`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRecommendations(tt.content); !errors.Is(err, shared.ErrInvalidRecommendationFormat) {
				t.Errorf("expected ErrInvalidRecommendationFormat, got %v", err)
			}
		})
	}
}

func TestBuildUserPrompt(t *testing.T) {
	req := generationRequest()
	req.Prompt = ""

	got, err := BuildUserPrompt(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, "Additional context") {
		t.Error("empty prompt should not add context")
	}
	if !strings.Contains(got, `- "Seed Two" by Other Artist`) {
		t.Errorf("missing seed line:\n%s", got)
	}
}
