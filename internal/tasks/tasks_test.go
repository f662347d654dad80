package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
	tu "github.com/desertthunder/djai/internal/testing"
)

// workoutFixture builds 10 suggestions where suggestions 3 and 7 do not resolve.
func workoutFixture() (*tu.MockCatalog, *tu.MockRecommender, []models.Track) {
	catalog := tu.NewMockCatalog()
	suggestions := make([]models.Suggestion, 10)
	for i := range suggestions {
		s := models.Suggestion{
			Title:  fmt.Sprintf("Song %d", i),
			Artist: fmt.Sprintf("Artist %d", i),
			Reason: fmt.Sprintf("reason %d", i),
		}
		suggestions[i] = s
		switch i {
		case 3:
			catalog.Results[SearchQuery(s)] = nil
		case 7:
			catalog.SearchErr[SearchQuery(s)] = fmt.Errorf("%w: status 502", shared.ErrAPIRequest)
		default:
			id := fmt.Sprintf("r%d", i)
			catalog.Results[SearchQuery(s)] = []models.Track{
				tu.Track(id, s.Title, s.Artist),
				tu.Track(id+"-alt", s.Title+" (Live)", s.Artist),
			}
		}
	}

	recommender := &tu.MockRecommender{Recs: &models.Recommendations{
		PlaylistName: "Pump It" + models.BrandSuffix,
		Suggestions:  suggestions,
	}}
	seeds := []models.Track{tu.Track("s1", "Seed One", "Seed Artist"), tu.Track("s2", "Seed Two", "Seed Artist")}
	return catalog, recommender, seeds
}

func TestPlaylistEngine(t *testing.T) {
	t.Run("Generate end to end", func(t *testing.T) {
		catalog, recommender, seeds := workoutFixture()
		engine := NewPlaylistEngine(catalog, recommender, nil, 0)

		result, err := engine.Generate(context.Background(), models.GenerationRequest{
			SeedTracks:     seeds,
			Prompt:         "upbeat workout mix",
			NumberOfTracks: 10,
		}, nil)
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}

		if len(result.Entries) != 10 {
			t.Fatalf("expected 2 seeds + 8 resolved = 10 entries, got %d", len(result.Entries))
		}
		if !strings.HasSuffix(result.PlaylistName, models.BrandSuffix) {
			t.Errorf("expected brand suffix, got %q", result.PlaylistName)
		}

		for i, seed := range seeds {
			e := result.Entries[i]
			if e.Track.ID != seed.ID || e.Reason != models.SeedReason {
				t.Errorf("entry %d should be seed %s, got %+v", i, seed.ID, e)
			}
		}

		wantIDs := []string{"r0", "r1", "r2", "r4", "r5", "r6", "r8", "r9"}
		for i, id := range wantIDs {
			e := result.Entries[len(seeds)+i]
			if e.Track.ID != id {
				t.Errorf("entry %d: expected %s, got %s", len(seeds)+i, id, e.Track.ID)
			}
			if e.Reason != fmt.Sprintf("reason %s", strings.TrimPrefix(id, "r")) {
				t.Errorf("entry %d: reason not carried over: %q", len(seeds)+i, e.Reason)
			}
		}

		if catalog.SearchCount() != 10 {
			t.Errorf("expected one search per suggestion, got %d", catalog.SearchCount())
		}
		if recommender.LastRequest.Prompt != "upbeat workout mix" {
			t.Errorf("prompt not forwarded: %+v", recommender.LastRequest)
		}
	})

	t.Run("Generate defaults the count", func(t *testing.T) {
		catalog, recommender, seeds := workoutFixture()
		engine := NewPlaylistEngine(catalog, recommender, nil, 2)

		if _, err := engine.Generate(context.Background(), models.GenerationRequest{SeedTracks: seeds}, nil); err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if recommender.LastRequest.NumberOfTracks != models.DefaultCount {
			t.Errorf("expected default count, got %d", recommender.LastRequest.NumberOfTracks)
		}
	})

	t.Run("Generate caps suggestions at the requested count", func(t *testing.T) {
		catalog, recommender, seeds := workoutFixture()
		engine := NewPlaylistEngine(catalog, recommender, nil, 0)

		result, err := engine.Generate(context.Background(), models.GenerationRequest{SeedTracks: seeds, NumberOfTracks: 3}, nil)
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if len(result.Entries) > 3+len(seeds) {
			t.Errorf("expected at most %d entries, got %d", 3+len(seeds), len(result.Entries))
		}
		if catalog.SearchCount() != 3 {
			t.Errorf("expected 3 searches, got %d", catalog.SearchCount())
		}
	})

	t.Run("Generate validation", func(t *testing.T) {
		catalog, recommender, _ := workoutFixture()
		engine := NewPlaylistEngine(catalog, recommender, nil, 0)

		_, err := engine.Generate(context.Background(), models.GenerationRequest{NumberOfTracks: 10}, nil)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if recommender.Calls != 0 {
			t.Error("recommender should not be called for invalid input")
		}
	})

	t.Run("Generate propagates recommender errors", func(t *testing.T) {
		catalog, _, seeds := workoutFixture()
		recommender := &tu.MockRecommender{Err: fmt.Errorf("%w: bad json", shared.ErrInvalidRecommendationFormat)}
		engine := NewPlaylistEngine(catalog, recommender, nil, 0)

		_, err := engine.Generate(context.Background(), models.GenerationRequest{SeedTracks: seeds, NumberOfTracks: 10}, nil)
		if !errors.Is(err, shared.ErrInvalidRecommendationFormat) {
			t.Errorf("expected ErrInvalidRecommendationFormat, got %v", err)
		}
		if catalog.SearchCount() != 0 {
			t.Error("no searches should run after a recommender failure")
		}
	})

	t.Run("Missing services", func(t *testing.T) {
		engine := NewPlaylistEngine(nil, nil, nil, 0)
		if _, err := engine.Generate(context.Background(), models.GenerationRequest{}, nil); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
		if _, err := engine.Save(context.Background(), SaveRequest{Name: "x"}, nil); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

// delayedCatalog answers earlier suggestions later so completion order is reversed.
type delayedCatalog struct {
	*tu.MockCatalog
	delays map[string]time.Duration
}

func (d *delayedCatalog) Search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	time.Sleep(d.delays[query])
	return d.MockCatalog.Search(ctx, query, limit)
}

func TestResolve(t *testing.T) {
	t.Run("keeps suggestion order regardless of completion order", func(t *testing.T) {
		base := tu.NewMockCatalog()
		catalog := &delayedCatalog{MockCatalog: base, delays: map[string]time.Duration{}}

		var suggestions []models.Suggestion
		for i := range 5 {
			s := models.Suggestion{Title: fmt.Sprintf("T%d", i), Artist: "A"}
			suggestions = append(suggestions, s)
			base.Results[SearchQuery(s)] = []models.Track{tu.Track(fmt.Sprintf("id%d", i), s.Title, "A")}
			catalog.delays[SearchQuery(s)] = time.Duration(5-i) * 10 * time.Millisecond
		}

		engine := NewPlaylistEngine(catalog, nil, nil, 0)
		resolved, err := engine.Resolve(context.Background(), suggestions, nil)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}

		for i, e := range resolved {
			if e.Track.ID != fmt.Sprintf("id%d", i) {
				t.Errorf("position %d: got %s", i, e.Track.ID)
			}
		}
	})

	t.Run("one unresolved suggestion shortens the list by one", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		suggestions := []models.Suggestion{{Title: "A", Artist: "x"}, {Title: "B", Artist: "x"}, {Title: "C", Artist: "x"}}
		catalog.Results[SearchQuery(suggestions[0])] = []models.Track{tu.Track("a", "A", "x")}
		catalog.Results[SearchQuery(suggestions[2])] = []models.Track{tu.Track("c", "C", "x")}

		resolved, err := NewPlaylistEngine(catalog, nil, nil, 1).Resolve(context.Background(), suggestions, nil)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if len(resolved) != 2 || resolved[0].Track.ID != "a" || resolved[1].Track.ID != "c" {
			t.Errorf("unexpected result %+v", resolved)
		}
		for _, e := range resolved {
			if e.Track.ID == "" {
				t.Error("no placeholder entries expected")
			}
		}
	})

	t.Run("auth failures are dropped loudly", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		suggestions := []models.Suggestion{{Title: "A", Artist: "x"}, {Title: "B", Artist: "x"}}
		catalog.SearchErr[SearchQuery(suggestions[0])] = fmt.Errorf("%w: status 401", shared.ErrNotAuthenticated)
		catalog.SearchErr[SearchQuery(suggestions[1])] = fmt.Errorf("%w: status 502", shared.ErrAPIRequest)

		var buf bytes.Buffer
		resolved, err := NewPlaylistEngine(catalog, nil, shared.NewLogger(&buf), 1).Resolve(context.Background(), suggestions, nil)
		if err != nil || len(resolved) != 0 {
			t.Fatalf("expected both suggestions dropped, got %v %v", resolved, err)
		}

		out := buf.String()
		if !strings.Contains(out, "WARN") || !strings.Contains(out, "not authenticated") {
			t.Errorf("expected a warning for the auth failure, got %q", out)
		}
		if strings.Contains(out, "status 502") {
			t.Errorf("no-match drops should stay at debug level, got %q", out)
		}
	})

	t.Run("untitled suggestion is skipped without a search", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		resolved, err := NewPlaylistEngine(catalog, nil, nil, 0).Resolve(context.Background(), []models.Suggestion{{Artist: "x"}}, nil)
		if err != nil || len(resolved) != 0 {
			t.Errorf("expected empty result, got %v %v", resolved, err)
		}
		if catalog.SearchCount() != 0 {
			t.Error("expected no search")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewPlaylistEngine(tu.NewMockCatalog(), nil, nil, 0).Resolve(ctx, []models.Suggestion{{Title: "A"}}, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("progress never blocks", func(t *testing.T) {
		catalog, _, _ := workoutFixture()
		recs := make([]models.Suggestion, 0, 10)
		for i := range 10 {
			recs = append(recs, models.Suggestion{Title: fmt.Sprintf("Song %d", i), Artist: fmt.Sprintf("Artist %d", i)})
		}

		progress := make(chan ProgressUpdate, 1)
		done := make(chan struct{})
		go func() {
			NewPlaylistEngine(catalog, nil, nil, 0).Resolve(context.Background(), recs, progress)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("resolve blocked on a full progress channel")
		}

		update := <-progress
		if update.Phase != SearchTracks {
			t.Errorf("expected search phase, got %s", update.Phase)
		}
	})
}

func TestSave(t *testing.T) {
	entries := []models.ResolvedEntry{
		{Track: tu.Track("b", "B", "x")},
		{Track: tu.Track("a", "A", "x")},
	}

	t.Run("creates private playlist and adds tracks in order", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		engine := NewPlaylistEngine(catalog, nil, nil, 0)

		ref, err := engine.Save(context.Background(), SaveRequest{
			Name:    "Mix",
			Entries: entries,
			Seeds:   []models.Track{tu.Track("s", "Seed", "Artist")},
			Prompt:  "chill",
		}, nil)
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}

		if len(catalog.Created) != 1 {
			t.Fatalf("expected one playlist, got %d", len(catalog.Created))
		}
		created := catalog.Created[0]
		if created.Public {
			t.Error("playlist should be private")
		}
		if created.Description != models.DescribePlaylist([]models.Track{tu.Track("s", "Seed", "Artist")}, "chill") {
			t.Errorf("unexpected derived description %q", created.Description)
		}

		got := strings.Join(catalog.Added[ref.ID], ",")
		if got != "spotify:track:b,spotify:track:a" {
			t.Errorf("unexpected uris %s", got)
		}
	})

	t.Run("explicit description is kept", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		_, err := NewPlaylistEngine(catalog, nil, nil, 0).Save(context.Background(), SaveRequest{Name: "Mix", Description: "mine", Entries: entries}, nil)
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if catalog.Created[0].Description != "mine" {
			t.Errorf("expected explicit description, got %q", catalog.Created[0].Description)
		}
	})

	t.Run("saving twice creates two playlists", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		engine := NewPlaylistEngine(catalog, nil, nil, 0)
		req := SaveRequest{Name: "Mix", Entries: entries}

		first, _ := engine.Save(context.Background(), req, nil)
		second, _ := engine.Save(context.Background(), req, nil)
		if first == nil || second == nil || first.ID == second.ID {
			t.Errorf("expected two distinct playlists, got %v and %v", first, second)
		}
	})

	t.Run("empty list creates playlist without adding", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		ref, err := NewPlaylistEngine(catalog, nil, nil, 0).Save(context.Background(), SaveRequest{Name: "Empty"}, nil)
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if _, ok := catalog.Added[ref.ID]; ok {
			t.Error("no add call expected for an empty list")
		}
	})

	t.Run("errors", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		engine := NewPlaylistEngine(catalog, nil, nil, 0)

		if _, err := engine.Save(context.Background(), SaveRequest{}, nil); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}

		catalog.AddErr = fmt.Errorf("%w: status 500", shared.ErrAPIRequest)
		if _, err := engine.Save(context.Background(), SaveRequest{Name: "Mix", Entries: entries}, nil); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}

		catalog.CreateErr = shared.ErrNotAuthenticated
		if _, err := engine.Save(context.Background(), SaveRequest{Name: "Mix", Entries: entries}, nil); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestSearchQuery(t *testing.T) {
	tests := []struct {
		in   models.Suggestion
		want string
	}{
		{models.Suggestion{Title: "Song", Artist: "Band"}, "Song artist:Band"},
		{models.Suggestion{Title: " Song ", Artist: ""}, "Song"},
	}
	for _, tt := range tests {
		if got := SearchQuery(tt.in); got != tt.want {
			t.Errorf("SearchQuery(%+v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
