package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/services"
	"github.com/desertthunder/djai/internal/shared"
	"golang.org/x/sync/errgroup"
)

// resolveSearchLimit is the page size for resolution searches; only the first hit is used.
const resolveSearchLimit = 1

// Generator defines the generation pipeline.
type Generator interface {
	// Generate asks for recommendations, resolves them against the catalog and prepends the seeds.
	Generate(ctx context.Context, req models.GenerationRequest, progress chan<- ProgressUpdate) (*models.GenerationResult, error)

	// Save creates a private playlist and adds the entries in one batch.
	Save(ctx context.Context, req SaveRequest, progress chan<- ProgressUpdate) (*models.PlaylistRef, error)
}

// SaveRequest carries an edited generation to be saved.
type SaveRequest struct {
	Name        string
	Description string // derived from Seeds and Prompt when empty
	Entries     []models.ResolvedEntry
	Seeds       []models.Track
	Prompt      string
}

// PlaylistEngine implements [Generator].
type PlaylistEngine struct {
	catalog     services.Catalog
	recommender services.Recommender
	logger      *log.Logger
	concurrency int
}

// NewPlaylistEngine creates a new PlaylistEngine.
//
// concurrency bounds the number of in-flight searches; zero or less means one goroutine per suggestion.
func NewPlaylistEngine(catalog services.Catalog, recommender services.Recommender, logger *log.Logger, concurrency int) *PlaylistEngine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &PlaylistEngine{
		catalog:     catalog,
		recommender: recommender,
		logger:      logger,
		concurrency: concurrency,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// SearchQuery formats the catalog query for a suggestion.
func SearchQuery(s models.Suggestion) string {
	title := strings.TrimSpace(s.Title)
	artist := strings.TrimSpace(s.Artist)
	if artist == "" {
		return title
	}
	return fmt.Sprintf("%s artist:%s", title, artist)
}

// Recommend validates req and asks the recommender for suggestions.
func (e *PlaylistEngine) Recommend(ctx context.Context, req models.GenerationRequest, progress chan<- ProgressUpdate) (*models.Recommendations, error) {
	if e.recommender == nil {
		return nil, fmt.Errorf("%w: recommender not initialized", shared.ErrServiceUnavailable)
	}

	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	e.sendProgress(progress, recommendUpdate(req))
	recs, err := e.recommender.Recommend(ctx, req)
	if err != nil {
		return nil, err
	}

	// The requested count is advisory for the model; the list never exceeds it.
	if len(recs.Suggestions) > req.NumberOfTracks {
		recs.Suggestions = recs.Suggestions[:req.NumberOfTracks]
	}
	return recs, nil
}

// Resolve searches the catalog once per suggestion and keeps the first hit.
//
// Searches run concurrently and write into their own slot, so the output follows
// suggestion order. Suggestions whose search fails or finds nothing are dropped.
// Only a cancelled ctx returns an error.
func (e *PlaylistEngine) Resolve(ctx context.Context, suggestions []models.Suggestion, progress chan<- ProgressUpdate) ([]models.ResolvedEntry, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	total := len(suggestions)
	slots := make([]*models.ResolvedEntry, total)
	var done atomic.Int32

	e.sendProgress(progress, searchTracksUpdate(0, total, nil))

	var g errgroup.Group
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}

	for i, s := range suggestions {
		g.Go(func() error {
			track, err := e.resolveOne(ctx, s)
			switch {
			case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrRefreshFailed):
				e.logger.Warn("suggestion dropped", "title", s.Title, "artist", s.Artist, "error", err)
			case err != nil:
				e.logger.Debug("suggestion dropped", "title", s.Title, "artist", s.Artist, "error", err)
			default:
				slots[i] = &models.ResolvedEntry{Track: *track, Reason: s.Reason}
			}
			e.sendProgress(progress, searchTracksUpdate(int(done.Add(1)), total, &s))
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resolved := make([]models.ResolvedEntry, 0, total)
	for _, slot := range slots {
		if slot != nil {
			resolved = append(resolved, *slot)
		}
	}

	e.logger.Debug("resolved suggestions", "resolved", len(resolved), "total", total)
	return resolved, nil
}

func (e *PlaylistEngine) resolveOne(ctx context.Context, s models.Suggestion) (*models.Track, error) {
	if strings.TrimSpace(s.Title) == "" {
		return nil, fmt.Errorf("%w: suggestion has no title", shared.ErrTrackNotFound)
	}

	tracks, err := e.catalog.Search(ctx, SearchQuery(s), resolveSearchLimit)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, SearchQuery(s))
	}
	return &tracks[0], nil
}

// Generate runs the full pipeline for one request.
func (e *PlaylistEngine) Generate(ctx context.Context, req models.GenerationRequest, progress chan<- ProgressUpdate) (*models.GenerationResult, error) {
	recs, err := e.Recommend(ctx, req, progress)
	if err != nil {
		return nil, err
	}

	resolved, err := e.Resolve(ctx, recs.Suggestions, progress)
	if err != nil {
		return nil, err
	}

	entries := append(models.SeedEntries(req.SeedTracks), resolved...)
	result := &models.GenerationResult{
		PlaylistName: recs.PlaylistName,
		Entries:      entries,
	}

	e.sendProgress(progress, generatedUpdate(result))
	return result, nil
}

// Save creates a private playlist owned by the current user and adds every entry in one call.
//
// Save is not idempotent: each call creates a new playlist.
func (e *PlaylistEngine) Save(ctx context.Context, req SaveRequest, progress chan<- ProgressUpdate) (*models.PlaylistRef, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: playlist name is required", shared.ErrMissingArgument)
	}

	description := req.Description
	if description == "" {
		description = models.DescribePlaylist(req.Seeds, req.Prompt)
	}

	e.sendProgress(progress, createPlaylistUpdate(1, 2, req.Name))

	user, err := e.catalog.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	playlist, err := e.catalog.CreatePlaylist(ctx, user.ID, models.PlaylistDetails{
		Name:        req.Name,
		Description: description,
		Public:      false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	uris := models.TrackURIs(req.Entries)
	if len(uris) > 0 {
		e.sendProgress(progress, addTracksUpdate(2, 2, len(uris)))
		if err := e.catalog.AddItems(ctx, playlist.ID, uris); err != nil {
			return nil, fmt.Errorf("failed to add tracks to playlist %s: %w", playlist.ID, err)
		}
	}

	e.logger.Info("playlist saved", "id", playlist.ID, "name", playlist.Name, "tracks", len(uris))
	e.sendProgress(progress, savedUpdate(playlist))
	return playlist, nil
}
