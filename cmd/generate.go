package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/djai/internal/formatter"
	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
	"github.com/desertthunder/djai/internal/state"
	"github.com/desertthunder/djai/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Generate asks for recommendations, resolves them and stores the result as the current playlist.
//
// Seeds default to the stored selection; prompt and count default to the stored draft.
// The generation is recorded in history before any save or review.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("save") && cmd.Bool("review") {
		return fmt.Errorf("%w: --save and --review cannot be combined", shared.ErrInvalidArgument)
	}
	if r.recommender == nil {
		return fmt.Errorf("%w: OpenAI service not initialized (set OPENAI_API_KEY)", shared.ErrServiceUnavailable)
	}

	var format formatter.Format
	if f := cmd.String("format"); f != "" {
		var err error
		if format, err = formatter.ParseFormat(f); err != nil {
			return err
		}
	} else if cmd.String("output") != "" {
		format = formatter.Text
	}

	client, err := r.client()
	if err != nil {
		return err
	}

	req, err := r.generationRequest(ctx, cmd, client)
	if err != nil {
		return err
	}

	engine, err := r.engine()
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go r.printProgress(progress, done)

	result, err := engine.Generate(ctx, req, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if err := client.SetSelectedTracks(ctx, req.SeedTracks); err != nil {
		return err
	}
	if err := client.SetDraft(ctx, models.Draft{Prompt: req.Prompt, NumberOfTracks: req.NumberOfTracks}); err != nil {
		return err
	}
	if err := client.SetGenerated(ctx, result); err != nil {
		return err
	}

	hist, err := r.history()
	if err != nil {
		return err
	}
	session, err := hist.Record(ctx, models.GenerationSession{
		SeedTracks:     req.SeedTracks,
		Prompt:         req.Prompt,
		RequestedCount: req.NumberOfTracks,
		Result:         *result,
	})
	if err != nil {
		return err
	}
	r.logger.Info("generation recorded", "id", session.ID, "tracks", len(result.Entries))

	if cmd.Bool("review") {
		return r.runReview(ctx, client, result, req.SeedTracks, req.Prompt)
	}

	if cmd.Bool("save") {
		if _, err := r.savePlaylist(ctx, engine, client, result, req.SeedTracks, req.Prompt); err != nil {
			return err
		}
		session.Result = *result
	}

	if format != "" {
		return r.writeSession(format, &session, cmd.String("output"))
	}

	r.writePlain("\n")
	r.writePlainHeader(result.PlaylistName)
	r.writeEntries(result.Entries)
	if result.Playlist != nil {
		r.writePlainln("✓ Saved: %s", result.Playlist.ExternalURLs.Spotify)
	} else {
		r.writePlainln("Run 'djai review' to edit or 'djai save' to save this playlist.")
	}
	return nil
}

// generationRequest assembles seeds, prompt and count from flags, falling back to stored client state.
func (r *Runner) generationRequest(ctx context.Context, cmd *cli.Command, client *state.Client) (models.GenerationRequest, error) {
	var seeds []models.Track

	if ids := cmd.StringSlice("seed"); len(ids) > 0 {
		if len(ids) > models.MaxSeedTracks {
			return models.GenerationRequest{}, fmt.Errorf("%w: got %d, max %d", shared.ErrTooManySeedTracks, len(ids), models.MaxSeedTracks)
		}

		catalog, err := r.catalog()
		if err != nil {
			return models.GenerationRequest{}, err
		}
		for _, id := range ids {
			track, err := catalog.Track(ctx, id)
			if err != nil {
				return models.GenerationRequest{}, fmt.Errorf("failed to look up seed %s: %w", id, err)
			}
			seeds = append(seeds, *track)
		}
	} else {
		selected, err := client.SelectedTracks(ctx)
		if err != nil {
			return models.GenerationRequest{}, err
		}
		seeds = selected
	}

	draft := models.Draft{NumberOfTracks: r.config.Generation.DefaultCount}
	if _, err := client.Store().Load(ctx, state.KeyDraft, &draft); err != nil {
		return models.GenerationRequest{}, err
	}

	prompt := draft.Prompt
	if cmd.IsSet("prompt") {
		prompt = cmd.String("prompt")
	}

	count := cmd.Int("count")
	if count == 0 {
		count = draft.NumberOfTracks
	}

	req := models.GenerationRequest{SeedTracks: seeds, Prompt: prompt, NumberOfTracks: count}.WithDefaults()
	return req, req.Validate()
}

// Save creates a Spotify playlist from the current generation.
func (r *Runner) Save(ctx context.Context, cmd *cli.Command) error {
	client, err := r.client()
	if err != nil {
		return err
	}

	result, err := client.Generated(ctx)
	if err != nil {
		return err
	}
	if name := cmd.String("name"); name != "" {
		result.PlaylistName = name
	}

	seeds, err := client.SelectedTracks(ctx)
	if err != nil {
		return err
	}
	draft, err := client.Draft(ctx)
	if err != nil {
		return err
	}

	engine, err := r.engine()
	if err != nil {
		return err
	}

	playlist, err := r.savePlaylist(ctx, engine, client, result, seeds, draft.Prompt)
	if err != nil {
		return err
	}

	r.writePlainln("✓ Saved %s (%d tracks)", playlist.Name, len(result.Entries))
	return r.writePlain("  %s\n", playlist.ExternalURLs.Spotify)
}

// savePlaylist saves result, attaches the playlist reference and stores it as the current generation.
func (r *Runner) savePlaylist(ctx context.Context, engine *tasks.PlaylistEngine, client *state.Client, result *models.GenerationResult, seeds []models.Track, prompt string) (*models.PlaylistRef, error) {
	progress := make(chan tasks.ProgressUpdate, 4)
	done := make(chan struct{})
	go r.printProgress(progress, done)

	playlist, err := engine.Save(ctx, tasks.SaveRequest{
		Name:    result.PlaylistName,
		Entries: result.Entries,
		Seeds:   seeds,
		Prompt:  prompt,
	}, progress)
	close(progress)
	<-done
	if err != nil {
		return nil, err
	}

	result.Playlist = playlist
	if err := client.SetGenerated(ctx, result); err != nil {
		return playlist, err
	}
	return playlist, nil
}

// writeSession renders session to path, or to the output writer when path is empty.
func (r *Runner) writeSession(format formatter.Format, session *models.GenerationSession, path string) error {
	if path == "" {
		data, err := formatter.Render(format, session)
		if err != nil {
			return err
		}
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	written, err := formatter.WriteExport(format, session, path)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Wrote %s\n", written)
}
