package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/djai/internal/shared"
	"github.com/urfave/cli/v3"
)

// Search queries the catalog and prints candidate seed tracks.
//
// With --select the first hit is toggled in the stored seed selection.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query is required", shared.ErrMissingArgument)
	}

	catalog, err := r.catalog()
	if err != nil {
		return err
	}

	r.logger.Debug("searching spotify", "query", query)

	tracks, err := catalog.Search(ctx, query, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("select") && len(tracks) > 0 {
		client, err := r.client()
		if err != nil {
			return err
		}
		_, selected, err := client.ToggleTrack(ctx, tracks[0])
		if err != nil {
			return err
		}
		if selected {
			r.logger.Info("seed selected", "id", tracks[0].ID)
		} else {
			r.logger.Info("seed deselected", "id", tracks[0].ID)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	if len(tracks) == 0 {
		return r.writePlain("No tracks found for %q\n", query)
	}

	r.writePlain("Found %d tracks:\n\n", len(tracks))
	for i, t := range tracks {
		r.writePlain("%d. %s - %s\n", i+1, t.Title, t.ArtistNames())
		if t.Album.Name != "" {
			r.writePlain("   Album: %s\n", t.Album.Name)
		}
		r.writePlain("   ID: %s\n", t.ID)
	}
	return nil
}
