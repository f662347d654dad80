package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/djai/internal/formatter"
	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
	"github.com/urfave/cli/v3"
)

// HistoryList prints past generations, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	hist, err := r.history()
	if err != nil {
		return err
	}

	sessions, err := hist.List(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(sessions, true)
	}

	if len(sessions) == 0 {
		return r.writePlain("No history yet. Run 'djai generate'.\n")
	}

	for i, s := range sessions {
		r.writePlain("%d. %s (%d tracks)\n", i+1, s.Result.PlaylistName, len(s.Result.Entries))
		r.writePlain("   ID: %s\n", s.ID)
		r.writePlain("   Created: %s\n", s.CreatedAt.Local().Format(time.DateTime))
		r.writePlain("   Seeds: %s\n", seedSummary(s.SeedTracks))
		if s.Prompt != "" {
			r.writePlain("   Prompt: %s\n", s.Prompt)
		}
		if s.Result.Playlist != nil {
			r.writePlain("   Saved: %s\n", s.Result.Playlist.ExternalURLs.Spotify)
		}
	}
	return nil
}

// HistoryShow renders one generation. For markdown, --output names a directory that also receives the cover image.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	session, err := r.findSession(ctx, cmd)
	if err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if format == formatter.Markdown && output != "" {
		res, err := formatter.WriteMarkdownExport(session, output, r.output)
		if err != nil {
			return err
		}
		for _, f := range res.Files {
			r.writePlain("✓ Wrote %s\n", f)
		}
		return nil
	}

	return r.writeSession(format, session, output)
}

// HistoryRestore makes a past generation the current one, along with its seeds and draft.
func (r *Runner) HistoryRestore(ctx context.Context, cmd *cli.Command) error {
	session, err := r.findSession(ctx, cmd)
	if err != nil {
		return err
	}

	client, err := r.client()
	if err != nil {
		return err
	}
	if err := client.Apply(ctx, *session); err != nil {
		return err
	}

	r.logger.Info("history restored", "id", session.ID)
	return r.writePlain("✓ Restored %s (%d tracks)\n", session.Result.PlaylistName, len(session.Result.Entries))
}

// HistoryRemove deletes one generation.
func (r *Runner) HistoryRemove(ctx context.Context, cmd *cli.Command) error {
	session, err := r.findSession(ctx, cmd)
	if err != nil {
		return err
	}

	hist, err := r.history()
	if err != nil {
		return err
	}
	if err := hist.Remove(ctx, session.ID); err != nil {
		return err
	}
	return r.writePlain("✓ Removed %s\n", session.Result.PlaylistName)
}

// HistoryClear deletes every generation. The current playlist is kept.
func (r *Runner) HistoryClear(ctx context.Context, cmd *cli.Command) error {
	hist, err := r.history()
	if err != nil {
		return err
	}
	if err := hist.Clear(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ History cleared\n")
}

// findSession resolves the ref argument, an id or a 1-based position.
func (r *Runner) findSession(ctx context.Context, cmd *cli.Command) (*models.GenerationSession, error) {
	ref := strings.TrimSpace(cmd.StringArg("ref"))
	if ref == "" {
		return nil, fmt.Errorf("%w: history id or position is required", shared.ErrMissingArgument)
	}

	hist, err := r.history()
	if err != nil {
		return nil, err
	}
	return hist.Find(ctx, ref)
}

func seedSummary(seeds []models.Track) string {
	parts := make([]string, 0, len(seeds))
	for _, t := range seeds {
		parts = append(parts, t.Title)
	}
	return strings.Join(parts, ", ")
}
