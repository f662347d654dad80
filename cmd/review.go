package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
	"github.com/desertthunder/djai/internal/state"
	"github.com/desertthunder/djai/internal/ui"
	"github.com/urfave/cli/v3"
)

// Review reopens the current generation in the interactive review screen.
func (r *Runner) Review(ctx context.Context, cmd *cli.Command) error {
	client, err := r.client()
	if err != nil {
		return err
	}

	result, err := client.Generated(ctx)
	if err != nil {
		return fmt.Errorf("%w: run 'djai generate' first", err)
	}
	seeds, err := client.SelectedTracks(ctx)
	if err != nil {
		return err
	}
	draft, err := client.Draft(ctx)
	if err != nil {
		return err
	}

	return r.runReview(ctx, client, result, seeds, draft.Prompt)
}

// runReview runs the TUI over result. Edits are written back to client state as they happen.
func (r *Runner) runReview(ctx context.Context, client *state.Client, result *models.GenerationResult, seeds []models.Track, prompt string) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(shared.ExpandPath(r.config.Logging.File))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	engine, err := r.engine()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, ui.Options{
		Result: result,
		Seeds:  seeds,
		Prompt: prompt,
		Saver:  engine,
		Persist: func(res *models.GenerationResult) error {
			return client.SetGenerated(ctx, res)
		},
	})

	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if saved := model.Saved(); saved != nil {
		r.writePlain("✓ Saved %s\n  %s\n", saved.Name, saved.ExternalURLs.Spotify)
	}
	return model.Err()
}
