package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/djai/internal/repositories"
	"github.com/desertthunder/djai/internal/server"
	"github.com/desertthunder/djai/internal/shared"
	"github.com/desertthunder/djai/internal/state"
	"github.com/desertthunder/djai/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve runs the web backend until interrupted.
//
// Sessions always live in the database. Client state does too unless --ephemeral-state is set.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set", shared.ErrMissingCredentials)
	}
	if r.recommender == nil {
		r.logger.Warn("OpenAI service not initialized; generation endpoints will fail")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := shared.OpenDatabase(ctx, r.config.Database, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var states state.Owners = repositories.NewStateRepository(db)
	if cmd.Bool("ephemeral-state") {
		states = state.NewMemoryOwners()
	}

	app := web.New(web.Options{
		Spotify:           r.spotify,
		Recommender:       r.recommender,
		Sessions:          repositories.NewSessionRepository(db),
		States:            states,
		Logger:            shared.WithLogger(r.logger, "component", "web"),
		PublicURL:         r.config.Server.PublicURL,
		SecureCookies:     r.config.Server.SecureCookies,
		SearchConcurrency: r.config.Generation.SearchConcurrency,
	})

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	return server.Serve(ctx, addr, app, r.logger)
}
