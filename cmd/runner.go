package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djai/internal/auth"
	"github.com/desertthunder/djai/internal/history"
	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/services"
	"github.com/desertthunder/djai/internal/shared"
	"github.com/desertthunder/djai/internal/state"
	"github.com/desertthunder/djai/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	spotify     *services.SpotifyService
	recommender services.Recommender
	store       state.Store
	tokens      *auth.CredentialStore
	logger      *log.Logger
	output      io.Writer
	openBrowser func(url string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Spotify     *services.SpotifyService
	Recommender services.Recommender
	State       state.Store
	Logger      *log.Logger
	Output      io.Writer
	OpenBrowser func(url string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		spotify:     opts.Spotify,
		recommender: opts.Recommender,
		store:       opts.State,
		logger:      opts.Logger,
		output:      opts.Output,
		openBrowser: opts.OpenBrowser,
	}
}

// Configure loads the file named by the root --config flag, applies environment overrides and
// builds whichever services were not injected. A missing config file keeps the defaults.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	r.config.ApplyEnv(nil)
	if err := shared.SetLogLevel(r.logger, r.config.Logging.Level); err != nil {
		r.logger.Warn("ignoring log level", "error", err)
	}

	if r.spotify == nil {
		if svc, err := services.NewSpotifyService(r.config.Credentials.Spotify.Map()); err == nil {
			r.spotify = svc
		} else {
			r.logger.Debug("spotify service unavailable", "error", err)
		}
	}

	if r.recommender == nil {
		openAI := r.config.Credentials.OpenAI
		if svc, err := services.NewOpenAIService(services.OpenAIOptions{
			APIKey:     openAI.APIKey,
			Model:      openAI.Model,
			BaseURL:    openAI.BaseURL,
			Timeout:    openAI.Timeout(),
			MaxRetries: openAI.MaxRetries,
			Logger:     shared.WithLogger(r.logger, "service", "openai"),
		}); err == nil {
			r.recommender = svc
		} else {
			r.logger.Debug("openai service unavailable", "error", err)
		}
	}

	return ctx, nil
}

// SetLogger replaces the logger, e.g. with a file logger while a TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, searchCommand, generateCommand, reviewCommand, saveCommand, historyCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// saveCredential stores cred in the config and, when a config path is known, writes it to disk.
func (r *Runner) saveCredential(cred models.Credential) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}

	if err := r.config.Credentials.Spotify.Update(cred.AccessToken, cred.RefreshToken, cred.ExpiresAt); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if r.configPath == "" {
		return nil
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// credentials returns the token store for the logged-in user. Rotated tokens are written back to the config.
func (r *Runner) credentials() (*auth.CredentialStore, error) {
	if r.tokens != nil {
		return r.tokens, nil
	}
	if r.spotify == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	sp := r.config.Credentials.Spotify
	if !sp.HasToken() {
		return nil, fmt.Errorf("%w: run 'djai auth login' first", shared.ErrNotAuthenticated)
	}

	store := auth.NewCredentialStore(models.Credential{
		AccessToken:  sp.AccessToken,
		RefreshToken: sp.RefreshToken,
		ExpiresAt:    sp.ExpiresAt,
	}, r.spotify.Refresher())
	store.OnRefresh = func(_ context.Context, cred models.Credential) error {
		r.logger.Debug("spotify token refreshed", "expires_at", cred.ExpiresAt)
		return r.saveCredential(cred)
	}

	r.tokens = store
	return store, nil
}

func (r *Runner) catalog() (*services.SpotifyService, error) {
	tokens, err := r.credentials()
	if err != nil {
		return nil, err
	}
	return r.spotify.ForTokens(tokens), nil
}

// engine builds the pipeline with the current logger. The recommender may be nil for save-only use.
func (r *Runner) engine() (*tasks.PlaylistEngine, error) {
	catalog, err := r.catalog()
	if err != nil {
		return nil, err
	}
	return tasks.NewPlaylistEngine(catalog, r.recommender, r.logger, r.config.Generation.SearchConcurrency), nil
}

// clientStore returns the client-state store, creating the file store under [state] dir on first use.
func (r *Runner) clientStore() (state.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	store, err := state.NewFileStore(shared.ExpandPath(r.config.State.Dir))
	if err != nil {
		return nil, err
	}
	r.store = store
	return store, nil
}

func (r *Runner) client() (*state.Client, error) {
	store, err := r.clientStore()
	if err != nil {
		return nil, err
	}
	return state.NewClient(store), nil
}

func (r *Runner) history() (*history.History, error) {
	store, err := r.clientStore()
	if err != nil {
		return nil, err
	}
	return history.New(store), nil
}

// printProgress drains progress until it is closed; done is closed afterwards.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	defer close(done)
	for update := range progress {
		switch update.Phase {
		case tasks.Recommend, tasks.CreatePlaylist, tasks.AddTracks:
			r.writePlain("→ %s\n", update.Message)
		case tasks.SearchTracks:
			r.writePlain("   %s\n", update.Message)
		}
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// writeEntries prints a numbered track listing.
func (r *Runner) writeEntries(entries []models.ResolvedEntry) {
	for i, e := range entries {
		r.writePlain("%2d. %s - %s\n", i+1, e.Track.Title, e.Track.ArtistNames())
		if e.Reason != "" && e.Reason != models.SeedReason {
			r.writePlain("    %s\n", e.Reason)
		}
	}
}
