// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml template at the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles the Spotify login stored in the config file.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Spotify in the browser and store the tokens",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the logged-in Spotify account",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored Spotify tokens",
				Action: r.AuthLogout,
			},
		},
	}
}

// searchCommand searches the catalog for seed tracks.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search Spotify for tracks to use as seeds",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of tracks to return",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "select",
				Usage: "Toggle the first result in the seed selection",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Search,
	}
}

// generateCommand runs the recommendation pipeline.
func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen"},
		Usage:   "Generate a playlist from 1-5 seed tracks",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "seed",
				Aliases: []string{"s"},
				Usage:   "Spotify track ID to seed from (repeatable; defaults to the saved selection)",
			},
			&cli.StringFlag{
				Name:    "prompt",
				Aliases: []string{"p"},
				Usage:   "Free-text guidance for the recommendations",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Number of recommendations to request (1-50)",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Save the playlist to Spotify right away",
			},
			&cli.BoolFlag{
				Name:  "review",
				Usage: "Open the result in the review screen",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, markdown, csv, json",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the formatted result to a file",
			},
		},
		Action: r.Generate,
	}
}

// reviewCommand reopens the current generation in the TUI.
func reviewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "review",
		Aliases: []string{"ui"},
		Usage:   "Reorder, remove and save tracks of the current playlist interactively",
		Action:  r.Review,
	}
}

// saveCommand saves the current generation.
func saveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Save the current playlist to Spotify",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "name",
				Usage: "Override the generated playlist name",
			},
		},
		Action: r.Save,
	}
}

// historyCommand manages past generations.
func historyCommand(r *Runner) *cli.Command {
	refArg := func() []cli.Argument {
		return []cli.Argument{&cli.StringArg{Name: "ref"}}
	}

	return &cli.Command{
		Name:  "history",
		Usage: "Browse the last 10 generations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List past generations, newest first",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show a generation by ID or position",
				Arguments: refArg(),
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, markdown, csv, json",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file (a directory with README.md and cover.jpg for markdown)",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:      "restore",
				Usage:     "Make a past generation the current playlist",
				Arguments: refArg(),
				Action:    r.HistoryRestore,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Delete one generation",
				Arguments: refArg(),
				Action:    r.HistoryRemove,
			},
			{
				Name:   "clear",
				Usage:  "Delete all generations",
				Action: r.HistoryClear,
			},
		},
	}
}

// serveCommand runs the web backend.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the JSON backend for the browser client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to [server] host:port)",
			},
			&cli.BoolFlag{
				Name:  "ephemeral-state",
				Usage: "Keep client state in memory instead of the database",
			},
		},
		Action: r.Serve,
	}
}
