// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand creates the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml from the template, initialize the database, and run migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent migration instead",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in through the browser (authorization code with PKCE)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening it",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the redirect",
						Value: loginTimeout,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "complete",
				Usage: "Finish a login from a pasted redirect URL",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Action: r.AuthComplete,
			},
			{
				Name:  "status",
				Usage: "Show the current session state",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Exchange the refresh token for a new access token",
				Action: r.AuthRefresh,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored session",
				Action: r.AuthLogout,
			},
		},
	}
}

func playlistFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "id",
			Usage:    "Playlist ID or URL",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, csv, markdown, json",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the table to a file instead of stdout",
		},
		&cli.BoolFlag{
			Name:  "report",
			Usage: "Print the per-source load report",
		},
	}
}

// playlistCommand handles playlist loading, sorting, and saving.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Load, sort, and reorder playlists",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Load a playlist with album, audio feature, and tempo data",
				Flags:  playlistFlags(),
				Action: r.PlaylistShow,
			},
			{
				Name:  "sort",
				Usage: "Sort a playlist and optionally save the order back",
				Flags: append(playlistFlags(),
					&cli.StringFlag{
						Name:    "key",
						Aliases: []string{"k"},
						Usage:   "Sort key: index, title, artist, release, length, popularity, bpm, energy, dance, loud, valence, acoustic, separation, random",
						Value:   "index",
					},
					&cli.BoolFlag{
						Name:  "desc",
						Usage: "Sort descending",
					},
					&cli.StringFlag{
						Name:  "seed",
						Usage: "Seed for the random order (unsigned integer)",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Reorder the playlist upstream to match",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Print the planned moves without writing",
					},
				),
				Action: r.PlaylistSort,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive playlist sorting.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive playlist table",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "id",
				Usage: "Playlist ID or URL to open",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where logs go while the TUI is running",
				Value: "./tmp/sym-tui.log",
			},
		},
		Action: r.TUI,
	}
}
