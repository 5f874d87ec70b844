package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/alpsaur/SortYourMusic/internal/shared"
	"github.com/alpsaur/SortYourMusic/internal/tasks"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger, ConfigPath: "config.toml"})

	app := newApp(runner)
	err := app.Run(context.Background(), os.Args)
	runner.Close()
	if err != nil {
		os.Exit(exitCode(runner, err))
	}
}

// newApp builds the root command with the runner's subcommands.
func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "sym",
		Usage:   "Sort your playlists by tempo, energy, artist separation, and more",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   runner.before,
		Commands: runner.register(),
	}
}

// exitCode prints err with a hint where one helps and returns the process exit status.
func exitCode(r *Runner, err error) int {
	var wbErr *tasks.WriteBackError
	switch {
	case errors.Is(err, shared.ErrTokenExpired), errors.Is(err, shared.ErrNotAuthenticated):
		r.logger.Error("authentication required", "error", err)
		fmt.Fprintln(os.Stderr, "→ Run 'sym auth login' to sign in again.")
		return 2
	case errors.As(err, &wbErr):
		r.logger.Error("save stopped part way", "applied", wbErr.Applied, "total", wbErr.Total, "snapshot", wbErr.SnapshotID, "error", wbErr.Err)
		fmt.Fprintln(os.Stderr, "→ The playlist is left in the order after the last applied move. Re-run the sort to finish.")
		return 3
	case errors.Is(err, shared.ErrMissingCredentials), errors.Is(err, shared.ErrInvalidConfig):
		r.logger.Error("configuration error", "error", err)
		fmt.Fprintln(os.Stderr, "→ Run 'sym setup' and fill in config.toml.")
		return 2
	default:
		r.logger.Errorf("application error: %v", err)
		return 1
	}
}
