package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alpsaur/SortYourMusic/internal/auth"
	"github.com/alpsaur/SortYourMusic/internal/repositories"
	"github.com/alpsaur/SortYourMusic/internal/services"
	"github.com/alpsaur/SortYourMusic/internal/shared"
	"github.com/alpsaur/SortYourMusic/internal/tasks"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The store, auth machine, and engine are built on first use from the loaded config unless injected.
type Runner struct {
	config      *shared.Config
	configPath  string
	store       auth.Store
	machine     *auth.Machine
	engine      *tasks.PlaylistEngine
	db          *sql.DB
	logger      *log.Logger
	output      io.Writer
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Store       auth.Store
	Machine     *auth.Machine
	Engine      *tasks.PlaylistEngine
	Logger      *log.Logger
	Output      io.Writer
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
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
		store:       opts.Store,
		machine:     opts.Machine,
		engine:      opts.Engine,
		logger:      opts.Logger,
		output:      opts.Output,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before runs ahead of every command: it applies --verbose, loads .env, and loads the config file.
//
// A missing config file falls back to the embedded defaults so setup can run first.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if err := shared.LoadEnv(); err != nil {
		r.logger.Warn("failed to load .env", "error", err)
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.config == nil {
		config, err := r.loadConfig()
		if err != nil {
			return ctx, err
		}
		r.config = config
	}
	return ctx, nil
}

func (r *Runner) loadConfig() (*shared.Config, error) {
	var config *shared.Config
	if _, err := os.Stat(r.configPath); err == nil {
		if config, err = shared.LoadConfig(r.configPath); err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
		}
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		config = shared.DefaultConfig()
	}
	config.ApplyEnv()
	return config, nil
}

// ensureMachine builds the durable store and the auth state machine, then restores any persisted Session.
func (r *Runner) ensureMachine(ctx context.Context) error {
	if r.machine != nil {
		return nil
	}
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	if r.store == nil {
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return err
		}
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		r.db, r.store = db, repositories.NewKVRepository(db)
	}

	sp := r.config.Credentials.Spotify
	machine, err := auth.NewMachine(auth.Options{
		ClientID:    sp.ClientID,
		RedirectURI: sp.RedirectURI,
		Scopes:      sp.Scopes,
		AuthURL:     sp.AuthURL,
		TokenURL:    sp.TokenURL,
		Store:       r.store,
		Logger:      r.logger,
	})
	if err != nil {
		return err
	}

	state, err := machine.Restore(ctx)
	if err != nil {
		return err
	}
	r.logger.Debug("session restored", "state", state)
	r.machine = machine
	return nil
}

// ensureEngine builds the provider clients and the [tasks.PlaylistEngine] on top of [Runner.ensureMachine].
func (r *Runner) ensureEngine(ctx context.Context) error {
	if r.engine != nil {
		return nil
	}
	if err := r.ensureMachine(ctx); err != nil {
		return err
	}

	fetch := r.config.Fetch
	spotify := services.NewSpotifyService(services.SpotifyOptions{
		BaseURL:  r.config.Credentials.Spotify.APIURL,
		Notifier: r.machine,
		Logger:   r.logger,
		Retry: services.RetryPolicy{
			Attempts: fetch.RetryAttempts,
			Base:     fetch.RetryBase.Duration,
			Max:      fetch.RetryBase.Duration * 16,
		},
	})

	opts := tasks.Options{
		Tokens:         r.machine,
		Tracks:         spotify,
		Albums:         spotify,
		Features:       spotify,
		Reorderer:      spotify,
		Logger:         r.logger,
		SourceTimeout:  fetch.SourceTimeout.Duration,
		LookupTimeout:  fetch.LookupTimeout.Duration,
		BPMConcurrency: fetch.BPMConcurrency,
		MaxRange:       r.config.Write.MaxRange,
	}

	if bpm := r.config.Credentials.GetSongBPM; bpm.APIKey != "" {
		opts.BPM = services.NewGetSongBPMService(services.BPMOptions{
			APIKey:        bpm.APIKey,
			BaseURL:       bpm.BaseURL,
			Timeout:       fetch.LookupTimeout.Duration,
			RetryAttempts: max(fetch.RetryAttempts-1, 0),
			RetryWait:     fetch.RetryBase.Duration,
			Rate:          fetch.BPMRate,
			Logger:        r.logger,
		})
	} else {
		r.logger.Debug("no getsongbpm api key, fallback tempo lookups disabled")
	}

	engine, err := tasks.NewPlaylistEngine(opts)
	if err != nil {
		return err
	}
	r.engine = engine
	return nil
}

// requireLogin returns [shared.ErrNotAuthenticated] unless a usable Session exists.
func (r *Runner) requireLogin(ctx context.Context) error {
	if _, err := r.machine.Token(ctx); err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) || errors.Is(err, shared.ErrRefreshFailed) {
			return fmt.Errorf("%w: run 'sym auth login' first", shared.ErrNotAuthenticated)
		}
		return err
	}
	return nil
}

// Close releases the database, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// SetLogger replaces the logger for subsequently built components.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
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
