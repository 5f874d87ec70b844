package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alpsaur/SortYourMusic/internal/auth"
	"github.com/alpsaur/SortYourMusic/internal/repositories"
	"github.com/alpsaur/SortYourMusic/internal/shared"
	"github.com/alpsaur/SortYourMusic/internal/tasks"
	tu "github.com/alpsaur/SortYourMusic/internal/testing"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			store := repositories.NewMemoryStore()

			runner := NewRunner(RunnerOpts{
				Config: config,
				Logger: logger,
				Output: output,
				Store:  store,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.store != store {
				t.Error("expected store to be set")
			}
		})

		t.Run("with nil config waits for before", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config != nil {
				t.Error("expected config to stay nil until loaded")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Logger: nil,
			})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: nil,
			})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil browser opener uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.openBrowser == nil {
				t.Error("expected a browser opener")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				ConfigPath: "/test/path/config.toml",
			})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			data := map[string]string{"key": "value"}
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("writes plain text without formatting", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("simple text")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "simple text" {
				t.Errorf("expected 'simple text', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("missing file uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				ConfigPath: filepath.Join(t.TempDir(), "missing.toml"),
				Logger:     shared.NewLogger(io.Discard),
			})

			config, err := runner.loadConfig()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if config.Write.MaxRange != 100 {
				t.Errorf("expected default max range, got %d", config.Write.MaxRange)
			}
		})

		t.Run("reads the file and applies env", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			config := shared.DefaultConfig()
			config.Server.Port = 4242
			if err := shared.SaveConfig(path, config); err != nil {
				t.Fatalf("SaveConfig failed: %v", err)
			}
			t.Setenv(shared.EnvSpotifyClientID, "from-env")

			runner := NewRunner(RunnerOpts{ConfigPath: path, Logger: shared.NewLogger(io.Discard)})
			loaded, err := runner.loadConfig()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if loaded.Server.Port != 4242 {
				t.Errorf("expected port from file, got %d", loaded.Server.Port)
			}
			if loaded.Credentials.Spotify.ClientID != "from-env" {
				t.Errorf("expected client id from env, got %q", loaded.Credentials.Spotify.ClientID)
			}
		})

		t.Run("malformed file is invalid config", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("[write\nmax_range = "), 0o644); err != nil {
				t.Fatal(err)
			}
			runner := NewRunner(RunnerOpts{ConfigPath: path, Logger: shared.NewLogger(io.Discard)})
			if _, err := runner.loadConfig(); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})

	t.Run("ensureMachine", func(t *testing.T) {
		t.Run("rejects placeholder credentials", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config: shared.DefaultConfig(),
				Store:  repositories.NewMemoryStore(),
				Logger: shared.NewLogger(io.Discard),
			})
			if err := runner.ensureMachine(context.Background()); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("restores a persisted session", func(t *testing.T) {
			store := repositories.NewMemoryStore()
			putSession(t, store, time.Now().Add(time.Hour))
			runner := newTestRunner(t, testConfig("http://127.0.0.1:1/"), store, &bytes.Buffer{})

			if err := runner.ensureMachine(context.Background()); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.machine.State() != auth.LoggedIn {
				t.Errorf("expected LoggedIn, got %s", runner.machine.State())
			}
			if err := runner.requireLogin(context.Background()); err != nil {
				t.Errorf("expected a usable session, got %v", err)
			}
		})

		t.Run("opens the database when no store is injected", func(t *testing.T) {
			config := testConfig("http://127.0.0.1:1/")
			config.Database.Path = filepath.Join(t.TempDir(), "sym.db")
			runner := newTestRunner(t, config, nil, &bytes.Buffer{})
			defer runner.Close()

			if err := runner.ensureMachine(context.Background()); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.db == nil || runner.store == nil {
				t.Fatal("expected a database-backed store")
			}
			if runner.machine.State() != auth.LoggedOut {
				t.Errorf("expected LoggedOut, got %s", runner.machine.State())
			}
			if err := runner.requireLogin(context.Background()); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})
	})

	t.Run("SetLogger", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		logger := shared.NewLogger(io.Discard)
		runner.SetLogger(logger)
		if runner.logger != logger {
			t.Error("expected logger to be replaced")
		}
	})
}

func TestExitCode(t *testing.T) {
	runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})

	tc := []struct {
		name string
		err  error
		want int
	}{
		{"not authenticated", fmt.Errorf("%w: run login", shared.ErrNotAuthenticated), 2},
		{"token expired", shared.ErrTokenExpired, 2},
		{"partial write", &tasks.WriteBackError{Applied: 1, Total: 3, Err: shared.ErrWriteConflict}, 3},
		{"missing credentials", shared.ErrMissingCredentials, 2},
		{"invalid config", shared.ErrInvalidConfig, 2},
		{"other", errors.New("boom"), 1},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(runner, tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestBefore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	config := shared.DefaultConfig()
	config.Write.MaxRange = 7
	if err := shared.SaveConfig(path, config); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	logger := shared.NewLogger(io.Discard)
	runner := NewRunner(RunnerOpts{ConfigPath: "config.toml", Logger: logger})
	app := newApp(runner)
	app.Commands = []*cli.Command{{Name: "noop", Action: func(context.Context, *cli.Command) error { return nil }}}

	if err := app.Run(context.Background(), []string{"sym", "--verbose", "--config", path, "noop"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if runner.configPath != path {
		t.Errorf("expected config path %s, got %s", path, runner.configPath)
	}
	if runner.config == nil || runner.config.Write.MaxRange != 7 {
		t.Errorf("expected config loaded from %s, got %+v", path, runner.config)
	}
	if logger.GetLevel() != log.DebugLevel {
		t.Errorf("expected debug level, got %s", logger.GetLevel())
	}
}
