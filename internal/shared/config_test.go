package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./sym.db" {
			t.Errorf("expected database path ./sym.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Server.Addr() != "127.0.0.1:3000" {
			t.Errorf("expected addr 127.0.0.1:3000, got %s", config.Server.Addr())
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if len(config.Credentials.Spotify.Scopes) != 4 {
			t.Errorf("expected 4 default scopes, got %v", config.Credentials.Spotify.Scopes)
		}

		if config.Fetch.SourceTimeout.Duration != 30*time.Second {
			t.Errorf("expected source timeout 30s, got %v", config.Fetch.SourceTimeout)
		}

		if config.Fetch.RetryBase.Duration != 500*time.Millisecond {
			t.Errorf("expected retry base 500ms, got %v", config.Fetch.RetryBase)
		}

		if config.Write.MaxRange != 100 {
			t.Errorf("expected max range 100, got %d", config.Write.MaxRange)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
redirect_uri = "http://localhost:8080/callback"

[credentials.getsongbpm]
api_key = "bpm_key"

[fetch]
lookup_timeout = "2s"
bpm_concurrency = 2
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Server.Port != 8080 {
			t.Errorf("expected port 8080, got %d", config.Server.Port)
		}
		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.GetSongBPM.APIKey != "bpm_key" {
			t.Errorf("expected api key bpm_key, got %s", config.Credentials.GetSongBPM.APIKey)
		}
		if config.Fetch.LookupTimeout.Duration != 2*time.Second {
			t.Errorf("expected lookup timeout 2s, got %v", config.Fetch.LookupTimeout)
		}
		if config.Fetch.BPMConcurrency != 2 {
			t.Errorf("expected bpm concurrency 2, got %d", config.Fetch.BPMConcurrency)
		}

		t.Run("keeps defaults for omitted keys", func(t *testing.T) {
			if config.Fetch.RetryAttempts != 3 {
				t.Errorf("expected default retry attempts 3, got %d", config.Fetch.RetryAttempts)
			}
			if config.Credentials.GetSongBPM.BaseURL != "https://api.getsong.co" {
				t.Errorf("expected default bpm base url, got %s", config.Credentials.GetSongBPM.BaseURL)
			}
		})
	})

	t.Run("LoadConfig errors", func(t *testing.T) {
		if _, err := LoadConfig("/nonexistent/config.toml"); err == nil {
			t.Error("expected error for missing file")
		}

		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "bad.toml")
		if err := os.WriteFile(configPath, []byte("[fetch]\nsource_timeout = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected error for invalid duration")
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "saved.toml")

		config := DefaultConfig()
		config.Credentials.Spotify.ClientID = "saved_id"
		config.Fetch.LookupTimeout = Duration{7 * time.Second}

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if loaded.Credentials.Spotify.ClientID != "saved_id" {
			t.Errorf("expected saved_id, got %s", loaded.Credentials.Spotify.ClientID)
		}
		if loaded.Fetch.LookupTimeout.Duration != 7*time.Second {
			t.Errorf("expected 7s, got %v", loaded.Fetch.LookupTimeout)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.Validate(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials for placeholder client id, got %v", err)
		}

		config.Credentials.Spotify.ClientID = "real"
		if err := config.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}

		config.Write.MaxRange = 0
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestEnv(t *testing.T) {
	t.Run("ApplyEnv overrides", func(t *testing.T) {
		t.Setenv(EnvSpotifyClientID, "env_client")
		t.Setenv(EnvDatabasePath, "/tmp/env.db")

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Credentials.Spotify.ClientID != "env_client" {
			t.Errorf("expected env_client, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Database.Path != "/tmp/env.db" {
			t.Errorf("expected /tmp/env.db, got %s", config.Database.Path)
		}
		if config.Credentials.GetSongBPM.APIKey != "" {
			t.Errorf("expected bpm key untouched, got %s", config.Credentials.GetSongBPM.APIKey)
		}
	})

	t.Run("LoadEnv reads file and ignores missing", func(t *testing.T) {
		tmpDir := t.TempDir()
		envPath := filepath.Join(tmpDir, ".env")
		if err := os.WriteFile(envPath, []byte(EnvGetSongBPMKey+"=from_file\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv(EnvGetSongBPMKey, "")
		os.Unsetenv(EnvGetSongBPMKey)

		if err := LoadEnv(filepath.Join(tmpDir, "missing.env"), envPath); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := os.Getenv(EnvGetSongBPMKey); got != "from_file" {
			t.Errorf("expected from_file, got %q", got)
		}
	})
}
