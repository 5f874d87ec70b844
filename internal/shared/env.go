package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override config file values.
const (
	EnvSpotifyClientID = "SYM_SPOTIFY_CLIENT_ID"
	EnvGetSongBPMKey   = "SYM_GETSONGBPM_API_KEY"
	EnvDatabasePath    = "SYM_DATABASE_PATH"
)

// LoadEnv loads the given dotenv files (default ".env") into the process environment.
//
// Missing files are ignored; variables already set are not overwritten.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays set environment variables onto c.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvSpotifyClientID); ok && v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v, ok := os.LookupEnv(EnvGetSongBPMKey); ok && v != "" {
		c.Credentials.GetSongBPM.APIKey = v
	}
	if v, ok := os.LookupEnv(EnvDatabasePath); ok && v != "" {
		c.Database.Path = v
	}
}
