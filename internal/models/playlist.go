package models

import (
	"fmt"
	"net/url"
	"strings"
)

// ParsePlaylistID accepts a bare playlist id, a spotify:playlist: URI, or an open.spotify.com link.
func ParsePlaylistID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty playlist id")
	}
	if rest, ok := strings.CutPrefix(s, "spotify:playlist:"); ok {
		s = rest
	} else if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("bad playlist link: %w", err)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) < 2 || parts[len(parts)-2] != "playlist" {
			return "", fmt.Errorf("%q is not a playlist link", s)
		}
		s = parts[len(parts)-1]
	}
	if s == "" || strings.ContainsAny(s, "/:?# ") {
		return "", fmt.Errorf("bad playlist id %q", s)
	}
	return s, nil
}
