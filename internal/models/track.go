package models

import "strings"

// Track is one playlist entry as fetched from the primary provider.
type Track struct {
	ID               string   `json:"id"`
	URI              string   `json:"uri"`
	Title            string   `json:"title"`
	Artists          []string `json:"artists"`
	AlbumID          string   `json:"album_id"`
	DurationMs       int      `json:"duration_ms"`
	Popularity       int      `json:"popularity"`
	OriginalPosition int      `json:"original_position"`
	IsLocal          bool     `json:"is_local,omitempty"`
	IsEpisode        bool     `json:"is_episode,omitempty"`
}

// Identity returns the provider id, falling back to the URI for local files.
func (t Track) Identity() string {
	if t.ID != "" {
		return t.ID
	}
	return t.URI
}

// PrimaryArtist returns the first credited artist, or "" when none.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// ArtistLine joins all credited artists for display.
func (t Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// AlbumInfo is release metadata for one album.
type AlbumInfo struct {
	AlbumID     string `json:"album_id"`
	ReleaseDate string `json:"release_date"`
}

// Measure is an optional numeric field; the zero value is unknown.
type Measure struct {
	Value float64 `json:"value"`
	Known bool    `json:"known"`
}

// Known wraps v as a known measure.
func Known(v float64) Measure {
	return Measure{Value: v, Known: true}
}

// FeatureSet holds audio features for one track.
//
// Energy, Danceability, Valence, and Acousticness are on a 0-100 scale; Loudness is in dB.
type FeatureSet struct {
	TrackID      string  `json:"track_id"`
	Tempo        Measure `json:"tempo"`
	Energy       Measure `json:"energy"`
	Danceability Measure `json:"danceability"`
	Loudness     Measure `json:"loudness"`
	Valence      Measure `json:"valence"`
	Acousticness Measure `json:"acousticness"`
}

// Empty reports whether no field is known.
func (f FeatureSet) Empty() bool {
	return !f.Tempo.Known && !f.Energy.Known && !f.Danceability.Known &&
		!f.Loudness.Known && !f.Valence.Known && !f.Acousticness.Known
}
