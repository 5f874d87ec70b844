package services

import (
	"context"

	"github.com/alpsaur/SortYourMusic/internal/models"
)

// Batch limits imposed by the catalog API.
const (
	AlbumBatchSize   = 20
	FeatureBatchSize = 100
	PageSize         = 100
)

// TrackPage is one page of playlist items. Next is empty when there are no further pages.
type TrackPage struct {
	Tracks []models.Track
	Next   string
	Total  int
}

// PlaylistInfo is playlist metadata, including the revision token required for writes.
type PlaylistInfo struct {
	ID         string
	Name       string
	SnapshotID string
	Total      int
}

// TrackProvider is the primary track/playlist source.
type TrackProvider interface {
	// FetchTracksPage returns the page at cursor ("" for the first page).
	FetchTracksPage(ctx context.Context, token, playlistID, cursor string) (TrackPage, error)

	// FetchPlaylist returns playlist metadata.
	FetchPlaylist(ctx context.Context, token, playlistID string) (PlaylistInfo, error)
}

// AlbumProvider batch-fetches release metadata.
type AlbumProvider interface {
	FetchAlbums(ctx context.Context, token string, albumIDs []string) ([]models.AlbumInfo, error)
}

// FeatureProvider batch-fetches audio features.
type FeatureProvider interface {
	FetchFeatures(ctx context.Context, token string, trackIDs []string) ([]models.FeatureSet, error)
}

// BPMProvider looks up a single track's tempo by name.
type BPMProvider interface {
	LookupBPM(ctx context.Context, artist, title string) (float64, error)
}

// Reorderer moves a contiguous range within a playlist and returns the new snapshot token.
type Reorderer interface {
	Reorder(ctx context.Context, token, playlistID string, move models.Move, snapshotID string) (string, error)
}

// ExpiryNotifier is told when upstream rejects a bearer token.
type ExpiryNotifier interface {
	Expire(cause error)
}
