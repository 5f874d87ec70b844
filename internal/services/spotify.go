package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/alpsaur/SortYourMusic/internal/models"
	"github.com/alpsaur/SortYourMusic/internal/shared"
	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// SpotifyOptions configures a [SpotifyService].
type SpotifyOptions struct {
	BaseURL    string // API root; defaults to the public Web API
	HTTPClient *http.Client
	Notifier   ExpiryNotifier
	Logger     *log.Logger
	Retry      RetryPolicy
	PageSize   int
}

// SpotifyService is the catalog client: playlist items, albums, audio features, and reorders.
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
	notifier   ExpiryNotifier
	logger     *log.Logger
	retry      RetryPolicy
	pageSize   int

	featuresDisabled atomic.Bool
}

// NewSpotifyService creates a new [SpotifyService].
func NewSpotifyService(opts SpotifyOptions) *SpotifyService {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = DefaultRetryPolicy
	}
	if opts.PageSize <= 0 || opts.PageSize > PageSize {
		opts.PageSize = PageSize
	}
	if opts.BaseURL != "" && !strings.HasSuffix(opts.BaseURL, "/") {
		opts.BaseURL += "/"
	}

	return &SpotifyService{
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		notifier:   opts.Notifier,
		logger:     shared.WithLogger(opts.Logger, "provider", "spotify"),
		retry:      opts.Retry,
		pageSize:   opts.PageSize,
	}
}

// SetNotifier replaces the [ExpiryNotifier].
func (s *SpotifyService) SetNotifier(n ExpiryNotifier) {
	s.notifier = n
}

// FeaturesDisabled reports whether the audio-feature endpoint has been written off for this process.
func (s *SpotifyService) FeaturesDisabled() bool {
	return s.featuresDisabled.Load()
}

// client builds a per-call API client bound to token.
func (s *SpotifyService) client(ctx context.Context, token string) *spotify.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))

	var opts []spotify.ClientOption
	if s.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(s.baseURL))
	}
	return spotify.New(hc, opts...)
}

// FetchTracksPage implements [TrackProvider]. The cursor is the item offset.
func (s *SpotifyService) FetchTracksPage(ctx context.Context, token, playlistID, cursor string) (TrackPage, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return TrackPage{}, fmt.Errorf("%w: bad cursor %q", shared.ErrInvalidArgument, cursor)
		}
		offset = n
	}

	c := s.client(ctx, token)
	var page *spotify.PlaylistItemPage
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		page, err = c.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(s.pageSize), spotify.Offset(offset))
		return s.classify("tracks", err)
	})
	if err != nil {
		return TrackPage{}, err
	}

	out := TrackPage{Tracks: make([]models.Track, 0, len(page.Items)), Total: int(page.Total)}
	for i, item := range page.Items {
		out.Tracks = append(out.Tracks, convertItem(item, offset+i))
	}
	if page.Next != "" && len(page.Items) > 0 {
		out.Next = strconv.Itoa(offset + len(page.Items))
	}
	return out, nil
}

// FetchPlaylist implements [TrackProvider].
func (s *SpotifyService) FetchPlaylist(ctx context.Context, token, playlistID string) (PlaylistInfo, error) {
	c := s.client(ctx, token)
	var pl *spotify.FullPlaylist
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		pl, err = c.GetPlaylist(ctx, spotify.ID(playlistID), spotify.Fields("id,name,snapshot_id,tracks.total"))
		return s.classify("playlist", err)
	})
	if err != nil {
		return PlaylistInfo{}, err
	}
	return PlaylistInfo{
		ID:         string(pl.ID),
		Name:       pl.Name,
		SnapshotID: pl.SnapshotID,
		Total:      int(pl.Tracks.Total),
	}, nil
}

// FetchAlbums implements [AlbumProvider].
func (s *SpotifyService) FetchAlbums(ctx context.Context, token string, albumIDs []string) ([]models.AlbumInfo, error) {
	if len(albumIDs) > AlbumBatchSize {
		return nil, fmt.Errorf("%w: %d album ids exceeds batch size %d", shared.ErrInvalidArgument, len(albumIDs), AlbumBatchSize)
	}
	if len(albumIDs) == 0 {
		return nil, nil
	}

	c := s.client(ctx, token)
	ids := lo.Map(albumIDs, func(id string, _ int) spotify.ID { return spotify.ID(id) })

	var albums []*spotify.FullAlbum
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		albums, err = c.GetAlbums(ctx, ids)
		return s.classify("albums", err)
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.AlbumInfo, 0, len(albums))
	for _, a := range albums {
		if a == nil || a.ID == "" {
			continue
		}
		out = append(out, models.AlbumInfo{AlbumID: string(a.ID), ReleaseDate: a.ReleaseDate})
	}
	return out, nil
}

// FetchFeatures implements [FeatureProvider].
//
// The first categorical rejection disables the endpoint; later calls fail fast without a request.
func (s *SpotifyService) FetchFeatures(ctx context.Context, token string, trackIDs []string) ([]models.FeatureSet, error) {
	if s.featuresDisabled.Load() {
		return nil, fmt.Errorf("%w: audio features disabled for this session", shared.ErrProviderUnavailable)
	}
	if len(trackIDs) > FeatureBatchSize {
		return nil, fmt.Errorf("%w: %d track ids exceeds batch size %d", shared.ErrInvalidArgument, len(trackIDs), FeatureBatchSize)
	}
	if len(trackIDs) == 0 {
		return nil, nil
	}

	c := s.client(ctx, token)
	ids := lo.Map(trackIDs, func(id string, _ int) spotify.ID { return spotify.ID(id) })

	var feats []*spotify.AudioFeatures
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		feats, err = c.GetAudioFeatures(ctx, ids...)
		return s.classify("features", err)
	})
	if err != nil {
		if errors.Is(err, shared.ErrProviderUnavailable) || errors.Is(err, shared.ErrPlaylistNotFound) {
			if s.featuresDisabled.CompareAndSwap(false, true) {
				s.logger.Warn("audio features endpoint rejected access, disabling for this session", "error", err)
			}
			return nil, fmt.Errorf("%w: audio features: %w", shared.ErrProviderUnavailable, err)
		}
		return nil, err
	}

	out := make([]models.FeatureSet, 0, len(feats))
	for _, f := range feats {
		if f == nil || f.ID == "" {
			continue
		}
		out = append(out, convertFeatures(f))
	}
	return out, nil
}

// Reorder implements [Reorderer]. Writes are never retried here.
func (s *SpotifyService) Reorder(ctx context.Context, token, playlistID string, move models.Move, snapshotID string) (string, error) {
	c := s.client(ctx, token)
	snap, err := c.ReorderPlaylistTracks(ctx, spotify.ID(playlistID), spotify.PlaylistReorderOptions{
		RangeStart:   spotify.Numeric(move.RangeStart),
		RangeLength:  spotify.Numeric(move.RangeLength),
		InsertBefore: spotify.Numeric(move.InsertBefore),
		SnapshotID:   snapshotID,
	})
	if err != nil {
		return "", s.classify("reorder", err)
	}
	return snap, nil
}

// classify maps a client error onto the shared sentinels, signalling the notifier on 401.
func (s *SpotifyService) classify(source string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", shared.ErrTransientFetch, source, err)
	}

	if status, msg, ok := statusOf(err); ok {
		switch {
		case status == http.StatusUnauthorized:
			expired := fmt.Errorf("%w: %s: %s", shared.ErrTokenExpired, source, msg)
			if s.notifier != nil {
				s.notifier.Expire(expired)
			}
			return expired
		case status == http.StatusForbidden:
			return fmt.Errorf("%w: %s: %s", shared.ErrProviderUnavailable, source, msg)
		case status == http.StatusNotFound:
			return fmt.Errorf("%w: %s: %s", shared.ErrPlaylistNotFound, source, msg)
		case status == http.StatusTooManyRequests || status >= 500:
			s.logger.Debug("transient upstream failure", "source", source, "status", status)
			return fmt.Errorf("%w: %s: status %d: %s", shared.ErrTransientFetch, source, status, msg)
		default:
			return fmt.Errorf("%w: %s: status %d: %s", shared.ErrAPIRequest, source, status, msg)
		}
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %s: %w", shared.ErrTransientFetch, source, err)
	}
	return fmt.Errorf("%w: %s: %w", shared.ErrAPIRequest, source, err)
}

// statusOf extracts the upstream status and message carried by err.
func statusOf(err error) (int, string, bool) {
	var se spotify.Error
	if errors.As(err, &se) {
		return se.Status, se.Message, true
	}
	var sp *spotify.Error
	if errors.As(err, &sp) && sp != nil {
		return sp.Status, sp.Message, true
	}
	return 0, "", false
}

func convertItem(item spotify.PlaylistItem, pos int) models.Track {
	switch {
	case item.Track.Track != nil:
		ft := item.Track.Track
		return models.Track{
			ID:               string(ft.ID),
			URI:              string(ft.URI),
			Title:            ft.Name,
			Artists:          lo.Map(ft.Artists, func(a spotify.SimpleArtist, _ int) string { return a.Name }),
			AlbumID:          string(ft.Album.ID),
			DurationMs:       int(ft.Duration),
			Popularity:       int(ft.Popularity),
			OriginalPosition: pos,
			IsLocal:          item.IsLocal,
		}
	case item.Track.Episode != nil:
		ep := item.Track.Episode
		return models.Track{
			ID:               string(ep.ID),
			URI:              string(ep.URI),
			Title:            ep.Name,
			DurationMs:       int(ep.Duration_ms),
			OriginalPosition: pos,
			IsEpisode:        true,
		}
	default:
		return models.Track{OriginalPosition: pos}
	}
}

func convertFeatures(f *spotify.AudioFeatures) models.FeatureSet {
	fs := models.FeatureSet{
		TrackID:      string(f.ID),
		Energy:       models.Known(float64(f.Energy) * 100),
		Danceability: models.Known(float64(f.Danceability) * 100),
		Loudness:     models.Known(float64(f.Loudness)),
		Valence:      models.Known(float64(f.Valence) * 100),
		Acousticness: models.Known(float64(f.Acousticness) * 100),
	}
	if f.Tempo > 0 {
		fs.Tempo = models.Known(float64(f.Tempo))
	}
	return fs
}
