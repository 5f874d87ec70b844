package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alpsaur/SortYourMusic/internal/models"
	"github.com/alpsaur/SortYourMusic/internal/shared"
	tu "github.com/alpsaur/SortYourMusic/internal/testing"
)

type notifierFunc func(error)

func (f notifierFunc) Expire(err error) { f(err) }

func fakeTracks(n int) []tu.FakeTrack {
	tracks := make([]tu.FakeTrack, n)
	for i := range tracks {
		tracks[i] = tu.FakeTrack{
			ID:         "t" + string(rune('a'+i)),
			Name:       "Song " + string(rune('A'+i)),
			Artists:    []string{"Artist " + string(rune('A'+i%3))},
			AlbumID:    "al" + string(rune('a'+i%2)),
			DurationMs: 180000 + i,
			Popularity: 10 * i,
		}
	}
	return tracks
}

func newTestSpotify(catalog *tu.FakeCatalog, notifier ExpiryNotifier) *SpotifyService {
	return NewSpotifyService(SpotifyOptions{
		BaseURL:  catalog.URL(),
		Notifier: notifier,
		Logger:   shared.NewLogger(io.Discard),
		Retry:    RetryPolicy{Attempts: 2, Base: time.Millisecond},
		PageSize: 2,
	})
}

func TestSpotifyService(t *testing.T) {
	ctx := context.Background()

	t.Run("FetchTracksPage paginates with offsets", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(t, "pl1", fakeTracks(5))
		svc := newTestSpotify(catalog, nil)

		var ids []string
		cursor := ""
		pages := 0
		for {
			page, err := svc.FetchTracksPage(ctx, "tok", "pl1", cursor)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			pages++
			for _, tr := range page.Tracks {
				ids = append(ids, tr.ID)
				if tr.OriginalPosition != len(ids)-1 {
					t.Errorf("track %s at position %d, want %d", tr.ID, tr.OriginalPosition, len(ids)-1)
				}
			}
			if page.Total != 5 {
				t.Errorf("expected total 5, got %d", page.Total)
			}
			if page.Next == "" {
				break
			}
			cursor = page.Next
		}

		if pages != 3 {
			t.Errorf("expected 3 pages, got %d", pages)
		}
		if !slices.Equal(ids, []string{"ta", "tb", "tc", "td", "te"}) {
			t.Errorf("unexpected ids %v", ids)
		}
	})

	t.Run("FetchTracksPage converts fields", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(t, "pl1", fakeTracks(1))
		svc := newTestSpotify(catalog, nil)

		page, err := svc.FetchTracksPage(ctx, "tok", "pl1", "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tr := page.Tracks[0]
		if tr.Title != "Song A" || tr.AlbumID != "ala" || tr.DurationMs != 180000 || tr.URI != "spotify:track:ta" {
			t.Errorf("unexpected track %+v", tr)
		}
		if !slices.Equal(tr.Artists, []string{"Artist A"}) {
			t.Errorf("unexpected artists %v", tr.Artists)
		}
	})

	t.Run("bad cursor", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(t, "pl1", fakeTracks(1))
		svc := newTestSpotify(catalog, nil)
		if _, err := svc.FetchTracksPage(ctx, "tok", "pl1", "x"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("unknown playlist", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(t, "pl1", fakeTracks(1))
		svc := newTestSpotify(catalog, nil)
		if _, err := svc.FetchTracksPage(ctx, "tok", "nope", ""); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("FetchPlaylist returns snapshot", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(t, "pl1", fakeTracks(3))
		svc := newTestSpotify(catalog, nil)

		info, err := svc.FetchPlaylist(ctx, "tok", "pl1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if info.SnapshotID != catalog.Snapshot() || info.Total != 3 || info.Name != "Fake Playlist" {
			t.Errorf("unexpected info %+v", info)
		}
	})

	t.Run("FetchAlbums", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(t, "pl1", fakeTracks(2))
		catalog.Albums["ala"] = "1999-05-01"
		svc := newTestSpotify(catalog, nil)

		albums, err := svc.FetchAlbums(ctx, "tok", []string{"ala", "missing"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(albums) != 1 || albums[0].ReleaseDate != "1999-05-01" {
			t.Errorf("unexpected albums %+v", albums)
		}

		tooMany := make([]string, AlbumBatchSize+1)
		if _, err := svc.FetchAlbums(ctx, "tok", tooMany); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("FetchFeatures scales to 0-100", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(t, "pl1", fakeTracks(1))
		catalog.Features["ta"] = tu.FakeFeatures{Tempo: 120.5, Energy: 0.5, Danceability: 0.25, Loudness: -6, Valence: 1, Acousticness: 0}
		svc := newTestSpotify(catalog, nil)

		feats, err := svc.FetchFeatures(ctx, "tok", []string{"ta"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(feats) != 1 {
			t.Fatalf("expected 1 feature set, got %d", len(feats))
		}
		f := feats[0]
		if f.Tempo.Value != 120.5 || f.Energy.Value != 50 || f.Danceability.Value != 25 || f.Loudness.Value != -6 || f.Valence.Value != 100 {
			t.Errorf("unexpected features %+v", f)
		}
		if !f.Acousticness.Known {
			t.Error("zero acousticness is still a known value")
		}
	})

	t.Run("FetchFeatures categorical rejection disables the endpoint", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(t, "pl1", fakeTracks(1))
		catalog.FeaturesStatus = http.StatusForbidden
		svc := newTestSpotify(catalog, nil)

		_, err := svc.FetchFeatures(ctx, "tok", []string{"ta"})
		if !errors.Is(err, shared.ErrProviderUnavailable) {
			t.Fatalf("expected ErrProviderUnavailable, got %v", err)
		}
		if !svc.FeaturesDisabled() {
			t.Error("expected features to be disabled")
		}

		_, err = svc.FetchFeatures(ctx, "tok", []string{"ta"})
		if !errors.Is(err, shared.ErrProviderUnavailable) {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
		if got := catalog.Requests("features"); got != 1 {
			t.Errorf("expected a single request after disabling, got %d", got)
		}
	})

	t.Run("401 notifies and is not retried", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(t, "pl1", fakeTracks(1))
		catalog.Token = "good"
		var notified atomic.Int32
		svc := newTestSpotify(catalog, notifierFunc(func(error) { notified.Add(1) }))

		_, err := svc.FetchTracksPage(ctx, "stale", "pl1", "")
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
		if notified.Load() != 1 {
			t.Errorf("expected one expiry notification, got %d", notified.Load())
		}
		if got := catalog.Requests("items"); got != 0 {
			t.Errorf("rejected requests never reach the handler, got %d", got)
		}

		if _, err := svc.FetchTracksPage(ctx, "good", "pl1", ""); err != nil {
			t.Errorf("expected success with the right token, got %v", err)
		}
	})

	t.Run("transient failures are retried", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(t, "pl1", fakeTracks(1))
		catalog.PageStatus[0] = http.StatusServiceUnavailable
		svc := newTestSpotify(catalog, nil)

		_, err := svc.FetchTracksPage(ctx, "tok", "pl1", "")
		if !errors.Is(err, shared.ErrTransientFetch) {
			t.Fatalf("expected ErrTransientFetch, got %v", err)
		}
		if got := catalog.Requests("items"); got != 2 {
			t.Errorf("expected 2 attempts, got %d", got)
		}
	})

	t.Run("Reorder chains snapshots", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(t, "pl1", fakeTracks(3))
		svc := newTestSpotify(catalog, nil)

		snap, err := svc.Reorder(ctx, "tok", "pl1", models.Move{RangeStart: 2, RangeLength: 1, InsertBefore: 0}, catalog.Snapshot())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if snap != catalog.Snapshot() {
			t.Errorf("expected returned snapshot %s, got %s", catalog.Snapshot(), snap)
		}
		if !slices.Equal(catalog.Order(), []string{"tc", "ta", "tb"}) {
			t.Errorf("unexpected order %v", catalog.Order())
		}

		_, err = svc.Reorder(ctx, "tok", "pl1", models.Move{RangeStart: 0, RangeLength: 1, InsertBefore: 3}, "snap-stale")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest for stale snapshot, got %v", err)
		}
	})
}

func TestClassify(t *testing.T) {
	svc := NewSpotifyService(SpotifyOptions{Logger: shared.NewLogger(io.Discard)})

	t.Run("network errors are transient", func(t *testing.T) {
		hc := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
		svc := NewSpotifyService(SpotifyOptions{
			BaseURL:    "http://127.0.0.1:1/",
			HTTPClient: hc,
			Logger:     shared.NewLogger(io.Discard),
			Retry:      RetryPolicy{Attempts: 1},
		})
		_, err := svc.FetchPlaylist(context.Background(), "tok", "pl")
		if !errors.Is(err, shared.ErrTransientFetch) {
			t.Errorf("expected ErrTransientFetch, got %v", err)
		}
	})

	t.Run("canceled context passes through", func(t *testing.T) {
		if err := svc.classify("x", context.Canceled); !errors.Is(err, context.Canceled) || errors.Is(err, shared.ErrTransientFetch) {
			t.Errorf("unexpected classification %v", err)
		}
	})

	t.Run("deadline is transient", func(t *testing.T) {
		if err := svc.classify("x", context.DeadlineExceeded); !errors.Is(err, shared.ErrTransientFetch) {
			t.Errorf("expected ErrTransientFetch, got %v", err)
		}
	})

	t.Run("nil stays nil", func(t *testing.T) {
		if err := svc.classify("x", nil); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})
}
