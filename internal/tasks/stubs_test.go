package tasks

import (
	"context"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alpsaur/SortYourMusic/internal/models"
	"github.com/alpsaur/SortYourMusic/internal/services"
	"github.com/alpsaur/SortYourMusic/internal/shared"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

// stubTracks serves fixed pages. Cursors are page numbers.
type stubTracks struct {
	info    services.PlaylistInfo
	pages   [][]models.Track
	pageErr map[int]error
	infoErr error

	// hold, when set, makes the first FetchPlaylist call signal entered and wait for cancellation.
	hold    bool
	entered chan struct{}
	calls   atomic.Int32
}

func (s *stubTracks) FetchPlaylist(ctx context.Context, _, id string) (services.PlaylistInfo, error) {
	if s.calls.Add(1) == 1 && s.hold {
		close(s.entered)
		<-ctx.Done()
		return services.PlaylistInfo{}, ctx.Err()
	}
	if s.infoErr != nil {
		return services.PlaylistInfo{}, s.infoErr
	}
	info := s.info
	info.ID = id
	return info, nil
}

func (s *stubTracks) FetchTracksPage(_ context.Context, _, _, cursor string) (services.TrackPage, error) {
	i := 0
	if cursor != "" {
		i, _ = strconv.Atoi(cursor)
	}
	if err := s.pageErr[i]; err != nil {
		return services.TrackPage{}, err
	}
	total := 0
	for _, p := range s.pages {
		total += len(p)
	}
	page := services.TrackPage{Total: total}
	if i < len(s.pages) {
		page.Tracks = s.pages[i]
	}
	if i+1 < len(s.pages) {
		page.Next = strconv.Itoa(i + 1)
	}
	return page, nil
}

type stubAlbums struct {
	dates map[string]string
	err   error
	calls atomic.Int32
}

func (s *stubAlbums) FetchAlbums(_ context.Context, _ string, ids []string) ([]models.AlbumInfo, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	var out []models.AlbumInfo
	for _, id := range ids {
		if d, ok := s.dates[id]; ok {
			out = append(out, models.AlbumInfo{AlbumID: id, ReleaseDate: d})
		}
	}
	return out, nil
}

type stubFeatures struct {
	feats map[string]models.FeatureSet
	err   error
	calls atomic.Int32
}

func (s *stubFeatures) FetchFeatures(_ context.Context, _ string, ids []string) ([]models.FeatureSet, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	var out []models.FeatureSet
	for _, id := range ids {
		if f, ok := s.feats[id]; ok {
			f.TrackID = id
			out = append(out, f)
		}
	}
	return out, nil
}

// stubBPM answers by title and records the peak number of concurrent lookups.
type stubBPM struct {
	tempos map[string]float64
	err    error
	delay  time.Duration

	mu      sync.Mutex
	active  int
	peak    int
	lookups []string
}

func (s *stubBPM) LookupBPM(ctx context.Context, artist, title string) (float64, error) {
	s.mu.Lock()
	s.active++
	s.peak = max(s.peak, s.active)
	s.lookups = append(s.lookups, title)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if s.err != nil {
		return 0, s.err
	}
	bpm, ok := s.tempos[title]
	if !ok {
		return 0, shared.ErrTrackNotFound
	}
	return bpm, nil
}

type stubReorderer struct{}

func (stubReorderer) Reorder(context.Context, string, string, models.Move, string) (string, error) {
	return "snap", nil
}

func track(id, title, artist, album string, popularity int) models.Track {
	return models.Track{
		ID:         id,
		URI:        "spotify:track:" + id,
		Title:      title,
		Artists:    []string{artist},
		AlbumID:    album,
		DurationMs: 200000 + popularity,
		Popularity: popularity,
	}
}

func newTestEngine(t *testing.T, opts Options) *PlaylistEngine {
	t.Helper()
	if opts.Tokens == nil {
		opts.Tokens = staticToken("tok")
	}
	if opts.Reorderer == nil {
		opts.Reorderer = stubReorderer{}
	}
	opts.Logger = shared.NewLogger(io.Discard)
	e, err := NewPlaylistEngine(opts)
	if err != nil {
		t.Fatalf("NewPlaylistEngine() failed: %v", err)
	}
	return e
}
