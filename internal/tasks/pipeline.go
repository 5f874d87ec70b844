package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alpsaur/SortYourMusic/internal/models"
	"github.com/alpsaur/SortYourMusic/internal/services"
	"github.com/alpsaur/SortYourMusic/internal/shared"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// BPM sources recorded on a [models.Row].
const (
	BPMFromFeatures = "spotify"
	BPMFromLookup   = "getsongbpm"
)

// SourceStatus summarises how a data source fared during a load.
type SourceStatus string

const (
	StatusOK          SourceStatus = "ok"
	StatusPartial     SourceStatus = "partial"
	StatusUnavailable SourceStatus = "unavailable"
	StatusFailed      SourceStatus = "failed"
	StatusSkipped     SourceStatus = "skipped"
)

// SourceReport is the outcome of one source.
//
// Requested counts ids or lookups asked for; Covered counts table rows that ended up with the source's data.
type SourceReport struct {
	Status    SourceStatus `json:"status"`
	Requested int          `json:"requested"`
	Covered   int          `json:"covered"`
	Err       error        `json:"-"`
}

// LoadReport accompanies a loaded table.
type LoadReport struct {
	PlaylistID string       `json:"playlist_id"`
	Name       string       `json:"name"`
	SnapshotID string       `json:"snapshot_id"`
	Generation string       `json:"generation"`
	Tracks     SourceReport `json:"tracks"`
	Albums     SourceReport `json:"albums"`
	Features   SourceReport `json:"features"`
	BPM        SourceReport `json:"bpm"`
}

// Degraded reports whether any source returned less than full data.
func (r LoadReport) Degraded() bool {
	for _, s := range []SourceReport{r.Tracks, r.Albums, r.Features, r.BPM} {
		if s.Status != StatusOK && s.Status != StatusSkipped {
			return true
		}
	}
	return false
}

// LoadPlaylist aggregates playlistID into a [models.PlaylistTable] and installs it as the current table.
//
// The primary track source can fail a load on the first page or on metadata. An authentication
// rejection from any source fails it too.
// Starting another load abandons this one, which then returns [shared.ErrLoadAbandoned].
func (e *PlaylistEngine) LoadPlaylist(ctx context.Context, playlistID string, progress chan<- ProgressUpdate) (*models.PlaylistTable, *LoadReport, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	ctx, gen, cancel := e.begin(ctx)
	defer cancel()
	logger := e.logger.With("playlist", playlistID, "generation", gen)

	tok, err := e.opts.Tokens.Token(ctx)
	if err != nil {
		return nil, nil, err
	}

	report := &LoadReport{PlaylistID: playlistID, Generation: gen}

	e.sendProgress(progress, fetchPlaylistUpdate(playlistID))
	info, err := e.fetchPlaylist(ctx, tok, playlistID)
	if err != nil {
		return nil, nil, e.abandoned(ctx, gen, err)
	}
	report.Name, report.SnapshotID = info.Name, info.SnapshotID

	tracks, tracksReport, err := e.fetchTracks(ctx, tok, playlistID, progress)
	if err != nil {
		return nil, nil, e.abandoned(ctx, gen, err)
	}
	report.Tracks = tracksReport

	var (
		albums   map[string]models.AlbumInfo
		features map[string]models.FeatureSet
		bpms     map[string]float64
	)

	var g errgroup.Group
	g.Go(func() error {
		albums, report.Albums = e.fetchAlbums(ctx, tok, tracks, progress)
		return nil
	})
	g.Go(func() error {
		features, report.Features = e.fetchFeatures(ctx, tok, tracks, progress)
		bpms, report.BPM = e.fetchBPM(ctx, tracks, features, progress)
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, nil, e.abandoned(ctx, gen, ctx.Err())
	}
	for _, src := range []SourceReport{report.Albums, report.Features, report.BPM} {
		if errors.Is(src.Err, shared.ErrTokenExpired) {
			logger.Warn("source rejected the token, failing load", "error", src.Err)
			return nil, nil, fmt.Errorf("enrichment: %w", src.Err)
		}
	}

	rows := joinRows(tracks, albums, features, bpms)
	for _, r := range rows {
		if r.Album.ReleaseDate != "" {
			report.Albums.Covered++
		}
		if r.BPMSource == BPMFromLookup {
			report.BPM.Covered++
		}
		if _, ok := features[r.Track.ID]; ok && r.Track.ID != "" {
			report.Features.Covered++
		}
	}

	t := models.NewPlaylistTable(playlistID, rows)
	t.Name, t.SnapshotID = info.Name, info.SnapshotID
	t.ArtistSeparation()

	if !e.finish(gen, t) {
		logger.Debug("discarding abandoned load")
		return nil, nil, shared.ErrLoadAbandoned
	}

	logger.Info("loaded playlist",
		"tracks", t.Len(),
		"albums", report.Albums.Status,
		"features", report.Features.Status,
		"bpm", report.BPM.Status,
	)
	return t, report, nil
}

// abandoned reports [shared.ErrLoadAbandoned] in place of err when gen has been superseded.
func (e *PlaylistEngine) abandoned(ctx context.Context, gen string, err error) error {
	e.mu.Lock()
	superseded := e.generation != gen
	e.mu.Unlock()
	if superseded && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", shared.ErrLoadAbandoned, err)
	}
	return err
}

func (e *PlaylistEngine) fetchPlaylist(ctx context.Context, tok, playlistID string) (services.PlaylistInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.SourceTimeout)
	defer cancel()
	info, err := e.opts.Tracks.FetchPlaylist(ctx, tok, playlistID)
	if err != nil {
		return services.PlaylistInfo{}, fmt.Errorf("failed to fetch playlist %s: %w", playlistID, err)
	}
	return info, nil
}

// fetchTracks paginates the primary source. A failure after the first page stops early with partial data,
// except for authentication and cancellation, which always fail the load.
func (e *PlaylistEngine) fetchTracks(ctx context.Context, tok, playlistID string, progress chan<- ProgressUpdate) ([]models.Track, SourceReport, error) {
	var (
		tracks []models.Track
		cursor string
		report = SourceReport{Status: StatusOK}
	)

	for {
		pctx, cancel := context.WithTimeout(ctx, e.opts.SourceTimeout)
		page, err := e.opts.Tracks.FetchTracksPage(pctx, tok, playlistID, cursor)
		cancel()

		if err != nil {
			if len(tracks) == 0 || errors.Is(err, shared.ErrTokenExpired) || ctx.Err() != nil {
				return nil, report, fmt.Errorf("failed to fetch playlist tracks: %w", err)
			}
			e.logger.Warn("stopping pagination early", "playlist", playlistID, "fetched", len(tracks), "error", err)
			report.Status, report.Err = StatusPartial, err
			break
		}

		for _, tr := range page.Tracks {
			tr.OriginalPosition = len(tracks)
			tracks = append(tracks, tr)
		}
		report.Requested = max(page.Total, len(tracks))
		e.sendProgress(progress, fetchTracksUpdate(len(tracks), report.Requested))

		if page.Next == "" || page.Next == cursor {
			break
		}
		cursor = page.Next
	}

	report.Covered = len(tracks)
	return tracks, report, nil
}

// fetchAlbums batch-fetches release dates for distinct album ids.
func (e *PlaylistEngine) fetchAlbums(ctx context.Context, tok string, tracks []models.Track, progress chan<- ProgressUpdate) (map[string]models.AlbumInfo, SourceReport) {
	out := map[string]models.AlbumInfo{}
	if e.opts.Albums == nil {
		return out, SourceReport{Status: StatusSkipped}
	}

	ids := lo.Uniq(lo.FilterMap(tracks, func(tr models.Track, _ int) (string, bool) {
		return tr.AlbumID, tr.AlbumID != "" && !tr.IsLocal
	}))
	report := SourceReport{Requested: len(ids)}
	if len(ids) == 0 {
		report.Status = StatusOK
		return out, report
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.SourceTimeout)
	defer cancel()

	batches := lo.Chunk(ids, services.AlbumBatchSize)
	var ok, failed int
	unavailable := false
	for i, batch := range batches {
		e.sendProgress(progress, fetchBatchUpdate(FetchAlbums, i+1, len(batches)))

		got, err := e.opts.Albums.FetchAlbums(ctx, tok, batch)
		if err != nil {
			failed++
			report.Err = err
			e.logger.Warn("album batch failed", "batch", i+1, "of", len(batches), "error", err)
			if stopSource(ctx, err) {
				unavailable = errors.Is(err, shared.ErrProviderUnavailable)
				failed += len(batches) - i - 1
				break
			}
			continue
		}
		ok++
		for _, a := range got {
			out[a.AlbumID] = a
		}
	}

	report.Status = sourceStatus(ok, failed, unavailable)
	return out, report
}

// fetchFeatures batch-fetches audio features. A categorical rejection is logged and reported, never raised.
func (e *PlaylistEngine) fetchFeatures(ctx context.Context, tok string, tracks []models.Track, progress chan<- ProgressUpdate) (map[string]models.FeatureSet, SourceReport) {
	out := map[string]models.FeatureSet{}
	if e.opts.Features == nil {
		return out, SourceReport{Status: StatusSkipped}
	}

	ids := lo.Uniq(lo.FilterMap(tracks, func(tr models.Track, _ int) (string, bool) {
		return tr.ID, tr.ID != "" && !tr.IsLocal && !tr.IsEpisode
	}))
	report := SourceReport{Requested: len(ids)}
	if len(ids) == 0 {
		report.Status = StatusOK
		return out, report
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.SourceTimeout)
	defer cancel()

	batches := lo.Chunk(ids, services.FeatureBatchSize)
	var ok, failed int
	unavailable := false
	for i, batch := range batches {
		e.sendProgress(progress, fetchBatchUpdate(FetchFeatures, i+1, len(batches)))

		got, err := e.opts.Features.FetchFeatures(ctx, tok, batch)
		if err != nil {
			failed++
			report.Err = err
			if errors.Is(err, shared.ErrProviderUnavailable) {
				e.logger.Warn("audio features unavailable, feature columns will be unknown", "error", err)
			} else {
				e.logger.Warn("feature batch failed", "batch", i+1, "of", len(batches), "error", err)
			}
			if stopSource(ctx, err) {
				unavailable = errors.Is(err, shared.ErrProviderUnavailable)
				failed += len(batches) - i - 1
				break
			}
			continue
		}
		ok++
		for _, f := range got {
			out[f.TrackID] = f
		}
	}

	report.Status = sourceStatus(ok, failed, unavailable)
	return out, report
}

// fetchBPM looks up tempo by artist and title for tracks the feature source left without one.
func (e *PlaylistEngine) fetchBPM(ctx context.Context, tracks []models.Track, features map[string]models.FeatureSet, progress chan<- ProgressUpdate) (map[string]float64, SourceReport) {
	out := map[string]float64{}
	if e.opts.BPM == nil {
		return out, SourceReport{Status: StatusSkipped}
	}

	candidates := lo.UniqBy(lo.Filter(tracks, func(tr models.Track, _ int) bool {
		return tr.Title != "" && !tr.IsEpisode && !features[tr.ID].Tempo.Known
	}), lookupKey)
	report := SourceReport{Requested: len(candidates)}
	if len(candidates) == 0 {
		report.Status = StatusOK
		return out, report
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.SourceTimeout)
	defer cancel()

	var (
		mu          sync.Mutex
		done        int
		ok, failed  int
		unavailable bool
	)

	g := new(errgroup.Group)
	g.SetLimit(e.opts.BPMConcurrency)
	for _, tr := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			lctx, lcancel := context.WithTimeout(ctx, e.opts.LookupTimeout)
			defer lcancel()
			bpm, err := e.opts.BPM.LookupBPM(lctx, tr.PrimaryArtist(), tr.Title)

			mu.Lock()
			defer mu.Unlock()
			done++
			e.sendProgress(progress, fetchBPMUpdate(done, len(candidates), tr))

			switch {
			case err == nil:
				ok++
				out[lookupKey(tr)] = bpm
			case errors.Is(err, shared.ErrTrackNotFound):
				ok++
				e.logger.Debug("no bpm found", "artist", tr.PrimaryArtist(), "title", tr.Title)
			case errors.Is(err, shared.ErrProviderUnavailable):
				failed++
				unavailable = true
				report.Err = err
			default:
				failed++
				report.Err = err
				e.logger.Debug("bpm lookup failed", "artist", tr.PrimaryArtist(), "title", tr.Title, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if skipped := len(candidates) - done; skipped > 0 {
		failed += skipped
		if report.Err == nil {
			report.Err = ctx.Err()
		}
	}
	if failed > 0 {
		e.logger.Warn("bpm lookups degraded", "failed", failed, "of", len(candidates), "error", report.Err)
	}

	report.Status = sourceStatus(ok, failed, unavailable)
	return out, report
}

// joinRows merges the sources into rows, keeping track order.
func joinRows(tracks []models.Track, albums map[string]models.AlbumInfo, features map[string]models.FeatureSet, bpms map[string]float64) []models.Row {
	return lo.Map(tracks, func(tr models.Track, _ int) models.Row {
		row := models.Row{Track: tr}
		if a, ok := albums[tr.AlbumID]; ok && tr.AlbumID != "" {
			row.Album = a
		}
		if f, ok := features[tr.ID]; ok && tr.ID != "" {
			row.Features = f
		}
		row.Features.TrackID = tr.ID

		switch {
		case row.Features.Tempo.Known:
			row.BPMSource = BPMFromFeatures
		default:
			if bpm, ok := bpms[lookupKey(tr)]; ok {
				row.Features.Tempo = models.Known(bpm)
				row.BPMSource = BPMFromLookup
			}
		}
		return row
	})
}

// lookupKey identifies a fallback lookup.
func lookupKey(tr models.Track) string {
	return strings.ToLower(tr.PrimaryArtist()) + "\x00" + strings.ToLower(tr.Title)
}

// stopSource reports whether a batch error means the remaining batches are pointless.
func stopSource(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, shared.ErrProviderUnavailable) ||
		errors.Is(err, shared.ErrTokenExpired)
}

func sourceStatus(ok, failed int, unavailable bool) SourceStatus {
	switch {
	case failed == 0:
		return StatusOK
	case ok > 0:
		return StatusPartial
	case unavailable:
		return StatusUnavailable
	default:
		return StatusFailed
	}
}
