package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/alpsaur/SortYourMusic/internal/models"
)

// FakeTrack is one item in a [FakeCatalog] playlist.
type FakeTrack struct {
	ID         string
	Name       string
	Artists    []string
	AlbumID    string
	DurationMs int
	Popularity int
}

// FakeFeatures are the audio features served for one track.
type FakeFeatures struct {
	Tempo, Energy, Danceability, Loudness, Valence, Acousticness float64
}

// FakeCatalog is an in-process stand-in for the catalog Web API serving a single playlist.
//
// Reorders are applied to the held order, so a later page fetch reflects earlier writes.
// Failure knobs return the configured HTTP status for matching requests.
type FakeCatalog struct {
	Server *httptest.Server

	mu         sync.Mutex
	playlistID string
	name       string
	tracks     map[string]FakeTrack
	order      []string
	snapshot   int

	Albums   map[string]string       // album id -> release date
	Features map[string]FakeFeatures // track id -> features
	Token    string                  // required bearer token; empty accepts any

	FeaturesStatus int         // non-zero: every audio-features request fails with this status
	AlbumsStatus   int         // non-zero: every albums request fails with this status
	PageStatus     map[int]int // item offset -> status for that page request
	ReorderStatus  map[int]int // 1-based reorder call number -> status

	reorderCalls int
	requests     map[string]int
	Moves        []models.Move
}

// NewFakeCatalog starts a server for playlistID holding tracks in order.
func NewFakeCatalog(t *testing.T, playlistID string, tracks []FakeTrack) *FakeCatalog {
	t.Helper()
	f := &FakeCatalog{
		playlistID:    playlistID,
		name:          "Fake Playlist",
		tracks:        make(map[string]FakeTrack, len(tracks)),
		snapshot:      1,
		Albums:        map[string]string{},
		Features:      map[string]FakeFeatures{},
		PageStatus:    map[int]int{},
		ReorderStatus: map[int]int{},
		requests:      map[string]int{},
	}
	for _, tr := range tracks {
		f.tracks[tr.ID] = tr
		f.order = append(f.order, tr.ID)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /playlists/{id}/tracks", f.handleItems)
	mux.HandleFunc("PUT /playlists/{id}/tracks", f.handleReorder)
	mux.HandleFunc("GET /playlists/{id}", f.handlePlaylist)
	mux.HandleFunc("GET /albums", f.handleAlbums)
	mux.HandleFunc("GET /audio-features", f.handleFeatures)

	f.Server = httptest.NewServer(f.authorize(mux))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the API root with a trailing slash.
func (f *FakeCatalog) URL() string { return f.Server.URL + "/" }

// Order returns the current upstream order of track ids.
func (f *FakeCatalog) Order() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.order)
}

// Snapshot returns the current snapshot token.
func (f *FakeCatalog) Snapshot() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotID()
}

// Requests returns how many requests hit the named endpoint ("items", "playlist", "albums", "features", "reorder").
func (f *FakeCatalog) Requests(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[endpoint]
}

func (f *FakeCatalog) snapshotID() string { return "snap-" + strconv.Itoa(f.snapshot) }

func (f *FakeCatalog) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		want := f.Token
		f.mu.Unlock()
		if want != "" && r.Header.Get("Authorization") != "Bearer "+want {
			writeAPIError(w, http.StatusUnauthorized, "The access token expired")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeCatalog) handleItems(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests["items"]++

	if r.PathValue("id") != f.playlistID {
		writeAPIError(w, http.StatusNotFound, "Not found.")
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}
	if status := f.PageStatus[offset]; status != 0 {
		writeAPIError(w, status, "page failure")
		return
	}

	end := min(offset+limit, len(f.order))
	items := []map[string]any{}
	for _, id := range f.order[min(offset, end):end] {
		tr := f.tracks[id]
		artists := make([]map[string]any, len(tr.Artists))
		for i, a := range tr.Artists {
			artists[i] = map[string]any{"name": a, "id": "artist-" + strings.ToLower(a), "type": "artist"}
		}
		items = append(items, map[string]any{
			"added_at": "2024-01-01T00:00:00Z",
			"is_local": false,
			"track": map[string]any{
				"type":        "track",
				"id":          tr.ID,
				"name":        tr.Name,
				"uri":         "spotify:track:" + tr.ID,
				"duration_ms": tr.DurationMs,
				"popularity":  tr.Popularity,
				"artists":     artists,
				"album":       map[string]any{"id": tr.AlbumID, "name": "Album " + tr.AlbumID, "type": "album"},
			},
		})
	}

	var next any
	if end < len(f.order) {
		next = fmt.Sprintf("%s/playlists/%s/tracks?offset=%d&limit=%d", f.Server.URL, f.playlistID, end, limit)
	}
	writeJSON(w, map[string]any{
		"href":     r.URL.String(),
		"limit":    limit,
		"offset":   offset,
		"total":    len(f.order),
		"next":     next,
		"previous": nil,
		"items":    items,
	})
}

func (f *FakeCatalog) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests["playlist"]++

	if r.PathValue("id") != f.playlistID {
		writeAPIError(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, map[string]any{
		"id":          f.playlistID,
		"name":        f.name,
		"snapshot_id": f.snapshotID(),
		"tracks":      map[string]any{"total": len(f.order), "items": []any{}},
	})
}

func (f *FakeCatalog) handleReorder(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests["reorder"]++
	f.reorderCalls++

	if status := f.ReorderStatus[f.reorderCalls]; status != 0 {
		writeAPIError(w, status, "reorder rejected")
		return
	}

	var body struct {
		RangeStart   int    `json:"range_start"`
		RangeLength  int    `json:"range_length"`
		InsertBefore int    `json:"insert_before"`
		SnapshotID   string `json:"snapshot_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "bad body")
		return
	}
	if body.SnapshotID != "" && body.SnapshotID != f.snapshotID() {
		writeAPIError(w, http.StatusConflict, "snapshot mismatch")
		return
	}
	if body.RangeLength == 0 {
		body.RangeLength = 1
	}

	mv := models.Move{RangeStart: body.RangeStart, RangeLength: body.RangeLength, InsertBefore: body.InsertBefore}
	next, err := mv.Apply(f.order)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.order = next
	f.snapshot++
	f.Moves = append(f.Moves, mv)
	writeJSON(w, map[string]any{"snapshot_id": f.snapshotID()})
}

func (f *FakeCatalog) handleAlbums(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests["albums"]++

	if f.AlbumsStatus != 0 {
		writeAPIError(w, f.AlbumsStatus, "albums unavailable")
		return
	}

	albums := []any{}
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		date, ok := f.Albums[id]
		if !ok {
			albums = append(albums, nil)
			continue
		}
		albums = append(albums, map[string]any{"id": id, "name": "Album " + id, "release_date": date, "type": "album"})
	}
	writeJSON(w, map[string]any{"albums": albums})
}

func (f *FakeCatalog) handleFeatures(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests["features"]++

	if f.FeaturesStatus != 0 {
		writeAPIError(w, f.FeaturesStatus, "Forbidden")
		return
	}

	feats := []any{}
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		ft, ok := f.Features[id]
		if !ok {
			feats = append(feats, nil)
			continue
		}
		feats = append(feats, map[string]any{
			"id":           id,
			"tempo":        ft.Tempo,
			"energy":       ft.Energy,
			"danceability": ft.Danceability,
			"loudness":     ft.Loudness,
			"valence":      ft.Valence,
			"acousticness": ft.Acousticness,
		})
	}
	writeJSON(w, map[string]any{"audio_features": feats})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"status": status, "message": msg}})
}
