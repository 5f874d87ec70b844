package models

import (
	"fmt"
	"hash/fnv"
	"strconv"
)

// Row is one line of the aggregated table.
type Row struct {
	Key       string     `json:"key"`
	Track     Track      `json:"track"`
	Album     AlbumInfo  `json:"album"`
	Features  FeatureSet `json:"features"`
	BPMSource string     `json:"bpm_source,omitempty"`
}

// ReleaseDate returns the joined release date or "" when unknown.
func (r Row) ReleaseDate() string {
	return r.Album.ReleaseDate
}

// SeparationMetric describes how far apart same-artist tracks sit.
//
// Gaps[i] is the distance from row i back to the previous row with the same primary artist, or 0 if none.
// MinGap is the smallest non-zero gap (0 when no artist repeats); Adjacent counts gaps of exactly 1.
type SeparationMetric struct {
	Gaps     []int `json:"gaps"`
	MinGap   int   `json:"min_gap"`
	Adjacent int   `json:"adjacent"`
}

// PlaylistTable is the ordered, uniquely keyed set of rows for one playlist.
//
// Row membership is fixed at construction; only the order changes.
type PlaylistTable struct {
	PlaylistID string
	Name       string
	SnapshotID string

	rows  []Row
	index map[string]int

	sep            *SeparationMetric
	sepFingerprint uint64
}

// NewPlaylistTable builds a table from rows in the given order.
//
// Row keys are assigned from track identity; the k-th repeat of an identity gets the suffix "#k".
func NewPlaylistTable(playlistID string, rows []Row) *PlaylistTable {
	t := &PlaylistTable{PlaylistID: playlistID, rows: make([]Row, len(rows))}
	seen := make(map[string]int, len(rows))
	for i, r := range rows {
		id := r.Track.Identity()
		if id == "" {
			id = "pos:" + strconv.Itoa(r.Track.OriginalPosition)
		}
		key := id
		if n := seen[id]; n > 0 {
			key = id + "#" + strconv.Itoa(n)
		}
		seen[id]++
		r.Key = key
		t.rows[i] = r
	}
	t.reindex()
	return t
}

func (t *PlaylistTable) reindex() {
	t.index = make(map[string]int, len(t.rows))
	for i, r := range t.rows {
		t.index[r.Key] = i
	}
}

// Len returns the number of rows.
func (t *PlaylistTable) Len() int { return len(t.rows) }

// Row returns the row at position i.
func (t *PlaylistTable) Row(i int) Row { return t.rows[i] }

// Rows returns a copy of the rows in current order.
func (t *PlaylistTable) Rows() []Row {
	return append([]Row(nil), t.rows...)
}

// Lookup returns the row with the given key.
func (t *PlaylistTable) Lookup(key string) (Row, bool) {
	i, ok := t.index[key]
	if !ok {
		return Row{}, false
	}
	return t.rows[i], true
}

// Keys returns row keys in current order.
func (t *PlaylistTable) Keys() []string {
	keys := make([]string, len(t.rows))
	for i, r := range t.rows {
		keys[i] = r.Key
	}
	return keys
}

// Identities returns the upstream identity of each row in current order.
func (t *PlaylistTable) Identities() []string {
	ids := make([]string, len(t.rows))
	for i, r := range t.rows {
		ids[i] = r.Track.Identity()
	}
	return ids
}

// URIs returns each row's track URI in current order.
func (t *PlaylistTable) URIs() []string {
	uris := make([]string, len(t.rows))
	for i, r := range t.rows {
		uris[i] = r.Track.URI
	}
	return uris
}

// WithOrder returns a new table holding the same rows in the order given by keys.
// keys must be a permutation of [PlaylistTable.Keys].
func (t *PlaylistTable) WithOrder(keys []string) (*PlaylistTable, error) {
	if len(keys) != len(t.rows) {
		return nil, fmt.Errorf("order has %d keys, table has %d rows", len(keys), len(t.rows))
	}
	rows := make([]Row, len(keys))
	used := make(map[string]bool, len(keys))
	for i, k := range keys {
		j, ok := t.index[k]
		if !ok || used[k] {
			return nil, fmt.Errorf("order is not a permutation of the table: key %q", k)
		}
		used[k] = true
		rows[i] = t.rows[j]
	}

	out := &PlaylistTable{
		PlaylistID: t.PlaylistID,
		Name:       t.Name,
		SnapshotID: t.SnapshotID,
		rows:       rows,
	}
	out.reindex()
	return out, nil
}

// Reorder permutes the table in place to the order given by keys.
func (t *PlaylistTable) Reorder(keys []string) error {
	next, err := t.WithOrder(keys)
	if err != nil {
		return err
	}
	t.rows, t.index = next.rows, next.index
	return nil
}

// SameRows reports whether other holds exactly the same row keys.
func (t *PlaylistTable) SameRows(other *PlaylistTable) bool {
	if other == nil || len(other.rows) != len(t.rows) {
		return false
	}
	for k := range t.index {
		if _, ok := other.index[k]; !ok {
			return false
		}
	}
	return true
}

// ArtistSeparation returns the separation metric for the current order.
//
// The result is cached and only recomputed when the artist sequence changes.
func (t *PlaylistTable) ArtistSeparation() SeparationMetric {
	fp := t.artistFingerprint()
	if t.sep != nil && t.sepFingerprint == fp {
		return *t.sep
	}
	m := computeSeparation(t.rows)
	t.sep, t.sepFingerprint = &m, fp
	return m
}

func (t *PlaylistTable) artistFingerprint() uint64 {
	h := fnv.New64a()
	for _, r := range t.rows {
		for _, a := range r.Track.Artists {
			h.Write([]byte(a))
			h.Write([]byte{0})
		}
		h.Write([]byte{1})
	}
	return h.Sum64()
}

// computeSeparation measures, per row, the distance back to the nearest row sharing any credited artist.
func computeSeparation(rows []Row) SeparationMetric {
	m := SeparationMetric{Gaps: make([]int, len(rows))}
	last := make(map[string]int)
	for i, r := range rows {
		gap := 0
		for _, a := range r.Track.Artists {
			if a == "" {
				continue
			}
			if j, ok := last[a]; ok && (gap == 0 || i-j < gap) {
				gap = i - j
			}
			last[a] = i
		}
		if gap == 0 {
			continue
		}
		m.Gaps[i] = gap
		if m.MinGap == 0 || gap < m.MinGap {
			m.MinGap = gap
		}
		if gap == 1 {
			m.Adjacent++
		}
	}
	return m
}
