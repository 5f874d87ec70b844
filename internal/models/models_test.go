package models

import (
	"slices"
	"testing"
	"time"
)

func row(id, artist string, pos int) Row {
	return Row{Track: Track{ID: id, Title: id, Artists: []string{artist}, OriginalPosition: pos}}
}

func TestPlaylistTable(t *testing.T) {
	t.Run("assigns unique keys for repeated tracks", func(t *testing.T) {
		tbl := NewPlaylistTable("pl", []Row{row("a", "x", 0), row("b", "y", 1), row("a", "x", 2), row("a", "x", 3)})

		want := []string{"a", "b", "a#1", "a#2"}
		if got := tbl.Keys(); !slices.Equal(got, want) {
			t.Errorf("Keys() = %v, want %v", got, want)
		}
		if got := tbl.Identities(); !slices.Equal(got, []string{"a", "b", "a", "a"}) {
			t.Errorf("Identities() = %v", got)
		}
	})

	t.Run("falls back to URI then position", func(t *testing.T) {
		local := Row{Track: Track{URI: "spotify:local:song", OriginalPosition: 0}}
		blank := Row{Track: Track{OriginalPosition: 1}}
		tbl := NewPlaylistTable("pl", []Row{local, blank})

		if got := tbl.Keys(); !slices.Equal(got, []string{"spotify:local:song", "pos:1"}) {
			t.Errorf("Keys() = %v", got)
		}
	})

	t.Run("WithOrder leaves the original untouched", func(t *testing.T) {
		tbl := NewPlaylistTable("pl", []Row{row("a", "x", 0), row("b", "y", 1), row("c", "z", 2)})
		next, err := tbl.WithOrder([]string{"c", "a", "b"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if got := next.Keys(); !slices.Equal(got, []string{"c", "a", "b"}) {
			t.Errorf("next order = %v", got)
		}
		if got := tbl.Keys(); !slices.Equal(got, []string{"a", "b", "c"}) {
			t.Errorf("original mutated: %v", got)
		}
		if !tbl.SameRows(next) {
			t.Error("expected same rows")
		}
	})

	t.Run("WithOrder rejects non-permutations", func(t *testing.T) {
		tbl := NewPlaylistTable("pl", []Row{row("a", "x", 0), row("b", "y", 1)})
		for _, keys := range [][]string{{"a"}, {"a", "a"}, {"a", "z"}} {
			if _, err := tbl.WithOrder(keys); err == nil {
				t.Errorf("expected error for %v", keys)
			}
		}
	})

	t.Run("Reorder mutates in place", func(t *testing.T) {
		tbl := NewPlaylistTable("pl", []Row{row("a", "x", 0), row("b", "y", 1)})
		if err := tbl.Reorder([]string{"b", "a"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		r, ok := tbl.Lookup("a")
		if !ok || r.Track.OriginalPosition != 0 {
			t.Errorf("lookup after reorder failed: %+v", r)
		}
		if tbl.Row(0).Key != "b" {
			t.Errorf("expected b first, got %s", tbl.Row(0).Key)
		}
	})
}

func TestArtistSeparation(t *testing.T) {
	tbl := NewPlaylistTable("pl", []Row{row("a", "x", 0), row("b", "x", 1), row("c", "y", 2), row("d", "x", 3)})

	m := tbl.ArtistSeparation()
	if !slices.Equal(m.Gaps, []int{0, 1, 0, 2}) {
		t.Errorf("Gaps = %v", m.Gaps)
	}
	if m.MinGap != 1 || m.Adjacent != 1 {
		t.Errorf("MinGap = %d, Adjacent = %d", m.MinGap, m.Adjacent)
	}

	t.Run("cached until artist order changes", func(t *testing.T) {
		first := tbl.sep
		tbl.ArtistSeparation()
		if tbl.sep != first {
			t.Error("expected cached metric to be reused")
		}

		if err := tbl.Reorder([]string{"a", "c", "b", "d"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		m := tbl.ArtistSeparation()
		if tbl.sep == first {
			t.Error("expected metric to be recomputed")
		}
		if m.Adjacent != 1 || m.MinGap != 1 {
			t.Errorf("after reorder MinGap = %d, Adjacent = %d", m.MinGap, m.Adjacent)
		}
	})
}

func TestMoveApply(t *testing.T) {
	order := []string{"a", "b", "c", "d", "e"}
	tc := []struct {
		name string
		move Move
		want []string
	}{
		{"move forward", Move{RangeStart: 0, RangeLength: 1, InsertBefore: 3}, []string{"b", "c", "a", "d", "e"}},
		{"move backward", Move{RangeStart: 3, RangeLength: 2, InsertBefore: 0}, []string{"d", "e", "a", "b", "c"}},
		{"move to end", Move{RangeStart: 1, RangeLength: 1, InsertBefore: 5}, []string{"a", "c", "d", "e", "b"}},
		{"no-op inside range", Move{RangeStart: 1, RangeLength: 2, InsertBefore: 2}, order},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.move.Apply(order)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("rejects out of range", func(t *testing.T) {
		if _, err := (Move{RangeStart: 4, RangeLength: 2, InsertBefore: 0}).Apply(order); err == nil {
			t.Error("expected error")
		}
	})
}

func TestParseSortKey(t *testing.T) {
	tc := []struct {
		in   string
		want SortKey
	}{
		{"bpm", KeyBPM},
		{"ArtistSeparation", KeyArtistSeparation},
		{"separation", KeyArtistSeparation},
		{" shuffle ", KeyRandom},
		{"index", KeyIndex},
	}
	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSortKey(tt.in)
			if err != nil || got != tt.want {
				t.Errorf("ParseSortKey(%q) = %v, %v", tt.in, got, err)
			}
		})
	}

	if _, err := ParseSortKey("tempo-ish"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestSession(t *testing.T) {
	now := time.Now()
	tc := []struct {
		name    string
		session Session
		expired bool
	}{
		{"unknown expiry", Session{AccessToken: "t"}, false},
		{"future expiry", Session{AccessToken: "t", ExpiresAt: now.Add(time.Hour)}, false},
		{"past expiry", Session{AccessToken: "t", ExpiresAt: now.Add(-time.Second)}, true},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Expired(now); got != tt.expired {
				t.Errorf("Expired() = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestParsePlaylistID(t *testing.T) {
	tc := []struct {
		in   string
		want string
		err  bool
	}{
		{"37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M", false},
		{"  abc  ", "abc", false},
		{"spotify:playlist:abc", "abc", false},
		{"https://open.spotify.com/playlist/abc?si=123", "abc", false},
		{"https://open.spotify.com/intl-de/playlist/abc", "abc", false},
		{"https://open.spotify.com/album/abc", "", true},
		{"spotify:track:abc", "", true},
		{"", "", true},
	}
	for _, tt := range tc {
		got, err := ParsePlaylistID(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParsePlaylistID(%q) = %q, %v", tt.in, got, err)
		}
	}
}
