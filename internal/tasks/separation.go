package tasks

import (
	"slices"

	"github.com/alpsaur/SortYourMusic/internal/models"
)

type artistGroup struct {
	rows       []models.Row
	next       int
	first      int // order of first appearance
	lastPlaced int // output position of the most recent pick, -1 if none
}

func (g *artistGroup) remaining() int { return len(g.rows) - g.next }

// separateArtists spreads rows sharing an artist as far apart as the counts allow.
//
// Rows are grouped by primary artist. Each step places the next row of the group with the most rows
// left, skipping the group placed last and any group whose next row credits an artist of the row just
// placed; a sharing group is taken only when no other is left. Ties go to the least recently placed
// group, then to the group that appears first. Rows keep their relative order within a group, and
// rows without an artist form groups of one.
func separateArtists(rows []models.Row) []models.Row {
	var groups []*artistGroup
	byArtist := make(map[string]*artistGroup)
	for _, r := range rows {
		a := r.Track.PrimaryArtist()
		g, ok := byArtist[a]
		if !ok || a == "" {
			g = &artistGroup{first: len(groups), lastPlaced: -1}
			groups = append(groups, g)
			if a != "" {
				byArtist[a] = g
			}
		}
		g.rows = append(g.rows, r)
	}

	out := make([]models.Row, 0, len(rows))
	var prev *artistGroup
	for len(out) < len(rows) {
		var last []string
		if len(out) > 0 {
			last = out[len(out)-1].Track.Artists
		}
		pick := choose(groups, prev, last)
		if pick == nil {
			pick = prev
		}
		out = append(out, pick.rows[pick.next])
		pick.next++
		pick.lastPlaced = len(out) - 1
		prev = pick
	}
	return out
}

func choose(groups []*artistGroup, prev *artistGroup, last []string) *artistGroup {
	var free, sharing *artistGroup
	for _, g := range groups {
		if g == prev || g.remaining() == 0 {
			continue
		}
		if sharesArtist(g.rows[g.next].Track.Artists, last) {
			if sharing == nil || better(g, sharing) {
				sharing = g
			}
			continue
		}
		if free == nil || better(g, free) {
			free = g
		}
	}
	if free != nil {
		return free
	}
	return sharing
}

func sharesArtist(a, b []string) bool {
	for _, x := range a {
		if x != "" && slices.Contains(b, x) {
			return true
		}
	}
	return false
}

func better(g, than *artistGroup) bool {
	if g.remaining() != than.remaining() {
		return g.remaining() > than.remaining()
	}
	if g.lastPlaced != than.lastPlaced {
		return g.lastPlaced < than.lastPlaced
	}
	return g.first < than.first
}
