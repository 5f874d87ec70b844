package models

import (
	"fmt"
	"strings"
)

// SortKey names a sortable column or a computed ordering.
type SortKey string

const (
	KeyIndex            SortKey = "index"
	KeyTitle            SortKey = "title"
	KeyArtist           SortKey = "artist"
	KeyRelease          SortKey = "release"
	KeyLength           SortKey = "length"
	KeyPopularity       SortKey = "popularity"
	KeyBPM              SortKey = "bpm"
	KeyEnergy           SortKey = "energy"
	KeyDance            SortKey = "dance"
	KeyLoud             SortKey = "loud"
	KeyValence          SortKey = "valence"
	KeyAcoustic         SortKey = "acoustic"
	KeyArtistSeparation SortKey = "artistSeparation"
	KeyRandom           SortKey = "random"
)

// SortKeys lists every key in display order.
var SortKeys = []SortKey{
	KeyIndex, KeyTitle, KeyArtist, KeyRelease, KeyLength, KeyPopularity,
	KeyBPM, KeyEnergy, KeyDance, KeyLoud, KeyValence, KeyAcoustic,
	KeyArtistSeparation, KeyRandom,
}

// ParseSortKey matches s case-insensitively against [SortKeys].
// "separation" and "shuffle" are accepted as aliases.
func ParseSortKey(s string) (SortKey, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "separation", "artist-separation", "artist_separation":
		return KeyArtistSeparation, nil
	case "shuffle":
		return KeyRandom, nil
	}
	for _, k := range SortKeys {
		if strings.ToLower(string(k)) == v {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// Direction of a sort.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "descending"
	}
	return "ascending"
}

// SortSpec is a single sort request. Seed is consulted only for [KeyRandom].
type SortSpec struct {
	Key       SortKey
	Direction Direction
	Seed      *uint64
}

// Move relocates RangeLength consecutive items starting at RangeStart so they sit before InsertBefore,
// with positions measured against the order prior to the move.
type Move struct {
	RangeStart   int `json:"range_start"`
	RangeLength  int `json:"range_length"`
	InsertBefore int `json:"insert_before"`
}

// Apply returns order with m applied. It does not modify order.
func (m Move) Apply(order []string) ([]string, error) {
	n := len(order)
	end := m.RangeStart + m.RangeLength
	if m.RangeLength <= 0 || m.RangeStart < 0 || end > n || m.InsertBefore < 0 || m.InsertBefore > n {
		return nil, fmt.Errorf("move %+v out of range for %d items", m, n)
	}
	if m.InsertBefore >= m.RangeStart && m.InsertBefore <= end {
		return append([]string(nil), order...), nil
	}

	block := order[m.RangeStart:end]
	rest := make([]string, 0, n-m.RangeLength)
	rest = append(rest, order[:m.RangeStart]...)
	rest = append(rest, order[end:]...)

	at := m.InsertBefore
	if at > m.RangeStart {
		at -= m.RangeLength
	}

	out := make([]string, 0, n)
	out = append(out, rest[:at]...)
	out = append(out, block...)
	out = append(out, rest[at:]...)
	return out, nil
}
