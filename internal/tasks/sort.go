package tasks

import (
	"cmp"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/alpsaur/SortYourMusic/internal/models"
	"github.com/samber/lo"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortTable returns a new table holding t's rows in the order spec describes. t is not modified.
//
// Column keys sort unknown values after every known value in either direction, and break ties by
// ascending original position; descending flips only the value comparison.
func SortTable(t *models.PlaylistTable, spec models.SortSpec) (*models.PlaylistTable, error) {
	if t == nil {
		return nil, fmt.Errorf("sort: nil table")
	}
	rows := t.Rows()

	switch spec.Key {
	case models.KeyArtistSeparation:
		rows = separateArtists(rows)
	case models.KeyRandom:
		shuffleRows(rows, spec.Seed)
	default:
		value, err := comparatorFor(spec.Key)
		if err != nil {
			return nil, err
		}
		slices.SortStableFunc(rows, func(a, b models.Row) int {
			c, known := value(a, b)
			if known && spec.Direction == models.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
			return cmp.Compare(a.Track.OriginalPosition, b.Track.OriginalPosition)
		})
	}

	return t.WithOrder(lo.Map(rows, func(r models.Row, _ int) string { return r.Key }))
}

// valueCmp compares two rows on one column. known is false when either side is unknown, in which case
// c already places the unknown side last and must not be flipped.
type valueCmp func(a, b models.Row) (c int, known bool)

func comparatorFor(key models.SortKey) (valueCmp, error) {
	switch key {
	case models.KeyIndex:
		return func(a, b models.Row) (int, bool) {
			return cmp.Compare(a.Track.OriginalPosition, b.Track.OriginalPosition), true
		}, nil
	case models.KeyTitle:
		return textCmp(func(r models.Row) string { return r.Track.Title }), nil
	case models.KeyArtist:
		return textCmp(func(r models.Row) string { return r.Track.ArtistLine() }), nil
	case models.KeyRelease:
		return func(a, b models.Row) (int, bool) {
			return unknownLast(a.ReleaseDate() != "", b.ReleaseDate() != "", func() int {
				return strings.Compare(a.ReleaseDate(), b.ReleaseDate())
			})
		}, nil
	case models.KeyLength:
		return intCmp(func(r models.Row) (int, bool) { return r.Track.DurationMs, r.Track.DurationMs > 0 }), nil
	case models.KeyPopularity:
		return intCmp(func(r models.Row) (int, bool) { return r.Track.Popularity, r.Track.Identity() != "" }), nil
	case models.KeyBPM:
		return measureCmp(func(f models.FeatureSet) models.Measure { return f.Tempo }), nil
	case models.KeyEnergy:
		return measureCmp(func(f models.FeatureSet) models.Measure { return f.Energy }), nil
	case models.KeyDance:
		return measureCmp(func(f models.FeatureSet) models.Measure { return f.Danceability }), nil
	case models.KeyLoud:
		return measureCmp(func(f models.FeatureSet) models.Measure { return f.Loudness }), nil
	case models.KeyValence:
		return measureCmp(func(f models.FeatureSet) models.Measure { return f.Valence }), nil
	case models.KeyAcoustic:
		return measureCmp(func(f models.FeatureSet) models.Measure { return f.Acousticness }), nil
	default:
		return nil, fmt.Errorf("unsupported sort key %q", key)
	}
}

func unknownLast(aKnown, bKnown bool, compare func() int) (int, bool) {
	switch {
	case aKnown && bKnown:
		return compare(), true
	case aKnown:
		return -1, false
	case bKnown:
		return 1, false
	default:
		return 0, false
	}
}

// textCmp compares case-insensitively with the root collation. Empty text is unknown.
func textCmp(field func(models.Row) string) valueCmp {
	coll := collate.New(language.Und, collate.IgnoreCase)
	return func(a, b models.Row) (int, bool) {
		x, y := field(a), field(b)
		return unknownLast(x != "", y != "", func() int { return coll.CompareString(x, y) })
	}
}

func intCmp(field func(models.Row) (int, bool)) valueCmp {
	return func(a, b models.Row) (int, bool) {
		x, xok := field(a)
		y, yok := field(b)
		return unknownLast(xok, yok, func() int { return cmp.Compare(x, y) })
	}
}

func measureCmp(field func(models.FeatureSet) models.Measure) valueCmp {
	return func(a, b models.Row) (int, bool) {
		x, y := field(a.Features), field(b.Features)
		return unknownLast(x.Known, y.Known, func() int { return cmp.Compare(x.Value, y.Value) })
	}
}

// shuffleRows permutes rows in place with Fisher-Yates. A nil seed draws one from the system's secure source.
func shuffleRows(rows []models.Row, seed *uint64) {
	r := newShuffleRand(seed)
	for i := len(rows) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		rows[i], rows[j] = rows[j], rows[i]
	}
}

func newShuffleRand(seed *uint64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	}
	var s [32]byte
	if _, err := crand.Read(s[:]); err != nil {
		// crypto/rand.Read does not fail on supported platforms; fall back to the runtime source.
		binary.LittleEndian.PutUint64(s[:], rand.Uint64())
	}
	return rand.New(rand.NewChaCha8(s))
}
