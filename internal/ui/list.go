package ui

import (
	"fmt"

	"github.com/alpsaur/SortYourMusic/internal/models"
	"github.com/charmbracelet/bubbles/list"
)

var _ list.Item = sortKeyItem{}

var keyDescriptions = map[models.SortKey]string{
	models.KeyIndex:            "Original playlist order",
	models.KeyTitle:            "Track title, case-insensitive",
	models.KeyArtist:           "Primary artist, case-insensitive",
	models.KeyRelease:          "Album release date",
	models.KeyLength:           "Track duration",
	models.KeyPopularity:       "Catalog popularity score",
	models.KeyBPM:              "Tempo in beats per minute",
	models.KeyEnergy:           "Energy, 0 to 100",
	models.KeyDance:            "Danceability, 0 to 100",
	models.KeyLoud:             "Loudness in dB",
	models.KeyValence:          "Valence (positivity), 0 to 100",
	models.KeyAcoustic:         "Acousticness, 0 to 100",
	models.KeyArtistSeparation: "Spread tracks by the same artist apart",
	models.KeyRandom:           "Shuffle",
}

// sortKeyItem wraps [models.SortKey] to implement [list.Item].
type sortKeyItem struct {
	key    models.SortKey
	active bool
}

func (i sortKeyItem) FilterValue() string { return string(i.key) }
func (i sortKeyItem) Title() string {
	if i.active {
		return fmt.Sprintf("%s (current)", i.key)
	}
	return string(i.key)
}
func (i sortKeyItem) Description() string { return keyDescriptions[i.key] }

func newKeyList(current models.SortKey, width, height int) list.Model {
	items := make([]list.Item, len(models.SortKeys))
	selected := 0
	for i, k := range models.SortKeys {
		items[i] = sortKeyItem{key: k, active: k == current}
		if k == current {
			selected = i
		}
	}
	l := list.New(items, list.NewDefaultDelegate(), width, height)
	l.Title = "Sort by"
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.Select(selected)
	return l
}
