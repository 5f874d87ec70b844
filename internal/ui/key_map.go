package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	enter   key.Binding
	back    key.Binding
	next    key.Binding
	prev    key.Binding
	pick    key.Binding
	reverse key.Binding
	shuffle key.Binding
	save    key.Binding
	open    key.Binding
	yes     key.Binding
	no      key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		next:    key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab/→", "next key")),
		prev:    key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("⇧tab/←", "prev key")),
		pick:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort by…")),
		reverse: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "direction")),
		shuffle: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "shuffle")),
		save:    key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "save order")),
		open:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open playlist")),
		yes:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:      key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.next, k.reverse, k.shuffle, k.save, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.next, k.prev, k.pick, k.reverse},
		{k.shuffle, k.save, k.open, k.quit},
	}
}
