package ui

import (
	"github.com/alpsaur/SortYourMusic/internal/models"
	"github.com/alpsaur/SortYourMusic/internal/tasks"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	_ tea.Msg = loadedMsg{}
	_ tea.Msg = savedMsg{}
	_ tea.Msg = relayMsg{}
)

// loadedMsg carries the outcome of [Engine.LoadPlaylist].
type loadedMsg struct {
	table  *models.PlaylistTable
	report *tasks.LoadReport
	err    error
}

// savedMsg carries the outcome of [Engine.SaveOrder].
type savedMsg struct {
	result *tasks.SaveResult
	err    error
}

// runWithProgress starts op in a goroutine and returns the command that relays its progress.
//
// The completion message is buffered before the progress channel closes, so the relay always finds it.
func runWithProgress(op func(progress chan<- tasks.ProgressUpdate) tea.Msg) tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan tea.Msg, 1)

	go func() {
		done <- op(progress)
		close(progress)
	}()

	return waitForProgress(progress, done)
}

func waitForProgress(progress <-chan tasks.ProgressUpdate, done <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			return <-done
		}
		return relayMsg{update: update, next: waitForProgress(progress, done)}
	}
}

// relayMsg delivers one progress update along with the command that waits for the next.
type relayMsg struct {
	update tasks.ProgressUpdate
	next   tea.Cmd
}
