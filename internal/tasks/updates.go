package tasks

import (
	"fmt"

	"github.com/alpsaur/SortYourMusic/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylist Phase = iota
	FetchTracks
	FetchAlbums
	FetchFeatures
	FetchBPM
	Planning
	ApplyMove
	Verify
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylist:
		return "fetch_playlist"
	case FetchTracks:
		return "fetch_tracks"
	case FetchAlbums:
		return "fetch_albums"
	case FetchFeatures:
		return "fetch_features"
	case FetchBPM:
		return "fetch_bpm"
	case Planning:
		return "plan_moves"
	case ApplyMove:
		return "apply_move"
	case Verify:
		return "verify"
	default:
		return ""
	}
}

func fetchPlaylistUpdate(id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist %s...", id),
	}
}

func fetchTracksUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetched %d of %d tracks", step, total),
	}
}

func fetchBatchUpdate(phase Phase, step, total int) ProgressUpdate {
	what := "albums"
	if phase == FetchFeatures {
		what = "audio features"
	}
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching %s...", step, total, what),
	}
}

func fetchBPMUpdate(step, total int, tr models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchBPM,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] BPM lookup: %s - %s", step, total, tr.PrimaryArtist(), tr.Title),
	}
}

func plannedMovesUpdate(moves []models.Move) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Planning,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Planned %d moves", len(moves)),
		Data:    moves,
	}
}

func applyMoveUpdate(step, total int, mv models.Move) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ApplyMove,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Moving %d tracks from %d to before %d", step, total, mv.RangeLength, mv.RangeStart, mv.InsertBefore),
		Data:    mv,
	}
}

func verifyUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   Verify,
		Step:    1,
		Total:   1,
		Message: "Verifying upstream order...",
	}
}
