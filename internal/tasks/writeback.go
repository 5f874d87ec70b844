package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/alpsaur/SortYourMusic/internal/models"
	"github.com/alpsaur/SortYourMusic/internal/shared"
)

// SaveOptions tunes [PlaylistEngine.SaveOrder].
type SaveOptions struct {
	DryRun bool // plan only; issue no writes
}

// SaveResult describes a completed (or planned) write-back.
type SaveResult struct {
	PlaylistID string        `json:"playlist_id"`
	Moves      []models.Move `json:"moves"`
	Applied    int           `json:"applied"`
	SnapshotID string        `json:"snapshot_id"`
	DryRun     bool          `json:"dry_run"`
}

// WriteBackError reports a write-back that stopped part way.
//
// Order is the upstream order after the last applied move, which is also the state a retry starts from.
type WriteBackError struct {
	PlaylistID string
	Applied    int
	Total      int
	Order      []string
	SnapshotID string
	Err        error
}

func (e *WriteBackError) Error() string {
	return fmt.Sprintf("write-back of %s stopped after %d of %d moves: %v", e.PlaylistID, e.Applied, e.Total, e.Err)
}

func (e *WriteBackError) Unwrap() error { return e.Err }

// SaveOrder rewrites playlistID upstream so its items follow newOrder, a sequence of track identities.
//
// The current upstream order is fetched first; newOrder must hold the same items. Moves are issued
// serially and the result is verified with a fresh fetch. When the engine holds a table for the same
// playlist and rows, it is updated to the saved order.
func (e *PlaylistEngine) SaveOrder(ctx context.Context, playlistID string, newOrder []string, opts SaveOptions, progress chan<- ProgressUpdate) (*SaveResult, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	logger := e.logger.With("playlist", playlistID)

	tok, err := e.opts.Tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, fetchPlaylistUpdate(playlistID))
	info, err := e.fetchPlaylist(ctx, tok, playlistID)
	if err != nil {
		return nil, err
	}
	current, err := e.fetchOrder(ctx, tok, playlistID)
	if err != nil {
		return nil, err
	}
	if !sameItems(current, newOrder) {
		return nil, fmt.Errorf("%w: upstream playlist no longer holds the same tracks, reload and sort again", shared.ErrWriteConflict)
	}

	moves, err := PlanMoves(current, newOrder, e.opts.MaxRange)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, plannedMovesUpdate(moves))

	result := &SaveResult{PlaylistID: playlistID, Moves: moves, SnapshotID: info.SnapshotID, DryRun: opts.DryRun}
	if opts.DryRun || len(moves) == 0 {
		if len(moves) == 0 {
			logger.Info("upstream order already matches")
		}
		return result, nil
	}

	order := slices.Clone(current)
	for i, mv := range moves {
		e.sendProgress(progress, applyMoveUpdate(i+1, len(moves), mv))

		snap, err := e.opts.Reorderer.Reorder(ctx, tok, playlistID, mv, result.SnapshotID)
		if err != nil {
			logger.Error("reorder rejected", "move", i+1, "of", len(moves), "error", err)
			return result, &WriteBackError{
				PlaylistID: playlistID,
				Applied:    i,
				Total:      len(moves),
				Order:      order,
				SnapshotID: result.SnapshotID,
				Err:        fmt.Errorf("%w: move %d of %d: %w", shared.ErrWriteConflict, i+1, len(moves), err),
			}
		}
		if order, err = mv.Apply(order); err != nil {
			return result, fmt.Errorf("move %d: %w", i+1, err)
		}
		result.Applied, result.SnapshotID = i+1, snap
	}

	e.sendProgress(progress, verifyUpdate())
	final, err := e.fetchOrder(ctx, tok, playlistID)
	if err != nil {
		return result, &WriteBackError{
			PlaylistID: playlistID,
			Applied:    len(moves),
			Total:      len(moves),
			Order:      order,
			SnapshotID: result.SnapshotID,
			Err:        fmt.Errorf("%w: %w", shared.ErrWriteVerify, err),
		}
	}
	if !slices.Equal(final, newOrder) {
		return result, &WriteBackError{
			PlaylistID: playlistID,
			Applied:    len(moves),
			Total:      len(moves),
			Order:      final,
			SnapshotID: result.SnapshotID,
			Err:        fmt.Errorf("%w: upstream order differs after %d moves", shared.ErrWriteVerify, len(moves)),
		}
	}

	e.adoptSaved(playlistID, newOrder, result.SnapshotID)
	logger.Info("saved playlist order", "moves", len(moves), "snapshot", result.SnapshotID)
	return result, nil
}

// adoptSaved reorders the held table to match a saved order when it describes the same playlist.
func (e *PlaylistEngine) adoptSaved(playlistID string, order []string, snapshot string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.table
	if t == nil || t.PlaylistID != playlistID {
		return
	}
	keys, ok := keysFor(t, order)
	if !ok || t.Reorder(keys) != nil {
		return
	}
	t.SnapshotID = snapshot
}

// keysFor maps identities onto t's row keys, matching repeats by occurrence.
func keysFor(t *models.PlaylistTable, order []string) ([]string, bool) {
	if len(order) != t.Len() {
		return nil, false
	}
	byIdentity := make(map[string][]string)
	for _, r := range t.Rows() {
		id := r.Track.Identity()
		byIdentity[id] = append(byIdentity[id], r.Key)
	}
	keys := make([]string, 0, len(order))
	for _, id := range order {
		q := byIdentity[id]
		if len(q) == 0 {
			return nil, false
		}
		keys = append(keys, q[0])
		byIdentity[id] = q[1:]
	}
	return keys, true
}

// fetchOrder reads the full upstream order. Unlike a load, any page failure fails the read.
func (e *PlaylistEngine) fetchOrder(ctx context.Context, tok, playlistID string) ([]string, error) {
	var (
		order  []string
		cursor string
	)
	for {
		pctx, cancel := context.WithTimeout(ctx, e.opts.SourceTimeout)
		page, err := e.opts.Tracks.FetchTracksPage(pctx, tok, playlistID, cursor)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to read upstream order: %w", err)
		}
		for _, tr := range page.Tracks {
			order = append(order, tr.Identity())
		}
		if page.Next == "" || page.Next == cursor {
			return order, nil
		}
		cursor = page.Next
	}
}

// PlanMoves returns range moves that turn current into target, each at most maxRange items long.
//
// Both are sequences of identities and must hold the same multiset. Positions are filled left to right;
// each move brings the item that belongs at the first mismatched position forward, together with the
// longest run behind it that is already in target order. The plan is checked by replaying it.
func PlanMoves(current, target []string, maxRange int) ([]models.Move, error) {
	if !sameItems(current, target) {
		return nil, fmt.Errorf("%w: orders hold different items", shared.ErrRowMismatch)
	}
	if maxRange <= 0 {
		maxRange = DefaultMaxRange
	}

	sim := occurrenceTokens(current)
	want := occurrenceTokens(target)

	var moves []models.Move
	for i := 0; i < len(want); {
		if sim[i] == want[i] {
			i++
			continue
		}
		j := slices.Index(sim[i+1:], want[i]) + i + 1

		n := 1
		for n < maxRange && i+n < len(want) && j+n < len(sim) && sim[j+n] == want[i+n] {
			n++
		}

		mv := models.Move{RangeStart: j, RangeLength: n, InsertBefore: i}
		next, err := mv.Apply(sim)
		if err != nil {
			return nil, err
		}
		sim = next
		moves = append(moves, mv)
		i += n
	}

	if !slices.Equal(sim, want) {
		return nil, errors.New("move plan does not reproduce the target order")
	}
	return moves, nil
}

// occurrenceTokens makes repeats distinct: the k-th repeat of an identity gets the suffix "#k".
func occurrenceTokens(ids []string) []string {
	seen := make(map[string]int, len(ids))
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id + "#" + strconv.Itoa(seen[id])
		seen[id]++
	}
	return out
}

func sameItems(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, id := range a {
		counts[id]++
	}
	for _, id := range b {
		if counts[id]--; counts[id] < 0 {
			return false
		}
	}
	return true
}
