package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alpsaur/SortYourMusic/internal/models"
	"github.com/alpsaur/SortYourMusic/internal/services"
	"github.com/alpsaur/SortYourMusic/internal/shared"
	"github.com/charmbracelet/log"
)

// Default limits used when [Options] leaves them unset.
const (
	DefaultSourceTimeout  = 30 * time.Second
	DefaultLookupTimeout  = 5 * time.Second
	DefaultBPMConcurrency = 4
	DefaultMaxRange       = 100
)

// TokenSource yields the bearer token threaded to every provider call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Options wires a [PlaylistEngine] to its providers.
//
// Tracks and Reorderer are required. Albums, Features, and BPM are optional; a nil source is reported as skipped.
type Options struct {
	Tokens    TokenSource
	Tracks    services.TrackProvider
	Albums    services.AlbumProvider
	Features  services.FeatureProvider
	BPM       services.BPMProvider
	Reorderer services.Reorderer
	Logger    *log.Logger

	SourceTimeout  time.Duration // per secondary source, and per page of the primary source
	LookupTimeout  time.Duration // per fallback BPM lookup
	BPMConcurrency int           // fallback lookups in flight at once
	MaxRange       int           // largest range a single move may carry
}

// PlaylistEngine owns the loaded table and coordinates loads, sorts, and saves.
type PlaylistEngine struct {
	opts   Options
	logger *log.Logger

	mu         sync.Mutex
	table      *models.PlaylistTable
	generation string
	cancel     context.CancelFunc
}

// NewPlaylistEngine creates a new [PlaylistEngine].
func NewPlaylistEngine(opts Options) (*PlaylistEngine, error) {
	switch {
	case opts.Tokens == nil:
		return nil, fmt.Errorf("%w: token source is required", shared.ErrInvalidArgument)
	case opts.Tracks == nil:
		return nil, fmt.Errorf("%w: track provider is required", shared.ErrInvalidArgument)
	case opts.Reorderer == nil:
		return nil, fmt.Errorf("%w: reorderer is required", shared.ErrInvalidArgument)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = DefaultSourceTimeout
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = DefaultLookupTimeout
	}
	if opts.BPMConcurrency <= 0 {
		opts.BPMConcurrency = DefaultBPMConcurrency
	}
	if opts.MaxRange <= 0 {
		opts.MaxRange = DefaultMaxRange
	}
	return &PlaylistEngine{opts: opts, logger: shared.WithLogger(opts.Logger, "component", "engine")}, nil
}

// Table returns the currently loaded table, or nil.
func (e *PlaylistEngine) Table() *models.PlaylistTable {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table
}

// Sort returns the current table sorted by spec. The current table is not modified until [PlaylistEngine.Commit].
func (e *PlaylistEngine) Sort(spec models.SortSpec) (*models.PlaylistTable, error) {
	t := e.Table()
	if t == nil {
		return nil, shared.ErrNoTable
	}
	return SortTable(t, spec)
}

// Commit replaces the current table's order with sorted's. sorted must hold the same rows.
func (e *PlaylistEngine) Commit(sorted *models.PlaylistTable) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.table == nil {
		return shared.ErrNoTable
	}
	if sorted == nil || sorted.PlaylistID != e.table.PlaylistID || !e.table.SameRows(sorted) {
		return fmt.Errorf("%w: sorted table does not match the loaded playlist", shared.ErrRowMismatch)
	}
	return e.table.Reorder(sorted.Keys())
}

// Cancel abandons any in-flight load. Its results are discarded on arrival.
func (e *PlaylistEngine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.generation = ""
}

// begin starts a new load generation, abandoning the previous one.
func (e *PlaylistEngine) begin(ctx context.Context) (context.Context, string, context.CancelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	e.generation, e.cancel = shared.GenerateID(), cancel
	return ctx, e.generation, cancel
}

// finish installs t if gen is still the current generation.
func (e *PlaylistEngine) finish(gen string, t *models.PlaylistTable) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen {
		return false
	}
	e.table, e.cancel = t, nil
	return true
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
