package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/alpsaur/SortYourMusic/internal/formatter"
	"github.com/alpsaur/SortYourMusic/internal/models"
	"github.com/alpsaur/SortYourMusic/internal/shared"
	"github.com/alpsaur/SortYourMusic/internal/tasks"
	"github.com/urfave/cli/v3"
)

func parsePlaylistID(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: --id", shared.ErrMissingArgument)
	}
	id, err := models.ParsePlaylistID(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	return id, nil
}

// parseSortSpec reads --key, --desc, and --seed.
func parseSortSpec(cmd *cli.Command) (models.SortSpec, error) {
	key, err := models.ParseSortKey(cmd.String("key"))
	if err != nil {
		return models.SortSpec{}, fmt.Errorf("%w: %w", shared.ErrInvalidFlag, err)
	}
	spec := models.SortSpec{Key: key}
	if cmd.Bool("desc") {
		spec.Direction = models.Descending
	}
	if s := cmd.String("seed"); s != "" {
		seed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return models.SortSpec{}, fmt.Errorf("%w: --seed %q", shared.ErrInvalidFlag, s)
		}
		spec.Seed = &seed
	}
	return spec, nil
}

// logProgress drains progress into the logger until the returned stop func is called.
func (r *Runner) logProgress() (chan<- tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 32)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range progress {
			if u.Step <= 1 || u.Step == u.Total {
				r.logger.Info(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
			} else {
				r.logger.Debug(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
			}
		}
	}()
	return progress, func() {
		close(progress)
		wg.Wait()
	}
}

// load runs the aggregation pipeline for the --id playlist.
func (r *Runner) load(ctx context.Context, cmd *cli.Command) (*models.PlaylistTable, *tasks.LoadReport, error) {
	id, err := parsePlaylistID(cmd.String("id"))
	if err != nil {
		return nil, nil, err
	}
	if err := r.ensureEngine(ctx); err != nil {
		return nil, nil, err
	}
	if err := r.requireLogin(ctx); err != nil {
		return nil, nil, err
	}

	progress, stop := r.logProgress()
	table, report, err := r.engine.LoadPlaylist(ctx, id, progress)
	stop()
	if err != nil {
		return nil, nil, err
	}

	if report.Degraded() {
		r.logger.Warn("some columns are incomplete",
			"tracks", report.Tracks.Status, "albums", report.Albums.Status,
			"features", report.Features.Status, "bpm", report.BPM.Status)
	}
	return table, report, nil
}

// render writes t to --output, or to stdout in --format.
func (r *Runner) render(cmd *cli.Command, t *models.PlaylistTable) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidFlag, err)
	}

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(t, format, path)
		if err != nil {
			return err
		}
		r.logger.Infof("playlist exported to %v with %v tracks", written, t.Len())
		return r.writePlain("✓ Playlist exported to %s\n", written)
	}

	data, err := formatter.Export(t, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeReport(report *tasks.LoadReport) {
	r.writePlainHeader("Load report: " + report.Name)
	for _, s := range []struct {
		name string
		src  tasks.SourceReport
	}{
		{"Tracks", report.Tracks},
		{"Albums", report.Albums},
		{"Features", report.Features},
		{"BPM", report.BPM},
	} {
		r.writePlain("%-9s %-12s %d/%d", s.name, s.src.Status, s.src.Covered, s.src.Requested)
		if s.src.Err != nil {
			r.writePlain("  (%v)", s.src.Err)
		}
		r.writePlain("\n")
	}
}

// PlaylistShow loads a playlist and renders it in its current order.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	table, report, err := r.load(ctx, cmd)
	if err != nil {
		return err
	}
	if err := r.render(cmd, table); err != nil {
		return err
	}
	if cmd.Bool("report") {
		r.writeReport(report)
	}
	return nil
}

// PlaylistSort loads a playlist, sorts it, and with --save or --dry-run plans the reorder upstream.
func (r *Runner) PlaylistSort(ctx context.Context, cmd *cli.Command) error {
	spec, err := parseSortSpec(cmd)
	if err != nil {
		return err
	}
	table, report, err := r.load(ctx, cmd)
	if err != nil {
		return err
	}

	sorted, err := r.engine.Sort(spec)
	if err != nil {
		return err
	}
	r.logger.Info("sorted", "key", spec.Key, "direction", spec.Direction, "tracks", sorted.Len())

	dryRun := cmd.Bool("dry-run")
	if !cmd.Bool("save") && !dryRun {
		if err := r.engine.Commit(sorted); err != nil {
			return err
		}
		if err := r.render(cmd, r.engine.Table()); err != nil {
			return err
		}
		if cmd.Bool("report") {
			r.writeReport(report)
		}
		return nil
	}

	progress, stop := r.logProgress()
	result, err := r.engine.SaveOrder(ctx, table.PlaylistID, sorted.Identities(), tasks.SaveOptions{DryRun: dryRun}, progress)
	stop()
	if err != nil {
		return err
	}

	if dryRun {
		if err := r.render(cmd, sorted); err != nil {
			return err
		}
		_, err := r.output.Write(formatter.ExportMoves(result.Moves))
		return err
	}

	if err := r.render(cmd, r.engine.Table()); err != nil {
		return err
	}
	if cmd.Bool("report") {
		r.writeReport(report)
	}
	return r.writePlain("✓ Saved: %d moves applied (snapshot %s)\n", result.Applied, result.SnapshotID)
}
