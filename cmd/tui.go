package main

import (
	"context"
	"fmt"

	"github.com/alpsaur/SortYourMusic/internal/shared"
	"github.com/alpsaur/SortYourMusic/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive playlist table.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering.
	// The engine is built afterwards so its clients log there too.
	fileLogger, f, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	if err := r.ensureEngine(ctx); err != nil {
		return err
	}
	if err := r.requireLogin(ctx); err != nil {
		return err
	}

	model := ui.NewModel(ctx, r.engine, cmd.String("id"))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
