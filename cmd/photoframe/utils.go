package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/openmined/photoframe/internal/config"
	"github.com/openmined/photoframe/internal/cpclient"
	"github.com/openmined/photoframe/internal/daemon"
)

var (
	// https://github.com/muesli/termenv/blob/master/ansicolors.go
	red   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	green = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	cyan  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	bold  = lipgloss.NewStyle().Bold(true)
)

// withApp builds the sync components and holds the cache lock while fn runs.
func withApp(cmd *cobra.Command, cfg *config.Config, fn func(ctx context.Context, app *daemon.App) error) error {
	ctx := cmd.Context()

	app, err := daemon.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	if err := app.Setup(); err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, app)
}

// viaDaemon runs fn against a running daemon. It reports false when no
// daemon answers the ping so the caller can work on the cache itself. Errors
// after a successful ping are returned as is, the daemon may have applied
// part of the request.
func viaDaemon(cmd *cobra.Command, cfg *config.Config, fn func(ctx context.Context, cp *cpclient.Client) error) (bool, error) {
	cp := cpclient.New(cfg.HTTPAddr, cfg.HTTPToken)
	status, err := cp.Ping(cmd.Context())
	if errors.Is(err, cpclient.ErrDaemonUnreachable) {
		slog.Debug("daemon unreachable, running locally", "addr", cfg.HTTPAddr)
		return false, nil
	} else if err != nil {
		return true, err
	}

	slog.Debug("using daemon", "addr", cfg.HTTPAddr, "version", status.Version)
	return true, fn(cmd.Context(), cp)
}
