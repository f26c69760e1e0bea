package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/openmined/photoframe/internal/cpclient"
	"github.com/openmined/photoframe/internal/daemon"
	"github.com/openmined/photoframe/internal/manifest"
	"github.com/openmined/photoframe/internal/photosync"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newRefreshCmd())
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass against the bucket and exit",
		Long:  "Run one sync pass directly on the cache. Fails while a daemon holds the cache; use `refresh` then.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			return withApp(cmd, cfg, func(ctx context.Context, app *daemon.App) error {
				report, err := app.Engine.SyncReport(ctx)
				printReport(cmd.OutOrStdout(), report)
				return err
			})
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Ask the running daemon to sync now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var m manifest.Manifest
			ok, err := viaDaemon(cmd, cfg, func(ctx context.Context, cp *cpclient.Client) error {
				m, err = cp.Refresh(ctx)
				return err
			})
			if !ok {
				return fmt.Errorf("no daemon answering on %s", cfg.HTTPAddr)
			}
			if err != nil {
				return err
			}

			printPhotos(cmd.OutOrStdout(), "refreshed", m)
			return nil
		},
	}
}

func printReport(w io.Writer, report *photosync.Report) {
	if report == nil {
		return
	}
	status := green.Render("synced")
	if report.Failed > 0 {
		status = red.Render("synced with failures")
	}
	fmt.Fprintf(w, "%s %s %s\n",
		status,
		bold.Render(fmt.Sprintf("%d photos", len(report.Manifest))),
		gray.Render(fmt.Sprintf("(%d downloaded, %d deleted, %d failed in %s)",
			report.Downloaded, report.Deleted, report.Failed, report.Duration.Round(1e6))),
	)
}

func printPhotos(w io.Writer, verb string, m manifest.Manifest) {
	fmt.Fprintf(w, "%s %s\n", green.Render(verb), bold.Render(fmt.Sprintf("%d photos", len(m))))
}
