package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openmined/photoframe/internal/config"
	"github.com/openmined/photoframe/internal/daemon"
	"github.com/openmined/photoframe/internal/version"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Sync photos periodically and serve the control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			slog.Info("photoframe", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			app, err := daemon.NewApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			d, err := daemon.New(app)
			if err != nil {
				return err
			}

			defer slog.Info("bye!")
			if err := d.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	daemonCmd.Flags().String("log-file", config.DefaultLogFilePath, "Daemon log file, truncated on start")
	daemonCmd.Flags().String("watch-dir", "", "Directory watched for upload and update notifications")
	daemonCmd.Flags().Duration("sync-interval", config.DefaultSyncInterval, "Time between periodic syncs")
	daemonCmd.Flags().Duration("cache-life", 0, "Maximum age of cached photos (0 disables the cache gc)")
	daemonCmd.Flags().String("selfie-folder", config.DefaultSelfieFolder, "Folder for photos ingested without one")

	return daemonCmd
}
