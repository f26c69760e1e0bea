package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/openmined/photoframe/internal/cpclient"
	"github.com/openmined/photoframe/internal/daemon"
	"github.com/openmined/photoframe/internal/manifest"
)

func init() {
	rootCmd.AddCommand(newPurgeCmd())
	rootCmd.AddCommand(newRemoveCmd())
}

func newPurgeCmd() *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Drop cached photos older than --max-age and fetch the bucket again",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if maxAge <= 0 {
				maxAge = cfg.CacheLife
			}
			if maxAge <= 0 {
				return errors.New("no max age: pass --max-age or set cache_life")
			}

			var m manifest.Manifest
			handled, err := viaDaemon(cmd, cfg, func(ctx context.Context, cp *cpclient.Client) error {
				m, err = cp.Purge(ctx, maxAge)
				return err
			})
			if handled {
				if err == nil {
					printPhotos(cmd.OutOrStdout(), "purged", m)
				}
				return err
			}

			return withApp(cmd, cfg, func(ctx context.Context, app *daemon.App) error {
				m, err := app.GC.Purge(ctx, maxAge)
				if err != nil {
					return err
				}
				printPhotos(cmd.OutOrStdout(), "purged", m)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Maximum age of cached photos (default: cache_life)")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <key>...",
		Short: "Delete photos from the bucket and the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var m manifest.Manifest
			handled, err := viaDaemon(cmd, cfg, func(ctx context.Context, cp *cpclient.Client) error {
				m, err = cp.Remove(ctx, args)
				return err
			})
			if handled {
				if err == nil {
					printPhotos(cmd.OutOrStdout(), "removed", m)
				}
				return err
			}

			return withApp(cmd, cfg, func(ctx context.Context, app *daemon.App) error {
				m, err := app.Remover.Remove(ctx, args)
				if err != nil {
					return err
				}
				printPhotos(cmd.OutOrStdout(), "removed", m)
				return nil
			})
		},
	}
}
