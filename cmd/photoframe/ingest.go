package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openmined/photoframe/internal/cpclient"
	"github.com/openmined/photoframe/internal/daemon"
	"github.com/openmined/photoframe/internal/photosync"
)

func init() {
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newImportCmd())
}

func newIngestCmd() *cobra.Command {
	var folder string
	var useDaemon bool

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Upload photos to the bucket and add them to the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if folder == "" {
				folder = cfg.SelfieFolder
			}

			files, err := absPaths(args)
			if err != nil {
				return err
			}

			if useDaemon {
				handled, err := viaDaemon(cmd, cfg, func(ctx context.Context, cp *cpclient.Client) error {
					for _, f := range files {
						entry, err := cp.Ingest(ctx, f, folder)
						if err != nil {
							return err
						}
						printIngested(cmd, entry.Key)
					}
					return nil
				})
				if handled {
					return err
				}
			}

			return withApp(cmd, cfg, func(ctx context.Context, app *daemon.App) error {
				for _, f := range files {
					entry, err := app.Ingester.Ingest(ctx, f, folder)
					if err != nil {
						return err
					}
					printIngested(cmd, entry.Key)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&folder, "folder", "f", "", "Bucket folder to upload into (default: the selfie folder)")
	cmd.Flags().BoolVar(&useDaemon, "via-daemon", true, "Hand the work to a running daemon when one answers")
	return cmd
}

func newImportCmd() *cobra.Command {
	var folder string
	var useDaemon bool

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Upload every image below a directory, e.g. a USB stick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if folder == "" {
				folder = cfg.SelfieFolder
			}

			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			var result *photosync.ImportResult
			if useDaemon {
				handled, err := viaDaemon(cmd, cfg, func(ctx context.Context, cp *cpclient.Client) error {
					result, err = cp.Import(ctx, dir, folder)
					return err
				})
				if handled {
					if err != nil {
						return err
					}
					printImport(cmd, result)
					return nil
				}
			}

			return withApp(cmd, cfg, func(ctx context.Context, app *daemon.App) error {
				result, err := app.Ingester.Import(ctx, dir, folder)
				if result != nil {
					printImport(cmd, result)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&folder, "folder", "f", "", "Bucket folder to upload into (default: the selfie folder)")
	cmd.Flags().BoolVar(&useDaemon, "via-daemon", true, "Hand the work to a running daemon when one answers")
	return cmd
}

func absPaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

func printIngested(cmd *cobra.Command, key string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green.Render("ingested"), cyan.Render(key))
}

func printImport(cmd *cobra.Command, result *photosync.ImportResult) {
	w := cmd.OutOrStdout()
	for _, e := range result.Imported {
		fmt.Fprintf(w, "  %s %s\n", green.Render("+"), cyan.Render(e.Key))
	}
	summary := fmt.Sprintf("%d imported, %d skipped, %d failed", len(result.Imported), result.Skipped, result.Failed)
	if result.Failed > 0 {
		fmt.Fprintln(w, red.Render(summary))
		return
	}
	fmt.Fprintln(w, bold.Render(summary))
}

