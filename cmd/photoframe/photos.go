package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/openmined/photoframe/internal/controlplane"
	"github.com/openmined/photoframe/internal/cpclient"
	"github.com/openmined/photoframe/internal/daemon"
	"github.com/openmined/photoframe/internal/manifest"
	"github.com/openmined/photoframe/internal/photosync"
)

var osFs = afero.NewOsFs()

func init() {
	rootCmd.AddCommand(newPhotosCmd())
	rootCmd.AddCommand(newNotifyCmd())
}

func newPhotosCmd() *cobra.Command {
	var order string

	cmd := &cobra.Command{
		Use:   "photos",
		Short: "List the photos the frame is showing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			if order != "" && order != controlplane.OrderNewest && order != controlplane.OrderOldest {
				return fmt.Errorf("invalid order %q: use %s or %s", order, controlplane.OrderNewest, controlplane.OrderOldest)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var m manifest.Manifest
			handled, err := viaDaemon(cmd, cfg, func(ctx context.Context, cp *cpclient.Client) error {
				m, err = cp.Photos(ctx, order)
				return err
			})
			if !handled {
				// the manifest is only replaced by rename, reading it unlocked is safe
				m, err = manifest.NewStore(osFs, cfg.CacheDir).Load()
				m = sortPhotos(m, order)
			}
			if err != nil {
				return err
			}

			listPhotos(cmd.OutOrStdout(), m)
			return nil
		},
	}

	cmd.Flags().StringVar(&order, "order", "", "Sort by last modified: newest or oldest (default: manifest order)")
	return cmd
}

func newNotifyCmd() *cobra.Command {
	var file string
	var useDaemon bool

	cmd := &cobra.Command{
		Use:   "notify [key]...",
		Short: "Record photos that were already uploaded and copied into the cache",
		Long: "Record photos that another tool already uploaded to the bucket and copied into the cache. " +
			"Keys come from the arguments or from an upload notification file ({\"newPhotos\":[...]}).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			if file == "" && len(args) == 0 {
				return errors.New("nothing to notify: pass keys or --file")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			entries, err := notificationEntries(osFs, cfg.CacheDir, file, args, time.Now())
			if err != nil {
				return err
			}

			var m manifest.Manifest
			if useDaemon {
				handled, err := viaDaemon(cmd, cfg, func(ctx context.Context, cp *cpclient.Client) error {
					m, err = cp.NotifyNewPhotos(ctx, entries)
					return err
				})
				if handled {
					if err == nil {
						printPhotos(cmd.OutOrStdout(), "notified", m)
					}
					return err
				}
			}

			return withApp(cmd, cfg, func(ctx context.Context, app *daemon.App) error {
				m, err := app.Ingester.IngestEntries(ctx, entries)
				if err != nil {
					return err
				}
				printPhotos(cmd.OutOrStdout(), "notified", m)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Upload notification file to read entries from")
	cmd.Flags().BoolVar(&useDaemon, "via-daemon", true, "Hand the work to a running daemon when one answers")
	return cmd
}

// notificationEntries collects the entries to record: those listed in file,
// then one per key. Key entries take their size from the cached copy when
// there is one.
func notificationEntries(fsys afero.Fs, cacheDir, file string, keys []string, now time.Time) ([]manifest.Entry, error) {
	entries := make([]manifest.Entry, 0, len(keys))

	if file != "" {
		data, err := afero.ReadFile(fsys, file)
		if err != nil {
			return nil, err
		}
		var n photosync.UploadNotification
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("decode %s: %w", file, err)
		}
		entries = append(entries, n.NewPhotos...)
	}

	for _, key := range keys {
		e := manifest.Entry{
			URL:          manifest.URLFor(key),
			Key:          key,
			LastModified: now.UTC().Format(time.RFC3339),
		}
		if info, err := fsys.Stat(filepath.Join(cacheDir, filepath.FromSlash(key))); err == nil && !info.IsDir() {
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}

	return entries, nil
}

func sortPhotos(m manifest.Manifest, order string) manifest.Manifest {
	switch order {
	case controlplane.OrderNewest:
		return m.SortedByLastModified(true)
	case controlplane.OrderOldest:
		return m.SortedByLastModified(false)
	}
	return m
}

func listPhotos(w io.Writer, m manifest.Manifest) {
	for _, e := range m {
		fmt.Fprintf(w, "  %s %s %s\n", cyan.Render(e.Key), gray.Render(e.LastModified), gray.Render(humanize.Bytes(uint64(e.Size))))
	}
	printPhotos(w, "showing", m)
}
