package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openmined/photoframe/internal/config"
	"github.com/openmined/photoframe/internal/logging"
	"github.com/openmined/photoframe/internal/version"
)

var logCloser io.Closer

var rootCmd = &cobra.Command{
	Use:           "photoframe",
	Short:         "Keep a local photo cache in sync with an S3 bucket",
	Version:       version.Detailed(),
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
}

// flagKeys maps config keys to the flags that may override them.
var flagKeys = map[string]string{
	"cache_dir":     "cache-dir",
	"bucket":        "bucket",
	"region":        "region",
	"function_name": "function-name",
	"endpoint":      "endpoint",
	"http_addr":     "http-addr",
	"http_token":    "http-token",
	"watch_dir":     "watch-dir",
	"sync_interval": "sync-interval",
	"cache_life":    "cache-life",
	"selfie_folder": "selfie-folder",
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "photoframe config file")
	rootCmd.PersistentFlags().String("cache-dir", "", "Local photo cache directory")
	rootCmd.PersistentFlags().StringP("bucket", "b", "", "S3 bucket holding the photos")
	rootCmd.PersistentFlags().StringP("region", "r", "", "AWS region of the bucket")
	rootCmd.PersistentFlags().String("function-name", "", "Lambda function computing the diff (empty runs it in process)")
	rootCmd.PersistentFlags().String("endpoint", "", "S3 compatible endpoint, e.g. a MinIO url")
	rootCmd.PersistentFlags().StringP("http-addr", "a", config.DefaultHTTPAddr, "Control plane address")
	rootCmd.PersistentFlags().StringP("http-token", "t", "", "Control plane access token")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logs")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, red.Render("Error: ")+err.Error())
		stop()
		os.Exit(1)
	}
}

// setupLogging logs to stdout, and to a file for commands with a --log-file
// flag.
func setupLogging(cmd *cobra.Command) error {
	opts := logging.Options{Level: slog.LevelInfo}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		opts.Level = slog.LevelDebug
	}
	if f := cmd.Flags().Lookup("log-file"); f != nil {
		opts.FilePath = f.Value.String()
	}

	closer, err := logging.Setup(opts)
	if err != nil {
		return fmt.Errorf("logging setup: %w", err)
	}
	logCloser = closer
	return nil
}

// loadConfig reads the resolved config file, the environment and any flags
// the command defines.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v, err := config.NewViper(resolveConfigPath(cmd))
	if err != nil {
		return nil, err
	}
	bindFlags(v, cmd)

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}
	slog.Debug("config loaded", "config", cfg)
	return cfg, nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}
