package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/photoframe/internal/config"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "path to config file")
	return cmd
}

func isolateHome(t *testing.T) string {
	t.Helper()
	oldHome := home
	home = t.TempDir()
	t.Cleanup(func() { home = oldHome })
	return home
}

func TestResolveConfigPath(t *testing.T) {
	t.Run("flag beats env", func(t *testing.T) {
		cmd := newTestCmd()
		t.Setenv(configPathEnv, "/tmp/env/config.json")
		require.NoError(t, cmd.PersistentFlags().Set("config", "/tmp/flag/config.json"))

		assert.Equal(t, "/tmp/flag/config.json", resolveConfigPath(cmd))
	})

	t.Run("env when no flag", func(t *testing.T) {
		cmd := newTestCmd()
		t.Setenv(configPathEnv, "/tmp/env/config.json")

		assert.Equal(t, "/tmp/env/config.json", resolveConfigPath(cmd))
	})

	t.Run("existing xdg file", func(t *testing.T) {
		h := isolateHome(t)
		t.Setenv(configPathEnv, "")

		existing := filepath.Join(h, ".config", "photoframe", "config.json")
		require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
		require.NoError(t, os.WriteFile(existing, []byte("{}"), 0o644))

		assert.Equal(t, existing, resolveConfigPath(newTestCmd()))
	})

	t.Run("default", func(t *testing.T) {
		isolateHome(t)
		t.Setenv(configPathEnv, "")

		assert.Equal(t, config.DefaultConfigPath, resolveConfigPath(newTestCmd()))
	})
}

func TestConfigPathCommand(t *testing.T) {
	root := newTestCmd()
	root.AddCommand(newConfigPathCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config-path", "--config", "/etc/photoframe.json"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "/etc/photoframe.json", strings.TrimSpace(out.String()))
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	for _, key := range []string{"PHOTOFRAME_BUCKET", "BUCKET_NAME", "PHOTOFRAME_REGION", "AWS_REGION", "PHOTOFRAME_SYNC_INTERVAL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"bucket": "from-file",
		"region": "eu-west-1",
		"cache_dir": "`+filepath.ToSlash(filepath.Join(dir, "cache"))+`"
	}`), 0o644))

	var got *config.Config
	root := newTestCmd()
	root.PersistentFlags().StringP("bucket", "b", "", "")
	daemonCmd := &cobra.Command{
		Use: "daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			got, err = loadConfig(cmd)
			return err
		},
	}
	daemonCmd.Flags().Duration("sync-interval", config.DefaultSyncInterval, "")
	root.AddCommand(daemonCmd)

	root.SetArgs([]string{"daemon", "--config", path, "--bucket", "from-flag", "--sync-interval", "5m"})
	require.NoError(t, root.Execute())

	require.NotNil(t, got)
	assert.Equal(t, "from-flag", got.Bucket)
	assert.Equal(t, "eu-west-1", got.Region)
	assert.Equal(t, 5*time.Minute, got.SyncInterval)
	assert.Equal(t, path, got.Path)
}
