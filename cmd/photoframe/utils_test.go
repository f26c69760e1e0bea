package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/photoframe/internal/config"
	"github.com/openmined/photoframe/internal/cpclient"
)

func TestViaDaemon(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","version":"0.1.0"}`))
	}))
	defer srv.Close()

	down := httptest.NewServer(http.NotFoundHandler())
	downAddr := down.URL
	down.Close()

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	t.Run("daemon answers", func(t *testing.T) {
		called := false
		handled, err := viaDaemon(cmd, &config.Config{HTTPAddr: srv.URL}, func(ctx context.Context, cp *cpclient.Client) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, handled)
		assert.True(t, called)
		assert.Equal(t, []string{"/v1/status"}, paths)
	})

	t.Run("no daemon", func(t *testing.T) {
		called := false
		handled, err := viaDaemon(cmd, &config.Config{HTTPAddr: downAddr}, func(ctx context.Context, cp *cpclient.Client) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.False(t, handled)
		assert.False(t, called, "work is not attempted without a daemon")
	})
}
