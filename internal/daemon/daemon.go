package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/openmined/photoframe/internal/controlplane"
	"github.com/openmined/photoframe/internal/metrics"
	"github.com/openmined/photoframe/internal/photosync"
)

const shutdownTimeout = 10 * time.Second

type Daemon struct {
	app *App
	svc *photosync.Service
	cps *controlplane.Server
}

func New(app *App) (*Daemon, error) {
	svc := app.NewService()

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.Collectors()...)
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cps, err := controlplane.NewServer(&controlplane.Config{
		Addr:        app.Config.HTTPAddr,
		AuthToken:   app.Config.HTTPToken,
		CacheLife:   app.Config.CacheLife,
		CORSOrigins: app.Config.CORSOrigins,
	}, svc, registry)
	if err != nil {
		return nil, err
	}

	return &Daemon{
		app: app,
		svc: svc,
		cps: cps,
	}, nil
}

func (d *Daemon) Service() *photosync.Service {
	return d.svc
}

// Start takes the cache lock and runs the sync service and the control
// plane until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	slog.Info("photoframe daemon start", "config", d.app.Config)

	if err := d.app.Setup(); err != nil {
		return err
	}
	defer d.app.Close()

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := d.svc.Start(egCtx); err != nil {
			return fmt.Errorf("failed to start photo sync: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		if err := d.cps.Start(egCtx); err != nil {
			return fmt.Errorf("failed to start control plane: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("stopping daemon")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return d.Stop(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("photoframe daemon failure", "error", err)
		return err
	}

	slog.Info("photoframe daemon stopped")
	return nil
}

func (d *Daemon) Stop(ctx context.Context) error {
	if err := d.cps.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop control plane: %w", err)
	}
	d.svc.Stop()
	return nil
}
