package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/openmined/photoframe/internal/blob"
	"github.com/openmined/photoframe/internal/cache"
	"github.com/openmined/photoframe/internal/config"
	"github.com/openmined/photoframe/internal/manifest"
	"github.com/openmined/photoframe/internal/photosync"
	"github.com/openmined/photoframe/internal/remote"
)

// App holds the sync components built from a config. One shot commands use
// it directly; the daemon wraps it in a photosync.Service.
type App struct {
	Config   *config.Config
	Cache    *cache.Cache
	Store    *manifest.Store
	Blob     blob.Client
	Invoker  remote.Invoker
	Engine   *photosync.Engine
	GC       *photosync.GC
	Ingester *photosync.Ingester
	Remover  *photosync.Remover
}

// NewApp connects to the bucket and, when a function name is configured, to
// the deployed diff function. Otherwise diffs run in process.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	c, err := cache.NewOnDisk(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	client, err := blob.NewS3ClientWithConfig(ctx, blobConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("blob client: %w", err)
	}

	var invoker remote.Invoker
	if cfg.UsesLambda() {
		invoker, err = remote.NewLambdaInvokerWithConfig(ctx, &remote.LambdaConfig{
			FunctionName: cfg.FunctionName,
			Region:       cfg.Region,
			AccessKey:    cfg.AccessKey,
			SecretKey:    cfg.SecretKey,
			MaxAttempts:  cfg.MaxAttempts,
		})
		if err != nil {
			return nil, fmt.Errorf("lambda client: %w", err)
		}
		slog.Debug("diff via lambda", "function", cfg.FunctionName)
	} else {
		invoker = remote.NewLocalInvoker(remote.NewHandler(remote.NewLister(client), cfg.Bucket))
		slog.Debug("diff in process", "bucket", cfg.Bucket)
	}

	return newApp(cfg, c, client, invoker, clockwork.NewRealClock()), nil
}

// blobConfig picks the MinIO flavour when an endpoint is configured.
func blobConfig(cfg *config.Config) *blob.S3Config {
	var bc *blob.S3Config
	if cfg.Endpoint != "" {
		bc = blob.WithMinioConfig(cfg.Endpoint, cfg.Bucket, cfg.AccessKey, cfg.SecretKey)
		if cfg.Region != "" {
			bc.Region = cfg.Region
		}
	} else {
		bc = blob.WithS3Config(cfg.Bucket, cfg.Region, cfg.AccessKey, cfg.SecretKey)
	}
	if cfg.MaxAttempts > 0 {
		bc.MaxAttempts = cfg.MaxAttempts
	}
	return bc
}

func newApp(cfg *config.Config, c *cache.Cache, client blob.Client, invoker remote.Invoker, clock clockwork.Clock) *App {
	store := manifest.NewStore(c.Fs(), c.Root)
	engine := photosync.NewEngine(store, c, client, invoker, &photosync.EngineConfig{
		Container:           cfg.Bucket,
		DownloadConcurrency: cfg.DownloadConcurrency,
	})

	return &App{
		Config:   cfg,
		Cache:    c,
		Store:    store,
		Blob:     client,
		Invoker:  invoker,
		Engine:   engine,
		GC:       photosync.NewGC(c, engine, clock),
		Ingester: photosync.NewIngester(client, c, store, clock),
		Remover:  photosync.NewRemover(client, engine),
	}
}

// Setup creates the cache directory and takes the process lock.
func (a *App) Setup() error {
	if err := a.Cache.Setup(); err != nil {
		return err
	}
	return a.Cache.Lock()
}

func (a *App) Close() {
	if err := a.Cache.Unlock(); err != nil {
		slog.Warn("cache unlock", "error", err)
	}
}

func (a *App) NewService() *photosync.Service {
	return photosync.NewService(&photosync.ServiceConfig{
		SyncInterval: a.Config.SyncInterval,
		CacheLife:    a.Config.CacheLife,
		SelfieFolder: a.Config.SelfieFolder,
		WatchDir:     a.Config.WatchDir,
	}, a.Engine, a.GC, a.Ingester, a.Remover)
}
