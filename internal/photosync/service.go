package photosync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/openmined/photoframe/internal/manifest"
)

const (
	DefaultSyncInterval = time.Hour
	MinSyncInterval     = time.Minute
	DefaultSelfieFolder = "selfies"
)

type ServiceConfig struct {
	SyncInterval time.Duration
	// CacheLife is both the GC period and the maximum file age. Zero disables GC.
	CacheLife    time.Duration
	SelfieFolder string
	// WatchDir is the drop folder. Empty disables the watcher.
	WatchDir string
}

// Service runs every manifest mutation through one scheduler and reports the
// outcome to the notifier.
type Service struct {
	config    *ServiceConfig
	engine    *Engine
	gc        *GC
	ingester  *Ingester
	remover   *Remover
	scheduler *Scheduler
	notifier  *Notifier
	watcher   *DropWatcher
	wg        sync.WaitGroup
}

func NewService(config *ServiceConfig, engine *Engine, gc *GC, ingester *Ingester, remover *Remover) *Service {
	if config.SyncInterval <= 0 {
		config.SyncInterval = DefaultSyncInterval
	}
	if config.SelfieFolder == "" {
		config.SelfieFolder = DefaultSelfieFolder
	}

	svc := &Service{
		config:    config,
		engine:    engine,
		gc:        gc,
		ingester:  ingester,
		remover:   remover,
		scheduler: NewScheduler(),
		notifier:  NewNotifier(),
	}
	if config.WatchDir != "" {
		svc.watcher = NewDropWatcher(config.WatchDir, engine.cache.Fs(), svc)
	}
	return svc
}

func (s *Service) Notifier() *Notifier {
	return s.notifier
}

// Start launches the scheduler, runs the initial sync and installs the
// periodic timers.
func (s *Service) Start(ctx context.Context) error {
	slog.Info("photosync start", "interval", s.config.SyncInterval, "cacheLife", s.config.CacheLife)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.scheduler.Run(ctx)
	}()

	// show whatever is cached right away
	if cached, err := s.engine.Store().Load(); err == nil && len(cached) > 0 {
		s.notifier.Updated("", cached)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runPeriodic(ctx, "sync", 0, s.config.SyncInterval, func(ctx context.Context) (manifest.Manifest, error) {
			return s.engine.Sync(ctx)
		})
	}()

	if s.config.CacheLife > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runPeriodic(ctx, "cache gc", s.config.CacheLife, s.config.CacheLife, func(ctx context.Context) (manifest.Manifest, error) {
				return s.gc.Purge(ctx, s.config.CacheLife)
			})
		}()
	}

	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			slog.Warn("drop watcher unavailable", "dir", s.config.WatchDir, "error", err)
			s.watcher = nil
		}
	}

	return nil
}

func (s *Service) Stop() {
	slog.Info("photosync stop")
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.wg.Wait()
}

// runPeriodic submits fn after first and then every interval. A timer is used
// rather than a ticker so a slow run never queues extra ticks.
func (s *Service) runPeriodic(ctx context.Context, name string, first, interval time.Duration, fn func(ctx context.Context) (manifest.Manifest, error)) {
	timer := time.NewTimer(first)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			Schedule(ctx, s.scheduler, name, PriorityPeriodic, s.publishing(fn))
			timer.Reset(interval)
		}
	}
}

// Photos returns the manifest the display should currently show.
func (s *Service) Photos() manifest.Manifest {
	return s.notifier.Photos()
}

func (s *Service) Sync(ctx context.Context) (manifest.Manifest, error) {
	return Schedule(ctx, s.scheduler, "sync", PriorityExplicit, s.publishing(s.engine.Sync))
}

func (s *Service) Purge(ctx context.Context, maxAge time.Duration) (manifest.Manifest, error) {
	return Schedule(ctx, s.scheduler, "cache gc", PriorityExplicit, s.publishing(func(ctx context.Context) (manifest.Manifest, error) {
		return s.gc.Purge(ctx, maxAge)
	}))
}

// Ingest uploads and caches one photo. An empty folder means the selfie folder.
func (s *Service) Ingest(ctx context.Context, localPath, folder string) (manifest.Entry, error) {
	if folder == "" {
		folder = s.config.SelfieFolder
	}
	return Schedule(ctx, s.scheduler, "ingest", PriorityExplicit, func(ctx context.Context) (manifest.Entry, error) {
		entry, err := s.ingester.Ingest(ctx, localPath, folder)
		s.publishStored(ctx, err)
		return entry, err
	})
}

func (s *Service) IngestEntries(ctx context.Context, entries []manifest.Entry) (manifest.Manifest, error) {
	return Schedule(ctx, s.scheduler, "ingest entries", PriorityExplicit, s.publishing(func(ctx context.Context) (manifest.Manifest, error) {
		return s.ingester.IngestEntries(ctx, entries)
	}))
}

func (s *Service) Import(ctx context.Context, dir, folder string) (*ImportResult, error) {
	if folder == "" {
		folder = s.config.SelfieFolder
	}
	return Schedule(ctx, s.scheduler, "import", PriorityExplicit, func(ctx context.Context) (*ImportResult, error) {
		res, err := s.ingester.Import(ctx, dir, folder)
		s.publishStored(ctx, err)
		return res, err
	})
}

func (s *Service) Remove(ctx context.Context, keys []string) (manifest.Manifest, error) {
	return Schedule(ctx, s.scheduler, "remove", PriorityExplicit, s.publishing(func(ctx context.Context) (manifest.Manifest, error) {
		return s.remover.Remove(ctx, keys)
	}))
}

// OnNewPhotos implements DropHandler.
func (s *Service) OnNewPhotos(ctx context.Context, entries []manifest.Entry) error {
	_, err := s.IngestEntries(ctx, entries)
	return err
}

// OnFilesDeleted implements DropHandler.
func (s *Service) OnFilesDeleted(ctx context.Context, files []string) error {
	_, err := s.Sync(ctx)
	if errors.Is(err, ErrSyncFailed) {
		// the sync outcome is already published; the notification is consumed
		return nil
	}
	return err
}

// publishing wraps a manifest producing task so its outcome reaches the
// notifier from the scheduler goroutine, tagged with the task id.
func (s *Service) publishing(fn func(ctx context.Context) (manifest.Manifest, error)) func(ctx context.Context) (manifest.Manifest, error) {
	return func(ctx context.Context) (manifest.Manifest, error) {
		m, err := fn(ctx)
		s.publish(ctx, m, err)
		return m, err
	}
}

func (s *Service) publish(ctx context.Context, m manifest.Manifest, err error) {
	if s.abandoned(err) {
		return
	}
	if err != nil {
		s.notifier.Failed(TaskID(ctx), err, m)
		return
	}
	s.notifier.Updated(TaskID(ctx), m)
}

// publishStored publishes the persisted manifest after an operation that
// does not return one.
func (s *Service) publishStored(ctx context.Context, err error) {
	if err != nil {
		s.publish(ctx, nil, err)
		return
	}
	m, loadErr := s.engine.Store().Load()
	if loadErr != nil {
		s.notifier.Failed(TaskID(ctx), loadErr, nil)
		return
	}
	s.notifier.Updated(TaskID(ctx), m)
}

// abandoned reports whether the task never produced a result.
func (s *Service) abandoned(err error) bool {
	return errors.Is(err, ErrSchedulerStopped) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

var _ DropHandler = (*Service)(nil)
