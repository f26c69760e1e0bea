package photosync

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/openmined/photoframe/internal/queue"
)

// Priority orders pending tasks. Lower runs first.
type Priority int

const (
	PriorityExplicit Priority = iota
	PriorityPeriodic
)

type taskResult struct {
	value any
	err   error
}

type taskIDKey struct{}

// TaskID returns the id of the scheduler task running with ctx, or "" outside
// a task.
func TaskID(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey{}).(string)
	return id
}

type task struct {
	id   string
	name string
	run  func(ctx context.Context) (any, error)
	done chan taskResult
}

// Scheduler is the single writer of the cache and manifest. Every mutating
// operation runs as a task on one goroutine, explicit requests ahead of
// periodic ones and FIFO otherwise.
type Scheduler struct {
	queue   *queue.PriorityQueue[*task]
	stopped chan struct{}
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		queue:   queue.NewPriorityQueue[*task](),
		stopped: make(chan struct{}),
	}
}

// Run executes tasks until ctx is done. Tasks still pending at that point
// fail with ErrSchedulerStopped.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Debug("scheduler start")
	defer func() {
		close(s.stopped)
		for _, t := range s.queue.DequeueAll() {
			t.done <- taskResult{err: ErrSchedulerStopped}
		}
		slog.Debug("scheduler stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.queue.Wait():
		}

		for {
			if ctx.Err() != nil {
				return
			}
			t, ok := s.queue.Dequeue()
			if !ok {
				break
			}
			s.execute(ctx, t)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, t *task) {
	tStart := time.Now()
	value, err := t.run(context.WithValue(ctx, taskIDKey{}, t.id))
	slog.Debug("task done", "id", t.id, "task", t.name, "tsTotal", time.Since(tStart), "error", err)
	t.done <- taskResult{value: value, err: err}
}

func (s *Scheduler) submit(ctx context.Context, name string, priority Priority, fn func(ctx context.Context) (any, error)) (any, error) {
	select {
	case <-s.stopped:
		return nil, ErrSchedulerStopped
	default:
	}

	t := &task{
		id:   uuid.NewString(),
		name: name,
		run:  fn,
		done: make(chan taskResult, 1),
	}
	s.queue.Enqueue(t, int(priority))

	select {
	case res := <-t.done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stopped:
		// the task may have completed right before the stop
		select {
		case res := <-t.done:
			return res.value, res.err
		default:
			return nil, ErrSchedulerStopped
		}
	}
}

// Schedule queues fn and blocks until it ran, returning its result.
func Schedule[T any](ctx context.Context, s *Scheduler, name string, priority Priority, fn func(ctx context.Context) (T, error)) (T, error) {
	value, err := s.submit(ctx, name, priority, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	result, _ := value.(T)
	return result, err
}
