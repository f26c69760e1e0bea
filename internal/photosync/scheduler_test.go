package photosync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startScheduler(t *testing.T) (*Scheduler, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s, cancel
}

func TestScheduler_ReturnsTaskResult(t *testing.T) {
	s, _ := startScheduler(t)

	v, err := Schedule(context.Background(), s, "answer", PriorityExplicit, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	_, err = Schedule(context.Background(), s, "fail", PriorityExplicit, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestScheduler_TaskID(t *testing.T) {
	s, _ := startScheduler(t)
	assert.Empty(t, TaskID(context.Background()))

	ids := make([]string, 0, 2)
	for range 2 {
		id, err := Schedule(context.Background(), s, "id", PriorityExplicit, func(ctx context.Context) (string, error) {
			return TaskID(ctx), nil
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)
		ids = append(ids, id)
	}
	assert.NotEqual(t, ids[0], ids[1])
}

func TestScheduler_SerializesTasks(t *testing.T) {
	s, _ := startScheduler(t)

	var running, maxRunning atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Schedule(context.Background(), s, "work", PriorityPeriodic, func(ctx context.Context) (struct{}, error) {
				n := running.Add(1)
				for {
					m := maxRunning.Load()
					if n <= m || maxRunning.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)
				return struct{}{}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestScheduler_ExplicitBeforePeriodic(t *testing.T) {
	s, _ := startScheduler(t)

	release := make(chan struct{})
	started := make(chan struct{})
	go Schedule(context.Background(), s, "blocker", PriorityExplicit, func(ctx context.Context) (struct{}, error) {
		close(started)
		<-release
		return struct{}{}, nil
	})
	<-started

	var mu sync.Mutex
	var order []string
	record := func(name string) func(ctx context.Context) (struct{}, error) {
		return func(ctx context.Context) (struct{}, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return struct{}{}, nil
		}
	}

	var wg sync.WaitGroup
	submit := func(name string, p Priority) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Schedule(context.Background(), s, name, p, record(name))
		}()
	}

	submit("periodic", PriorityPeriodic)
	require.Eventually(t, func() bool { return s.queue.Len() == 1 }, time.Second, time.Millisecond)
	submit("explicit-1", PriorityExplicit)
	require.Eventually(t, func() bool { return s.queue.Len() == 2 }, time.Second, time.Millisecond)
	submit("explicit-2", PriorityExplicit)
	require.Eventually(t, func() bool { return s.queue.Len() == 3 }, time.Second, time.Millisecond)

	close(release)
	wg.Wait()

	assert.Equal(t, []string{"explicit-1", "explicit-2", "periodic"}, order)
}

func TestScheduler_SubmitAfterStop(t *testing.T) {
	s, cancel := startScheduler(t)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case <-s.stopped:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	_, err := Schedule(context.Background(), s, "late", PriorityExplicit, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrSchedulerStopped)
}

func TestScheduler_CallerContextCancelled(t *testing.T) {
	s, _ := startScheduler(t)

	release := make(chan struct{})
	started := make(chan struct{})
	go Schedule(context.Background(), s, "blocker", PriorityExplicit, func(ctx context.Context) (struct{}, error) {
		close(started)
		<-release
		return struct{}{}, nil
	})
	<-started
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Schedule(ctx, s, "waiting", PriorityExplicit, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
