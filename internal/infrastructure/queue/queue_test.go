package queue

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

// blockQueue fills the named queue's single worker with a task that holds
// until release is closed, so later enqueues stay waiting.
func blockQueue(t *testing.T, q *Queue) (release chan struct{}, blocked *Pending) {
	t.Helper()

	release = make(chan struct{})
	started := make(chan struct{})

	blocked, err := q.Enqueue(func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "done", nil
	}, 0)
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("worker never picked up blocking task")
	}
	return release, blocked
}

func TestQueueConcurrencyBound(t *testing.T) {
	manager := NewManager(Options{}, nil)
	q := manager.Init("bounded", Options{Concurrency: 2, MaxSize: 100})
	defer manager.Close()

	var active, peak atomic.Int32
	release := make(chan struct{})
	pendings := make([]*Pending, 0, 3)

	for i := 0; i < 3; i++ {
		p, err := q.Enqueue(func(ctx context.Context) (any, error) {
			cur := active.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			<-release
			active.Add(-1)
			return nil, nil
		}, 0)
		require.NoError(t, err)
		pendings = append(pendings, p)
	}

	// Give workers time to admit everything they are allowed to.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), active.Load())

	close(release)
	for _, p := range pendings {
		_, err := p.Wait(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, int32(2), peak.Load())
}

func TestQueueFullRejectsImmediately(t *testing.T) {
	manager := NewManager(Options{}, nil)
	q := manager.Init("tiny", Options{Concurrency: 1, MaxSize: 2})
	defer manager.Close()

	release, blocked := blockQueue(t, q)

	waiting := make([]*Pending, 0, 2)
	for i := 0; i < 2; i++ {
		p, err := q.Enqueue(func(ctx context.Context) (any, error) { return i, nil }, 0)
		require.NoError(t, err)
		waiting = append(waiting, p)
	}

	start := time.Now()
	_, err := q.Enqueue(func(ctx context.Context) (any, error) { return nil, nil }, 0)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	// Already-queued items are unaffected by the rejection.
	close(release)
	for _, p := range waiting {
		_, err := p.Wait(context.Background())
		assert.NoError(t, err)
	}
	_, err = blocked.Wait(context.Background())
	assert.NoError(t, err)
}

func TestQueuePriorityOrder(t *testing.T) {
	manager := NewManager(Options{}, nil)
	q := manager.Init("prio", Options{Concurrency: 1, MaxSize: 100})
	defer manager.Close()

	release, _ := blockQueue(t, q)

	var mu sync.Mutex
	var order []string

	enqueue := func(label string, priority int) *Pending {
		p, err := q.Enqueue(func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
			return nil, nil
		}, priority)
		require.NoError(t, err)
		return p
	}

	low := enqueue("low-5", 5)
	high := enqueue("high-10", 10)
	firstTie := enqueue("tie-a", 5)
	secondTie := enqueue("tie-b", 5)

	close(release)
	for _, p := range []*Pending{low, high, firstTie, secondTie} {
		_, err := p.Wait(context.Background())
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"high-10", "low-5", "tie-a", "tie-b"}, order)
}

func TestQueueClearRejectsWaiting(t *testing.T) {
	manager := NewManager(Options{}, nil)
	q := manager.Init("clearable", Options{Concurrency: 1, MaxSize: 100})
	defer manager.Close()

	release, blocked := blockQueue(t, q)

	waiting, err := q.Enqueue(func(ctx context.Context) (any, error) { return nil, nil }, 0)
	require.NoError(t, err)

	q.Clear()

	_, err = waiting.Wait(context.Background())
	assert.ErrorIs(t, err, ErrQueueCleared)

	// The in-flight task still completes normally.
	close(release)
	value, err := blocked.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "done", value)
}

func TestQueueTaskPanicBecomesError(t *testing.T) {
	manager := NewManager(Options{}, nil)
	defer manager.Close()

	p, err := manager.Enqueue("panics", func(ctx context.Context) (any, error) {
		panic("kaboom")
	}, 0)
	require.NoError(t, err)

	_, err = p.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	// The worker survived the panic.
	p, err = manager.Enqueue("panics", func(ctx context.Context) (any, error) {
		return "alive", nil
	}, 0)
	require.NoError(t, err)
	value, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alive", value)
}

func TestManagerLazyDefaults(t *testing.T) {
	manager := NewManager(Options{}, nil)
	defer manager.Close()

	q := manager.Get("fresh")
	stats := q.Stats()

	assert.Equal(t, "fresh", stats.Name)
	assert.Equal(t, 5, stats.Concurrency)
	assert.Equal(t, 1000, stats.MaxSize)
	assert.Zero(t, stats.Depth)

	assert.Same(t, q, manager.Get("fresh"))
}

func TestManagerAllStats(t *testing.T) {
	manager := NewManager(Options{}, nil)
	defer manager.Close()

	manager.Init("b", Options{Concurrency: 2, MaxSize: 10})
	manager.Init("a", Options{Concurrency: 1, MaxSize: 5})

	stats := manager.AllStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "a", stats[0].Name)
	assert.Equal(t, "b", stats[1].Name)
}

func TestManagerCloseRejectsNewWork(t *testing.T) {
	manager := NewManager(Options{}, nil)

	p, err := manager.Enqueue("work", func(ctx context.Context) (any, error) {
		return 1, nil
	}, 0)
	require.NoError(t, err)
	_, err = p.Wait(context.Background())
	require.NoError(t, err)

	manager.Close()

	_, err = manager.Enqueue("work", func(ctx context.Context) (any, error) { return nil, nil }, 0)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestManagerObserverSeesRejections(t *testing.T) {
	manager := NewManager(Options{}, nil)
	defer manager.Close()

	var rejected atomic.Int32
	manager.Subscribe(func(ev Event) {
		if ev.Type == EventRejected {
			rejected.Add(1)
		}
	})

	q := manager.Init("observed", Options{Concurrency: 1, MaxSize: 1})
	release, _ := blockQueue(t, q)
	defer close(release)

	_, err := q.Enqueue(func(ctx context.Context) (any, error) { return nil, nil }, 0)
	require.NoError(t, err)
	_, err = q.Enqueue(func(ctx context.Context) (any, error) { return nil, nil }, 0)
	require.ErrorIs(t, err, ErrQueueFull)

	assert.Equal(t, int32(1), rejected.Load())
}

func TestPendingWaitHonorsContext(t *testing.T) {
	manager := NewManager(Options{}, nil)
	q := manager.Init("slow", Options{Concurrency: 1, MaxSize: 10})
	defer manager.Close()

	release, blocked := blockQueue(t, q)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := blocked.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
