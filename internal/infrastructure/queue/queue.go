package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrQueueFull is returned synchronously when the queue is at its max
	// size; enqueue never blocks the caller.
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueCleared rejects a pending item whose queue was explicitly
	// cleared, the shutdown/reset path.
	ErrQueueCleared = errors.New("queue cleared")

	// ErrQueueClosed is returned when enqueueing after Close.
	ErrQueueClosed = errors.New("queue is closed")
)

// Task is a deferred operation submitted to a queue.
type Task func(ctx context.Context) (any, error)

// Result is the settled outcome of a queued task.
type Result struct {
	Value any
	Err   error
}

// Pending is the caller's handle to a queued task. Ownership of the task
// transfers to the queue on submission and back to the caller when the
// result is delivered.
type Pending struct {
	id   uuid.UUID
	done chan Result
}

// ID returns the queue item's identifier.
func (p *Pending) ID() uuid.UUID {
	return p.id
}

// Done returns a channel that receives exactly one Result.
func (p *Pending) Done() <-chan Result {
	return p.done
}

// Wait blocks until the task settles or the context is done.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case res := <-p.done:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Options bounds a queue.
type Options struct {
	// Concurrency is the number of tasks allowed to run simultaneously
	Concurrency int
	// MaxSize is the maximum number of waiting items
	MaxSize int
}

// withDefaults fills zero fields with the standard bounds.
func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 5
	}
	if o.MaxSize <= 0 {
		o.MaxSize = 1000
	}
	return o
}

// Stats is a point-in-time view of one queue.
type Stats struct {
	Name        string `json:"name"`
	Depth       int    `json:"depth"`
	Active      int    `json:"active"`
	Concurrency int    `json:"concurrency"`
	MaxSize     int    `json:"max_size"`
}

type item struct {
	id         uuid.UUID
	priority   int
	enqueuedAt time.Time
	task       Task
	done       chan Result
}

// Queue is a bounded, priority-ordered task queue drained by a fixed pool
// of workers. Higher priority drains first; equal priorities drain in
// insertion order.
type Queue struct {
	name   string
	opts   Options
	events observers

	mu     sync.Mutex
	cond   *sync.Cond
	items  []*item
	active int
	closed bool
	wg     sync.WaitGroup
}

// newQueue creates a queue and starts its workers. Queues are created
// through a Manager.
func newQueue(name string, opts Options, obs []Observer) *Queue {
	q := &Queue{
		name: name,
		opts: opts.withDefaults(),
	}
	q.cond = sync.NewCond(&q.mu)
	for _, fn := range obs {
		q.events.add(fn)
	}

	q.wg.Add(q.opts.Concurrency)
	for i := 0; i < q.opts.Concurrency; i++ {
		go q.worker()
	}
	return q
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Enqueue submits a task with the given priority (higher runs first).
// It fails immediately with ErrQueueFull at the size bound.
func (q *Queue) Enqueue(task Task, priority int) (*Pending, error) {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	if len(q.items) >= q.opts.MaxSize {
		depth := len(q.items)
		q.mu.Unlock()
		q.events.notify(Event{Queue: q.name, Type: EventRejected, Depth: depth, Err: ErrQueueFull, At: time.Now()})
		return nil, ErrQueueFull
	}

	it := &item{
		id:         uuid.New(),
		priority:   priority,
		enqueuedAt: time.Now(),
		task:       task,
		done:       make(chan Result, 1),
	}
	q.insert(it)
	depth := len(q.items)
	q.cond.Signal()
	q.mu.Unlock()

	q.events.notify(Event{Queue: q.name, Type: EventEnqueued, Depth: depth, At: it.enqueuedAt})
	return &Pending{id: it.id, done: it.done}, nil
}

// insert places the item before the first existing item with strictly
// lower priority, preserving FIFO order among equal priorities. Must be
// called under mu.
func (q *Queue) insert(it *item) {
	idx := len(q.items)
	for i, existing := range q.items {
		if existing.priority < it.priority {
			idx = i
			break
		}
	}
	q.items = append(q.items, nil)
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = it
}

// Clear rejects every waiting item with ErrQueueCleared and empties the
// queue. Running tasks are unaffected.
func (q *Queue) Clear() {
	q.mu.Lock()
	cleared := q.items
	q.items = nil
	q.mu.Unlock()

	for _, it := range cleared {
		it.done <- Result{Err: ErrQueueCleared}
	}
	if len(cleared) > 0 {
		q.events.notify(Event{Queue: q.name, Type: EventCleared, Depth: 0, At: time.Now()})
	}
}

// Close clears pending work and stops the workers once running tasks
// finish. Subsequent enqueues fail with ErrQueueClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	cleared := q.items
	q.items = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, it := range cleared {
		it.done <- Result{Err: ErrQueueCleared}
	}
	q.wg.Wait()
}

// Stats returns the current queue bounds and load.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Name:        q.name,
		Depth:       len(q.items),
		Active:      q.active,
		Concurrency: q.opts.Concurrency,
		MaxSize:     q.opts.MaxSize,
	}
}

// worker drains the queue head-first. The pool size is the concurrency
// bound; no task runs outside a worker.
func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}

		it := q.items[0]
		q.items = q.items[1:]
		q.active++
		depth := len(q.items)
		active := q.active
		q.mu.Unlock()

		q.events.notify(Event{Queue: q.name, Type: EventStarted, Depth: depth, Active: active, At: time.Now()})

		start := time.Now()
		res := runTask(it.task)
		it.done <- res

		q.mu.Lock()
		q.active--
		q.mu.Unlock()

		q.events.notify(Event{
			Queue:    q.name,
			Type:     EventCompleted,
			Err:      res.Err,
			Duration: time.Since(start),
			At:       time.Now(),
		})
	}
}

// runTask executes a task, converting panics into errors so a bad task
// never takes down a worker or leaves its handle unsettled.
func runTask(task Task) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("task panicked: %v", r)}
		}
	}()

	value, err := task(context.Background())
	return Result{Value: value, Err: err}
}
