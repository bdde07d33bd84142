package queue

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Manager owns every named queue in the process, creating them lazily with
// default bounds on first use. Like the breaker registry it is constructed
// once at startup and injected, never global.
type Manager struct {
	mu        sync.RWMutex
	queues    map[string]*Queue
	defaults  Options
	observers []Observer
	closed    bool
}

// NewManager creates a manager whose lazily-created queues use the given
// default bounds. A non-nil logger is subscribed to queue events.
func NewManager(defaults Options, logger *zap.Logger) *Manager {
	m := &Manager{
		queues:   make(map[string]*Queue),
		defaults: defaults.withDefaults(),
	}
	if logger != nil {
		m.Subscribe(loggingObserver(logger))
	}
	return m
}

// loggingObserver reports queue pressure and task failures.
func loggingObserver(logger *zap.Logger) Observer {
	return func(ev Event) {
		switch ev.Type {
		case EventRejected:
			logger.Warn("queue rejected task",
				zap.String("queue", ev.Queue),
				zap.Int("depth", ev.Depth),
				zap.Error(ev.Err),
			)
		case EventCompleted:
			if ev.Err != nil {
				logger.Warn("queued task failed",
					zap.String("queue", ev.Queue),
					zap.Duration("duration", ev.Duration),
					zap.Error(ev.Err),
				)
			}
		case EventCleared:
			logger.Info("queue cleared", zap.String("queue", ev.Queue))
		}
	}
}

// Get returns the named queue, creating it with default bounds on first
// use.
func (m *Manager) Get(name string) *Queue {
	m.mu.RLock()
	q, ok := m.queues[name]
	m.mu.RUnlock()
	if ok {
		return q
	}
	return m.Init(name, m.defaults)
}

// Init creates the named queue with explicit bounds. If the queue already
// exists it is returned unchanged; bounds are fixed at creation time.
func (m *Manager) Init(name string, opts Options) *Queue {
	m.mu.Lock()
	defer m.mu.Unlock()

	if q, ok := m.queues[name]; ok {
		return q
	}

	q := newQueue(name, opts, m.observers)
	m.queues[name] = q
	return q
}

// Enqueue submits a task to the named queue with the given priority.
func (m *Manager) Enqueue(name string, task Task, priority int) (*Pending, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrQueueClosed
	}
	return m.Get(name).Enqueue(task, priority)
}

// Clear rejects all waiting items in the named queue.
func (m *Manager) Clear(name string) {
	m.mu.RLock()
	q, ok := m.queues[name]
	m.mu.RUnlock()
	if ok {
		q.Clear()
	}
}

// Subscribe attaches an observer to every current and future queue.
func (m *Manager) Subscribe(fn Observer) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.observers = append(m.observers, fn)
	for _, q := range m.queues {
		q.events.add(fn)
	}
}

// AllStats returns a snapshot of every queue, sorted by name.
func (m *Manager) AllStats() []Stats {
	m.mu.RLock()
	queues := make([]*Queue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.mu.RUnlock()

	stats := make([]Stats, 0, len(queues))
	for _, q := range queues {
		stats = append(stats, q.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Close shuts down every queue, rejecting waiting items and waiting for
// running tasks to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	queues := make([]*Queue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.mu.Unlock()

	for _, q := range queues {
		q.Close()
	}
}
