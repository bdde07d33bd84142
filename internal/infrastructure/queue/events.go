package queue

import (
	"sync"
	"time"
)

// EventType identifies a queue lifecycle event.
type EventType string

const (
	EventEnqueued  EventType = "enqueued"
	EventRejected  EventType = "rejected"
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventCleared   EventType = "cleared"
)

// Event describes a change in a queue's load or a task outcome.
type Event struct {
	Queue    string
	Type     EventType
	Depth    int
	Active   int
	Err      error
	Duration time.Duration
	At       time.Time
}

// Observer receives queue events.
type Observer func(Event)

type observers struct {
	mu   sync.RWMutex
	list []Observer
}

func (o *observers) add(fn Observer) {
	if fn == nil {
		return
	}
	o.mu.Lock()
	o.list = append(o.list, fn)
	o.mu.Unlock()
}

func (o *observers) notify(ev Event) {
	o.mu.RLock()
	list := make([]Observer, len(o.list))
	copy(list, o.list)
	o.mu.RUnlock()

	for _, fn := range list {
		fn(ev)
	}
}
