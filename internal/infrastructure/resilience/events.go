package resilience

import (
	"sync"
	"time"
)

// EventType identifies a breaker lifecycle event.
type EventType string

const (
	EventOpen     EventType = "open"
	EventHalfOpen EventType = "half-open"
	EventClose    EventType = "close"
	EventFailure  EventType = "failure"
	EventTimeout  EventType = "timeout"
	EventReject   EventType = "reject"
)

// Event describes a breaker state transition or call outcome.
type Event struct {
	Breaker string
	Type    EventType
	From    State
	To      State
	Err     error
	At      time.Time
}

// Observer receives breaker events. Observers are invoked synchronously
// after the breaker releases its lock; they must not call back into the
// breaker's Execute path.
type Observer func(Event)

// observers is a concurrency-safe observer list shared by a breaker.
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

func (o *observers) notify(events []Event) {
	if len(events) == 0 {
		return
	}
	o.mu.RLock()
	list := make([]Observer, len(o.list))
	copy(list, o.list)
	o.mu.RUnlock()

	for _, ev := range events {
		for _, fn := range list {
			fn(ev)
		}
	}
}
