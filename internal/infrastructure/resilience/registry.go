package resilience

import (
	"sort"
	"sync"
)

// BreakerStats is the read model served by the health endpoint.
type BreakerStats struct {
	Name    string `json:"name"`
	State   string `json:"state"`
	Enabled bool   `json:"enabled"`
	Stats   Counts `json:"stats"`
}

// Registry owns every breaker in the process. It is constructed once at
// startup and injected into callers; there are no ambient globals.
type Registry struct {
	mu        sync.RWMutex
	breakers  map[string]*Breaker
	defaults  Settings
	observers []Observer
}

// NewRegistry creates a registry whose lazily-created breakers use the
// given default settings.
func NewRegistry(defaults Settings) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		defaults: defaults,
	}
}

// Get returns the breaker for the named operation class, creating it with
// the registry defaults on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}
	return r.Configure(name, r.defaults)
}

// Configure creates the named breaker with explicit settings. If the
// breaker already exists it is returned unchanged; settings are fixed at
// creation time.
func (r *Registry) Configure(name string, settings Settings) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	b := New(name, settings)
	for _, fn := range r.observers {
		b.Subscribe(fn)
	}
	r.breakers[name] = b
	return b
}

// Lookup returns the named breaker without creating it.
func (r *Registry) Lookup(name string) (*Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.breakers[name]
	return b, ok
}

// Subscribe attaches an observer to every current and future breaker.
func (r *Registry) Subscribe(fn Observer) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.observers = append(r.observers, fn)
	for _, b := range r.breakers {
		b.Subscribe(fn)
	}
}

// AllStats returns a snapshot of every breaker, sorted by name.
func (r *Registry) AllStats() []BreakerStats {
	r.mu.RLock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.RUnlock()

	stats := make([]BreakerStats, 0, len(breakers))
	for _, b := range breakers {
		stats = append(stats, BreakerStats{
			Name:    b.Name(),
			State:   b.State().String(),
			Enabled: b.Enabled(),
			Stats:   b.Counts(),
		})
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// ResetAll forces every breaker back to closed, used on shutdown or from
// an operator endpoint.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.breakers {
		b.Reset()
	}
}
