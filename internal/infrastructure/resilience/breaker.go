package resilience

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// nominalWindow is the rolling window the error threshold percentage is
// computed against: a threshold of 50% trips after ceil(0.5*10) failures.
const nominalWindow = 10

// successDecay is the number of consecutive successes in the closed state
// after which stale failures are forgotten.
const successDecay = 5

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Operation is a protected call. The breaker does not interpret its result.
// The context is the caller's; the per-call timeout is enforced by racing
// the operation against a timer, not by cancelling the context.
type Operation func(ctx context.Context) (any, error)

// Settings configures the circuit breaker behavior
type Settings struct {
	// Timeout is the per-call budget; exceeding it counts as a failure
	Timeout time.Duration
	// ErrorThresholdPercentage is the failure share of the nominal window
	// that trips the breaker open
	ErrorThresholdPercentage int
	// ResetTimeout is the open-state cooldown before a trial is allowed
	ResetTimeout time.Duration
}

// withDefaults fills zero fields with production defaults.
func (s Settings) withDefaults() Settings {
	if s.Timeout <= 0 {
		s.Timeout = 5 * time.Second
	}
	if s.ErrorThresholdPercentage <= 0 {
		s.ErrorThresholdPercentage = 50
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = 30 * time.Second
	}
	return s
}

// Counts holds the statistics for the circuit breaker
type Counts struct {
	Failures    uint32
	Successes   uint32
	LastFailure time.Time
}

// Breaker implements the circuit breaker pattern around one class of
// operation. A single instance is created per protected dependency and
// lives for the process lifetime.
type Breaker struct {
	name      string
	settings  Settings
	threshold uint32
	events    observers

	mu          sync.Mutex
	state       State
	enabled     bool
	failures    uint32
	successes   uint32
	lastFailure time.Time
	probing     bool
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	settings = settings.withDefaults()
	threshold := uint32(math.Ceil(float64(settings.ErrorThresholdPercentage) / 100 * nominalWindow))

	return &Breaker{
		name:      name,
		settings:  settings,
		threshold: threshold,
		state:     StateClosed,
		enabled:   true,
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns a copy of the internal counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Counts{
		Failures:    b.failures,
		Successes:   b.successes,
		LastFailure: b.lastFailure,
	}
}

// Enabled reports whether the breaker rejects calls while open.
func (b *Breaker) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// SetEnabled toggles enforcement. A disabled breaker passes every call
// through but keeps counting outcomes, so re-enabling resumes from live
// statistics.
func (b *Breaker) SetEnabled(enabled bool) {
	b.mu.Lock()
	b.enabled = enabled
	b.mu.Unlock()
}

// Subscribe registers an observer for breaker events.
func (b *Breaker) Subscribe(fn Observer) {
	b.events.add(fn)
}

// Reset forces the breaker back to closed with zeroed counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	var evs []Event
	if b.state != StateClosed {
		evs = append(evs, b.transition(StateClosed))
	}
	b.failures = 0
	b.successes = 0
	b.lastFailure = time.Time{}
	b.probing = false
	b.mu.Unlock()

	b.events.notify(evs)
}

// Execute runs the operation if the breaker admits it. While open, calls
// fail fast with ErrCircuitOpen and the operation is never invoked. Each
// admitted call races the operation against the configured timeout; a
// timeout counts as a failure but does not cancel the operation.
func (b *Breaker) Execute(ctx context.Context, op Operation) (any, error) {
	if err := b.beforeCall(); err != nil {
		return nil, err
	}

	result, err := b.run(ctx, op)
	b.afterCall(err)
	return result, err
}

type callResult struct {
	value any
	err   error
}

// run races the operation against the per-call timeout. On timeout the
// operation keeps running in the background; its eventual result is
// discarded. This looseness is deliberate: there is no cooperative
// cancellation signal in the call contract.
func (b *Breaker) run(ctx context.Context, op Operation) (any, error) {
	done := make(chan callResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("operation panicked: %v", r)}
			}
		}()
		value, err := op(ctx)
		done <- callResult{value: value, err: err}
	}()

	timer := time.NewTimer(b.settings.Timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.value, res.err
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// beforeCall decides admission and performs the open -> half-open
// transition when the cooldown has elapsed. In half-open exactly one
// in-flight trial is admitted; concurrent arrivals are rejected until the
// trial settles.
func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	var evs []Event

	if !b.enabled {
		b.mu.Unlock()
		return nil
	}

	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) > b.settings.ResetTimeout {
			evs = append(evs, b.transitionKeepCounts(StateHalfOpen))
			b.probing = true
			break
		}
		evs = append(evs, Event{Breaker: b.name, Type: EventReject, From: StateOpen, To: StateOpen, Err: ErrCircuitOpen, At: time.Now()})
		b.mu.Unlock()
		b.events.notify(evs)
		return ErrCircuitOpen

	case StateHalfOpen:
		if b.probing {
			evs = append(evs, Event{Breaker: b.name, Type: EventReject, From: StateHalfOpen, To: StateHalfOpen, Err: ErrCircuitOpen, At: time.Now()})
			b.mu.Unlock()
			b.events.notify(evs)
			return ErrCircuitOpen
		}
		b.probing = true
	}

	b.mu.Unlock()
	b.events.notify(evs)
	return nil
}

// afterCall records the outcome and drives the state machine.
func (b *Breaker) afterCall(err error) {
	b.mu.Lock()
	var evs []Event

	if err == nil {
		b.onSuccess(&evs)
	} else {
		b.onFailure(err, &evs)
	}

	b.mu.Unlock()
	b.events.notify(evs)
}

func (b *Breaker) onSuccess(evs *[]Event) {
	switch b.state {
	case StateHalfOpen:
		b.probing = false
		*evs = append(*evs, b.transition(StateClosed))
	case StateClosed:
		b.successes++
		if b.successes >= successDecay {
			b.failures = 0
			b.successes = 0
		}
	}
}

func (b *Breaker) onFailure(err error, evs *[]Event) {
	now := time.Now()
	b.lastFailure = now

	failureType := EventFailure
	if err == ErrTimeout {
		failureType = EventTimeout
	}
	*evs = append(*evs, Event{Breaker: b.name, Type: failureType, From: b.state, To: b.state, Err: err, At: now})

	switch b.state {
	case StateHalfOpen:
		b.probing = false
		*evs = append(*evs, b.transition(StateOpen))
	case StateClosed:
		b.failures++
		b.successes = 0
		if b.failures >= b.threshold {
			*evs = append(*evs, b.transition(StateOpen))
		}
	}
}

// transition changes state and resets counters. Must be called under mu.
func (b *Breaker) transition(to State) Event {
	ev := b.transitionKeepCounts(to)
	b.failures = 0
	b.successes = 0
	return ev
}

// transitionKeepCounts changes state without touching counters, used for
// open -> half-open where the failure history still matters. Must be
// called under mu.
func (b *Breaker) transitionKeepCounts(to State) Event {
	from := b.state
	b.state = to

	eventType := EventClose
	switch to {
	case StateOpen:
		eventType = EventOpen
	case StateHalfOpen:
		eventType = EventHalfOpen
	}

	return Event{Breaker: b.name, Type: eventType, From: from, To: to, At: time.Now()}
}
