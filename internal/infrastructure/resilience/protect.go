package resilience

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// MetricsSink receives call outcomes from the composition layer. The
// monitoring collector satisfies it.
type MetricsSink interface {
	IncrementCounter(name string, delta float64, tags map[string]string)
	RecordHistogram(name string, value float64, tags map[string]string)
}

// MultiSink fans every metric out to all given sinks; nil entries are
// skipped.
func MultiSink(sinks ...MetricsSink) MetricsSink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multiSink []MetricsSink

func (m multiSink) IncrementCounter(name string, delta float64, tags map[string]string) {
	for _, s := range m {
		s.IncrementCounter(name, delta, tags)
	}
}

func (m multiSink) RecordHistogram(name string, value float64, tags map[string]string) {
	for _, s := range m {
		s.RecordHistogram(name, value, tags)
	}
}

// Protector is the reusable protected-call helper: it checks the named
// breaker, retries admitted attempts with backoff, and feeds every outcome
// to the metrics sink. Each attempt passes through the breaker so per-call
// timeouts and failure accounting apply per attempt.
type Protector struct {
	registry *Registry
	policy   Policy
	metrics  MetricsSink
	logger   *zap.Logger
}

// NewProtector creates a protector. The metrics sink and logger may be
// nil, in which case outcomes are simply not recorded.
func NewProtector(registry *Registry, policy Policy, metrics MetricsSink, logger *zap.Logger) *Protector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Protector{
		registry: registry,
		policy:   policy.withDefaults(),
		metrics:  metrics,
		logger:   logger,
	}
}

// Registry exposes the breaker registry for health reporting.
func (p *Protector) Registry() *Registry {
	return p.registry
}

// Do runs the operation under the named breaker with the protector's retry
// policy. A circuit-open rejection is never retried; any other error is
// subject to the policy's predicate. The innermost operation error escapes
// verbatim after policy is exhausted.
func (p *Protector) Do(ctx context.Context, name string, op Operation) (any, error) {
	breaker := p.registry.Get(name)

	retryable := p.policy.IsRetryable
	policy := p.policy
	policy.IsRetryable = func(err error) bool {
		if errors.Is(err, ErrCircuitOpen) {
			return false
		}
		return retryable(err)
	}

	attempt := 0
	start := time.Now()
	result, err := Retry(ctx, func(ctx context.Context) (any, error) {
		attempt++
		p.count("protected_call_attempts", name, nil)
		return breaker.Execute(ctx, op)
	}, policy)

	elapsed := time.Since(start)
	p.observe(name, elapsed, err)

	if err != nil {
		p.logger.Warn("protected call failed",
			zap.String("operation", name),
			zap.Int("attempts", attempt),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, err
	}

	p.logger.Debug("protected call succeeded",
		zap.String("operation", name),
		zap.Int("attempts", attempt),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

func (p *Protector) observe(name string, elapsed time.Duration, err error) {
	if p.metrics == nil {
		return
	}

	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrCircuitOpen):
		outcome = "rejected"
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	default:
		outcome = "failure"
	}

	p.metrics.IncrementCounter("protected_calls", 1, map[string]string{"operation": name, "outcome": outcome})
	p.metrics.RecordHistogram("protected_call_duration_ms", float64(elapsed.Milliseconds()), map[string]string{"operation": name})
}

func (p *Protector) count(metric, name string, extra map[string]string) {
	if p.metrics == nil {
		return
	}
	tags := map[string]string{"operation": name}
	for k, v := range extra {
		tags[k] = v
	}
	p.metrics.IncrementCounter(metric, 1, tags)
}
