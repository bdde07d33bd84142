/*
Package resilience provides the failure-handling core: a per-operation
circuit breaker, retry with exponential backoff, and a protected-call
helper that composes the two.

# Overview

Callers submit operations through a Protector, which checks the named
breaker, retries admitted attempts under the configured policy, and feeds
every outcome to the metrics sink. Breakers are owned by an explicit
Registry constructed at startup and injected wherever calls are made.

# Circuit breaker

Three states with the usual transitions:

	Closed --[failures reach threshold]-> Open --[cooldown]-> Half-Open
	Half-Open --[trial success]-> Closed
	Half-Open --[trial failure]-> Open

The trip threshold is derived from ErrorThresholdPercentage against a
nominal window of ten calls. Each admitted call races the operation
against the per-call Timeout; a timeout counts as a failure but the
operation is not cancelled and may finish in the background. In
half-open, exactly one trial is in flight at a time; concurrent arrivals
fail fast with ErrCircuitOpen.

# Retry

	result, err := resilience.Retry(ctx, op, resilience.Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Factor:       2,
		Jitter:       true,
	})

The default predicate retries network-level failures and 5xx statuses,
never 4xx. A non-retryable error aborts on first occurrence; after the
last attempt the underlying error is returned verbatim.

# Protected calls

	protector := resilience.NewProtector(registry, policy, collector, logger)
	result, err := protector.Do(ctx, "database", func(ctx context.Context) (any, error) {
		return db.Query(ctx, q)
	})

# Observability

Breakers emit events (open, half-open, close, failure, timeout, reject)
to subscribed observers; the logger and the Prometheus exporter attach
through Registry.Subscribe.
*/
package resilience
