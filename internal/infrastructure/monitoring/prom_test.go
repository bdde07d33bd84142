package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/bulwark/internal/infrastructure/queue"
	"github.com/GriffinCanCode/bulwark/internal/infrastructure/resilience"
)

func TestExporterBreakerObserver(t *testing.T) {
	exporter := NewExporterWith(prometheus.NewRegistry())
	observe := exporter.BreakerObserver()

	observe(resilience.Event{Breaker: "db", Type: resilience.EventFailure, Err: errors.New("down")})
	observe(resilience.Event{Breaker: "db", Type: resilience.EventOpen, From: resilience.StateClosed, To: resilience.StateOpen})
	observe(resilience.Event{Breaker: "db", Type: resilience.EventReject, Err: resilience.ErrCircuitOpen})
	observe(resilience.Event{Breaker: "db", Type: resilience.EventTimeout, Err: resilience.ErrTimeout})

	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.BreakerTransitions.WithLabelValues("db", "closed", "open")))
	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.BreakerRejections.WithLabelValues("db")))
	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.BreakerFailures.WithLabelValues("db", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.BreakerFailures.WithLabelValues("db", "timeout")))
}

func TestExporterSinkMirrorsProtectedCalls(t *testing.T) {
	exporter := NewExporterWith(prometheus.NewRegistry())
	sink := exporter.Sink()

	sink.IncrementCounter("protected_calls", 1, map[string]string{"operation": "db", "outcome": "success"})
	sink.IncrementCounter("protected_calls", 1, map[string]string{"operation": "db", "outcome": "rejected"})
	sink.IncrementCounter("protected_call_attempts", 3, map[string]string{"operation": "db"})
	sink.RecordHistogram("protected_call_duration_ms", 250, map[string]string{"operation": "db"})

	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.ProtectedCalls.WithLabelValues("db", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.ProtectedCalls.WithLabelValues("db", "rejected")))
	assert.Equal(t, float64(3), testutil.ToFloat64(exporter.ProtectedCallAttempts.WithLabelValues("db")))
	assert.Equal(t, 1, testutil.CollectAndCount(exporter.ProtectedCallDuration))
}

func TestExporterQueueObserver(t *testing.T) {
	exporter := NewExporterWith(prometheus.NewRegistry())
	observe := exporter.QueueObserver()

	observe(queue.Event{Queue: "jobs", Type: queue.EventEnqueued, Depth: 3})
	observe(queue.Event{Queue: "jobs", Type: queue.EventStarted, Depth: 2, Active: 1})
	observe(queue.Event{Queue: "jobs", Type: queue.EventCompleted, Duration: 50 * time.Millisecond})
	observe(queue.Event{Queue: "jobs", Type: queue.EventCompleted, Err: errors.New("bad"), Duration: time.Millisecond})
	observe(queue.Event{Queue: "jobs", Type: queue.EventRejected, Err: queue.ErrQueueFull})

	assert.Equal(t, float64(2), testutil.ToFloat64(exporter.QueueDepth.WithLabelValues("jobs")))
	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.QueueActive.WithLabelValues("jobs")))
	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.QueueRejections.WithLabelValues("jobs")))
	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.TasksCompleted.WithLabelValues("jobs", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.TasksCompleted.WithLabelValues("jobs", "failure")))
}
