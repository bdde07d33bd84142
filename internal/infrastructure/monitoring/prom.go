package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GriffinCanCode/bulwark/internal/infrastructure/queue"
	"github.com/GriffinCanCode/bulwark/internal/infrastructure/resilience"
)

// Exporter mirrors resilience and queue activity into Prometheus metrics
// for the /metrics endpoint.
type Exporter struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Breaker metrics
	BreakerTransitions *prometheus.CounterVec
	BreakerRejections  *prometheus.CounterVec
	BreakerFailures    *prometheus.CounterVec

	// Protected-call metrics
	ProtectedCalls        *prometheus.CounterVec
	ProtectedCallAttempts *prometheus.CounterVec
	ProtectedCallDuration *prometheus.HistogramVec

	// Queue metrics
	QueueDepth      *prometheus.GaugeVec
	QueueActive     *prometheus.GaugeVec
	QueueRejections *prometheus.CounterVec
	TasksCompleted  *prometheus.CounterVec
	TaskDuration    *prometheus.HistogramVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewExporter registers all metrics with the default registry.
func NewExporter() *Exporter {
	return NewExporterWith(prometheus.DefaultRegisterer)
}

// NewExporterWith registers all metrics with the given registerer; tests
// pass a fresh registry to avoid duplicate registration.
func NewExporterWith(reg prometheus.Registerer) *Exporter {
	factory := promauto.With(reg)

	e := &Exporter{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bulwark_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_breaker_transitions_total",
				Help: "Total number of circuit breaker state transitions",
			},
			[]string{"breaker", "from", "to"},
		),
		BreakerRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_breaker_rejections_total",
				Help: "Calls rejected while the breaker was open",
			},
			[]string{"breaker"},
		),
		BreakerFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_breaker_failures_total",
				Help: "Failed calls observed by the breaker",
			},
			[]string{"breaker", "kind"},
		),

		ProtectedCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_protected_calls_total",
				Help: "Protected calls by final outcome",
			},
			[]string{"operation", "outcome"},
		),
		ProtectedCallAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_protected_call_attempts_total",
				Help: "Individual attempts made by protected calls, retries included",
			},
			[]string{"operation"},
		),
		ProtectedCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bulwark_protected_call_duration_seconds",
				Help:    "End-to-end protected call duration in seconds, backoff included",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),

		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bulwark_queue_depth",
				Help: "Number of items waiting in the queue",
			},
			[]string{"queue"},
		),
		QueueActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bulwark_queue_active",
				Help: "Number of tasks currently executing",
			},
			[]string{"queue"},
		),
		QueueRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_queue_rejections_total",
				Help: "Enqueues rejected because the queue was full",
			},
			[]string{"queue"},
		),
		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulwark_queue_tasks_completed_total",
				Help: "Tasks settled by queue workers",
			},
			[]string{"queue", "status"},
		),
		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bulwark_queue_task_duration_seconds",
				Help:    "Queued task execution duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"queue"},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bulwark_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}

	go e.updateUptime()

	return e
}

// updateUptime continuously updates the uptime metric
func (e *Exporter) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		e.Uptime.Set(time.Since(e.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request handled by the ops server.
func (e *Exporter) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	e.RequestsTotal.WithLabelValues(method, path, status).Inc()
	e.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// BreakerObserver adapts the exporter to the breaker event stream.
func (e *Exporter) BreakerObserver() resilience.Observer {
	return func(ev resilience.Event) {
		switch ev.Type {
		case resilience.EventOpen, resilience.EventHalfOpen, resilience.EventClose:
			e.BreakerTransitions.WithLabelValues(ev.Breaker, ev.From.String(), ev.To.String()).Inc()
		case resilience.EventReject:
			e.BreakerRejections.WithLabelValues(ev.Breaker).Inc()
		case resilience.EventFailure:
			e.BreakerFailures.WithLabelValues(ev.Breaker, "error").Inc()
		case resilience.EventTimeout:
			e.BreakerFailures.WithLabelValues(ev.Breaker, "timeout").Inc()
		}
	}
}

// Sink adapts the exporter to the protector's metrics interface, mirroring
// protected-call outcomes into Prometheus alongside the collector.
func (e *Exporter) Sink() resilience.MetricsSink {
	return promSink{e: e}
}

type promSink struct {
	e *Exporter
}

func (s promSink) IncrementCounter(name string, delta float64, tags map[string]string) {
	switch name {
	case "protected_calls":
		s.e.ProtectedCalls.WithLabelValues(tags["operation"], tags["outcome"]).Add(delta)
	case "protected_call_attempts":
		s.e.ProtectedCallAttempts.WithLabelValues(tags["operation"]).Add(delta)
	}
}

func (s promSink) RecordHistogram(name string, value float64, tags map[string]string) {
	if name == "protected_call_duration_ms" {
		s.e.ProtectedCallDuration.WithLabelValues(tags["operation"]).Observe(value / 1000)
	}
}

// QueueObserver adapts the exporter to the queue event stream.
func (e *Exporter) QueueObserver() queue.Observer {
	return func(ev queue.Event) {
		switch ev.Type {
		case queue.EventEnqueued, queue.EventCleared:
			e.QueueDepth.WithLabelValues(ev.Queue).Set(float64(ev.Depth))
		case queue.EventRejected:
			e.QueueRejections.WithLabelValues(ev.Queue).Inc()
		case queue.EventStarted:
			e.QueueDepth.WithLabelValues(ev.Queue).Set(float64(ev.Depth))
			e.QueueActive.WithLabelValues(ev.Queue).Set(float64(ev.Active))
		case queue.EventCompleted:
			status := "success"
			if ev.Err != nil {
				status = "failure"
			}
			e.TasksCompleted.WithLabelValues(ev.Queue, status).Inc()
			e.TaskDuration.WithLabelValues(ev.Queue).Observe(ev.Duration.Seconds())
		}
	}
}
