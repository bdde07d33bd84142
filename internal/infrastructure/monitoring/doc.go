/*
Package monitoring provides the in-process metrics collector and the
Prometheus export layer.

# Overview

The Collector is a cheap observability sink: a bounded ring of raw
samples, cumulative counters keyed by name+tags, and capped per-key
histograms queried via sorted-percentile computation. It is the sink the
resilience and queue components feed, and the source for the JSON metrics
endpoints.

The Exporter mirrors the same activity into Prometheus metrics via event
observers, for scraping at /metrics.

# Usage

	collector := monitoring.NewCollector()

	collector.IncrementCounter("requests", 1, monitoring.Tags{"route": "/users"})
	collector.RecordHistogram("latency_ms", 12.5, monitoring.Tags{"route": "/users"})

	stats, ok := collector.HistogramStats("latency_ms", monitoring.Tags{"route": "/users"})
	// stats.P50, stats.P95, stats.P99

# Percentiles

Percentiles use the sorted-array formula index = ceil(p/100*n)-1, clamped
to zero. Over the values 1..100, p50 is 50, p95 is 95, p99 is 99.

# Metrics Endpoint

Expose Prometheus metrics via the standard endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
