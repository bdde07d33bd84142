// Package main is the entry point for the bulwark ops server.
//
// The binary embeds the resilience core (circuit breakers, retry,
// bounded priority queues, metrics collector) and serves its read
// accessors over HTTP for dashboards and health probes.
//
// The server provides:
//   - JSON breaker, queue, and metrics endpoints
//   - Prometheus exposition at /metrics
//   - Rate limiting and CORS on the ops surface
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional YAML file (-config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Environment-driven
//	./server -port 8090
//
//	# With a config file
//	./server -config /etc/bulwark/config.yaml
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
