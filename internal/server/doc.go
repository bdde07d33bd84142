// Package server provides HTTP server setup and initialization.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (CORS, rate limiting, recovery, metrics)
//   - Breaker registry and queue manager construction
//   - Observer wiring between the core, the logger, and Prometheus
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger (production or development)
//  3. Construct collector, exporter, registry, queue manager, protector
//  4. Subscribe observers for logging and Prometheus export
//  5. Setup HTTP routes and middleware
//  6. Start HTTP server
//  7. Graceful shutdown on signal: drain HTTP, reject queued work
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.New(cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
