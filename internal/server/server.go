package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/bulwark/internal/api/http"
	"github.com/GriffinCanCode/bulwark/internal/api/middleware"
	"github.com/GriffinCanCode/bulwark/internal/infrastructure/config"
	"github.com/GriffinCanCode/bulwark/internal/infrastructure/logging"
	"github.com/GriffinCanCode/bulwark/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bulwark/internal/infrastructure/queue"
	"github.com/GriffinCanCode/bulwark/internal/infrastructure/resilience"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Server hosts the ops endpoints and owns the process-wide resilience
// state: the breaker registry, the queue manager, and the collector.
type Server struct {
	router    *gin.Engine
	http      *http.Server
	logger    *logging.Logger
	config    *config.Config
	registry  *resilience.Registry
	queues    *queue.Manager
	collector *monitoring.Collector
	protector *resilience.Protector
}

// New creates a fully wired server from configuration.
func New(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		var err error
		logger, err = logging.New(logging.Config{Level: cfg.Logging.Level})
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
		}
	}

	logger.Info("initializing server",
		zap.String("port", cfg.Server.Port),
		zap.Int("breaker_threshold_pct", cfg.Breaker.ErrorThresholdPercentage),
		zap.Int("queue_concurrency", cfg.Queue.Concurrency),
	)

	collector := monitoring.NewCollector()
	exporter := monitoring.NewExporter()

	registry := resilience.NewRegistry(cfg.Breaker.Settings())
	registry.Subscribe(exporter.BreakerObserver())
	registry.Subscribe(breakerLogObserver(logger.Named("breaker").Logger))

	queues := queue.NewManager(cfg.Queue.Options(), logger.Named("queue").Logger)
	queues.Subscribe(exporter.QueueObserver())

	protector := resilience.NewProtector(registry, cfg.Retry.Policy(),
		resilience.MultiSink(collector, exporter.Sink()), logger.Named("protect").Logger)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	router.Use(monitoring.Middleware(exporter, collector))

	apihttp.NewHandlers(registry, queues, collector).Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		router:    router,
		logger:    logger,
		config:    cfg,
		registry:  registry,
		queues:    queues,
		collector: collector,
		protector: protector,
	}, nil
}

// breakerLogObserver reports breaker activity through the logger.
func breakerLogObserver(logger *zap.Logger) resilience.Observer {
	return func(ev resilience.Event) {
		switch ev.Type {
		case resilience.EventOpen, resilience.EventHalfOpen, resilience.EventClose:
			logger.Info("breaker state changed",
				zap.String("breaker", ev.Breaker),
				zap.String("from", ev.From.String()),
				zap.String("to", ev.To.String()),
			)
		case resilience.EventTimeout:
			logger.Warn("call timed out", zap.String("breaker", ev.Breaker))
		case resilience.EventFailure:
			logger.Debug("call failed", zap.String("breaker", ev.Breaker), zap.Error(ev.Err))
		}
	}
}

// Protector exposes the protected-call helper for embedding services.
func (s *Server) Protector() *resilience.Protector {
	return s.protector
}

// Queues exposes the queue manager for embedding services.
func (s *Server) Queues() *queue.Manager {
	return s.queues
}

// Router exposes the underlying router, used by tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port)
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.logger.Info("server listening", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close drains the HTTP server, rejects queued work, and flushes logs.
func (s *Server) Close() error {
	s.logger.Info("shutting down")

	var err error
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = s.http.Shutdown(ctx)
	}

	s.queues.Close()
	_ = s.logger.Sync()
	return err
}
