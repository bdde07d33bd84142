// Package http provides the JSON observability surface over the
// resilience core: breaker health, queue load, and collector queries.
package http

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/bulwark/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bulwark/internal/infrastructure/queue"
	"github.com/GriffinCanCode/bulwark/internal/infrastructure/resilience"
)

// Handlers serves the read accessors of the resilience core.
type Handlers struct {
	registry  *resilience.Registry
	queues    *queue.Manager
	collector *monitoring.Collector
	startTime time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(registry *resilience.Registry, queues *queue.Manager, collector *monitoring.Collector) *Handlers {
	return &Handlers{
		registry:  registry,
		queues:    queues,
		collector: collector,
		startTime: time.Now(),
	}
}

// Register mounts all routes on the router.
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/breakers", h.Breakers)
	router.POST("/breakers/:name/reset", h.ResetBreaker)
	router.GET("/queues", h.Queues)
	router.GET("/metrics/summary", h.MetricsSummary)
	router.GET("/metrics/counters", h.Counters)
	router.GET("/metrics/histograms/:name", h.Histogram)
}

// Health reports overall status: degraded when any enabled breaker is
// open.
func (h *Handlers) Health(c *gin.Context) {
	stats := h.registry.AllStats()

	status := "ok"
	open := 0
	for _, s := range stats {
		if s.Enabled && s.State == "open" {
			open++
		}
	}
	if open > 0 {
		status = "degraded"
	}

	h.renderJSON(c, http.StatusOK, gin.H{
		"status":         status,
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"breakers":       len(stats),
		"breakers_open":  open,
	})
}

// Breakers returns per-breaker state and counters.
func (h *Handlers) Breakers(c *gin.Context) {
	h.renderJSON(c, http.StatusOK, gin.H{"breakers": h.registry.AllStats()})
}

// ResetBreaker forces a breaker back to closed.
func (h *Handlers) ResetBreaker(c *gin.Context) {
	name := c.Param("name")
	breaker, ok := h.registry.Lookup(name)
	if !ok {
		h.renderJSON(c, http.StatusNotFound, gin.H{"error": "unknown breaker", "name": name})
		return
	}

	breaker.Reset()
	h.renderJSON(c, http.StatusOK, gin.H{"name": name, "state": breaker.State().String()})
}

// Queues returns per-queue bounds and load.
func (h *Handlers) Queues(c *gin.Context) {
	h.renderJSON(c, http.StatusOK, gin.H{"queues": h.queues.AllStats()})
}

// MetricsSummary aggregates raw samples for the metric named in the query
// string; remaining query parameters filter by tag.
func (h *Handlers) MetricsSummary(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		h.renderJSON(c, http.StatusBadRequest, gin.H{"error": "name query parameter is required"})
		return
	}

	h.renderJSON(c, http.StatusOK, gin.H{
		"name":    name,
		"summary": h.collector.Summary(name, tagFilter(c)),
	})
}

// Counters returns every accumulated counter.
func (h *Handlers) Counters(c *gin.Context) {
	h.renderJSON(c, http.StatusOK, gin.H{"counters": h.collector.Counters()})
}

// Histogram returns percentile statistics for the named histogram.
func (h *Handlers) Histogram(c *gin.Context) {
	name := c.Param("name")

	stats, ok := h.collector.HistogramStats(name, tagFilter(c))
	if !ok {
		h.renderJSON(c, http.StatusNotFound, gin.H{"error": "no recorded values", "name": name})
		return
	}

	h.renderJSON(c, http.StatusOK, gin.H{"name": name, "histogram": stats})
}

// tagFilter builds a tag set from query parameters, excluding the metric
// name itself.
func tagFilter(c *gin.Context) monitoring.Tags {
	tags := monitoring.Tags{}
	for k, vs := range c.Request.URL.Query() {
		if k == "name" || len(vs) == 0 {
			continue
		}
		tags[k] = vs[0]
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// renderJSON serializes with sonic; these payloads are polled frequently
// by dashboards.
func (h *Handlers) renderJSON(c *gin.Context, status int, payload any) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(status, "application/json; charset=utf-8", data)
}
