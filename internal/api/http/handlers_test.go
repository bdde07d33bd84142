package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/bulwark/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bulwark/internal/infrastructure/queue"
	"github.com/GriffinCanCode/bulwark/internal/infrastructure/resilience"
)

func testRouter(t *testing.T) (*gin.Engine, *resilience.Registry, *queue.Manager, *monitoring.Collector) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := resilience.NewRegistry(resilience.Settings{
		Timeout:                  time.Second,
		ErrorThresholdPercentage: 10,
		ResetTimeout:             time.Minute,
	})
	manager := queue.NewManager(queue.Options{}, nil)
	t.Cleanup(manager.Close)
	collector := monitoring.NewCollector()

	router := gin.New()
	NewHandlers(registry, manager, collector).Register(router)
	return router, registry, manager, collector
}

func doRequest(router *gin.Engine, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)

	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestHealthOK(t *testing.T) {
	router, registry, _, _ := testRouter(t)
	registry.Get("database")

	w, body := doRequest(router, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["breakers"])
	assert.Equal(t, float64(0), body["breakers_open"])
}

func TestHealthDegradedWhenBreakerOpen(t *testing.T) {
	router, registry, _, _ := testRouter(t)

	_, _ = registry.Get("database").Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errors.New("down")
	})
	require.Equal(t, resilience.StateOpen, registry.Get("database").State())

	_, body := doRequest(router, http.MethodGet, "/health")
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, float64(1), body["breakers_open"])
}

func TestBreakersPayload(t *testing.T) {
	router, registry, _, _ := testRouter(t)
	registry.Get("cache").SetEnabled(false)

	w, body := doRequest(router, http.MethodGet, "/breakers")
	require.Equal(t, http.StatusOK, w.Code)

	breakers, ok := body["breakers"].([]any)
	require.True(t, ok)
	require.Len(t, breakers, 1)

	entry := breakers[0].(map[string]any)
	assert.Equal(t, "cache", entry["name"])
	assert.Equal(t, "closed", entry["state"])
	assert.Equal(t, false, entry["enabled"])
}

func TestResetBreaker(t *testing.T) {
	router, registry, _, _ := testRouter(t)

	_, _ = registry.Get("flaky").Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errors.New("down")
	})
	require.Equal(t, resilience.StateOpen, registry.Get("flaky").State())

	w, body := doRequest(router, http.MethodPost, "/breakers/flaky/reset")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "closed", body["state"])
	assert.Equal(t, resilience.StateClosed, registry.Get("flaky").State())

	w, _ = doRequest(router, http.MethodPost, "/breakers/unknown/reset")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueuesPayload(t *testing.T) {
	router, _, manager, _ := testRouter(t)
	manager.Init("jobs", queue.Options{Concurrency: 2, MaxSize: 10})

	w, body := doRequest(router, http.MethodGet, "/queues")
	require.Equal(t, http.StatusOK, w.Code)

	queues := body["queues"].([]any)
	require.Len(t, queues, 1)
	entry := queues[0].(map[string]any)
	assert.Equal(t, "jobs", entry["name"])
	assert.Equal(t, float64(2), entry["concurrency"])
	assert.Equal(t, float64(10), entry["max_size"])
}

func TestMetricsSummaryEndpoint(t *testing.T) {
	router, _, _, collector := testRouter(t)

	collector.Record("latency", 10, monitoring.Tags{"service": "db"})
	collector.Record("latency", 30, monitoring.Tags{"service": "db"})
	collector.Record("latency", 100, monitoring.Tags{"service": "cache"})

	w, body := doRequest(router, http.MethodGet, "/metrics/summary?name=latency&service=db")
	require.Equal(t, http.StatusOK, w.Code)

	summary := body["summary"].(map[string]any)
	assert.Equal(t, float64(2), summary["count"])
	assert.Equal(t, float64(40), summary["sum"])

	w, _ = doRequest(router, http.MethodGet, "/metrics/summary")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistogramEndpoint(t *testing.T) {
	router, _, _, collector := testRouter(t)

	for i := 1; i <= 100; i++ {
		collector.RecordHistogram("call_ms", float64(i), nil)
	}

	w, body := doRequest(router, http.MethodGet, "/metrics/histograms/call_ms")
	require.Equal(t, http.StatusOK, w.Code)

	histogram := body["histogram"].(map[string]any)
	assert.Equal(t, float64(50), histogram["p50"])
	assert.Equal(t, float64(95), histogram["p95"])
	assert.Equal(t, float64(99), histogram["p99"])

	w, _ = doRequest(router, http.MethodGet, "/metrics/histograms/absent")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCountersEndpoint(t *testing.T) {
	router, _, _, collector := testRouter(t)
	collector.IncrementCounter("hits", 2, nil)

	w, body := doRequest(router, http.MethodGet, "/metrics/counters")
	require.Equal(t, http.StatusOK, w.Code)

	counters := body["counters"].(map[string]any)
	assert.Equal(t, float64(2), counters["hits"])
}
