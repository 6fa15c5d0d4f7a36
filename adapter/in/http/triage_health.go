package http

import (
	"context"
	"time"

	"triage_server/pkg/metrics"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// PingFunc checks one dependency.
type PingFunc func(ctx context.Context) error

// StatsFunc snapshots one connection pool.
type StatsFunc func() any

type HealthHandler struct {
	checks  map[string]PingFunc
	pools   map[string]StatsFunc
	latency *metrics.LatencyRegistry
}

// NewHealthHandler builds the probe handler. checks are pinged by /ready;
// pools are reported by /metrics/latency next to the latency windows.
func NewHealthHandler(checks map[string]PingFunc, pools map[string]StatsFunc, latency *metrics.LatencyRegistry) *HealthHandler {
	if latency == nil {
		latency = metrics.GlobalRegistry()
	}
	return &HealthHandler{checks: checks, pools: pools, latency: latency}
}

func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
	router.Get("/metrics/latency", h.Latency)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	allHealthy := true
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			results[name] = "unhealthy: " + err.Error()
			allHealthy = false
			continue
		}
		results[name] = "healthy"
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    results,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Latency reports classifier, ranker and ingestion timings.
func (h *HealthHandler) Latency(c *fiber.Ctx) error {
	ops := make(map[string]map[string]any)
	for op, s := range h.latency.AllStats() {
		ops[op] = s.ToMap()
	}
	pools := make(map[string]any, len(h.pools))
	for name, stats := range h.pools {
		pools[name] = stats()
	}
	return response.OK(c, fiber.Map{
		"operations": ops,
		"pools":      pools,
	})
}
