package handlers

import (
	"context"
	"net/http"
	"time"

	"geomonitoring/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck reports the state of one dependency.
type HealthCheck func(ctx context.Context) error

type SystemHandler struct {
	monitoring service.MonitoringService
	seed       service.SeedService
	checks     map[string]HealthCheck
	redisStats func(ctx context.Context) (map[string]string, error)
	logger     *zap.Logger
}

func NewSystemHandler(
	monitoring service.MonitoringService,
	seed service.SeedService,
	checks map[string]HealthCheck,
	redisStats func(ctx context.Context) (map[string]string, error),
	logger *zap.Logger,
) *SystemHandler {
	return &SystemHandler{
		monitoring: monitoring,
		seed:       seed,
		checks:     checks,
		redisStats: redisStats,
		logger:     logger,
	}
}

// Health returns 503 when any dependency check fails.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	services := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			services[name] = "unavailable: " + err.Error()
			continue
		}
		services[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  services,
	})
}

func (h *SystemHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.monitoring.Stats(ctx)
	if err != nil {
		respondError(c, h.logger, err, "failed to collect stats")
		return
	}

	resp := gin.H{"store": stats}
	if h.redisStats != nil {
		// Статистика из Redis
		redisStats, err := h.redisStats(ctx)
		if err != nil {
			h.logger.Warn("failed to read redis stats", zap.Error(err))
		} else {
			resp["redis"] = redisStats
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SystemHandler) InitSampleData(c *gin.Context) {
	summary, err := h.seed.SeedSampleData(c.Request.Context(), service.DefaultSeedOptions())
	if err != nil {
		respondError(c, h.logger, err, "failed to create sample data")
		return
	}
	c.JSON(http.StatusOK, summary)
}
