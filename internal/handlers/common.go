package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"geomonitoring/internal/ingest"
	"geomonitoring/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sosodev/duration"
	"go.uber.org/zap"
)

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// queryInt returns 0 when the parameter is absent so services apply their
// defaults.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + ": must be an integer"})
		return 0, false
	}
	return v, true
}

// queryHours reads hours, or window as an ISO-8601 duration such as P2D.
// window wins when both are present.
func queryHours(c *gin.Context) (int, bool) {
	if raw := c.Query("window"); raw != "" {
		d, err := duration.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window: expected an ISO-8601 duration such as P2D"})
			return 0, false
		}
		hours := service.HoursFromDuration(d.ToTimeDuration())
		if hours < 1 {
			hours = 1
		}
		return hours, true
	}
	return queryInt(c, "hours")
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, logger *zap.Logger, err error, msg string) {
	switch {
	case service.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ingest.ErrStorageUnavailable):
		logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": msg})
	default:
		logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   msg,
			"message": err.Error(),
		})
	}
}
