package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"geomonitoring/internal/ingest"
	"geomonitoring/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/relvacode/iso8601"
	"go.uber.org/zap"
)

type SensorHandler struct {
	service service.MonitoringService
	logger  *zap.Logger
}

func NewSensorHandler(service service.MonitoringService, logger *zap.Logger) *SensorHandler {
	return &SensorHandler{service: service, logger: logger}
}

func (h *SensorHandler) ListBuildings(c *gin.Context) {
	buildings, err := h.service.ListBuildings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "failed to list buildings")
		return
	}
	c.JSON(http.StatusOK, buildings)
}

func (h *SensorHandler) GetBuilding(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	building, err := h.service.GetBuilding(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to get building")
		return
	}
	c.JSON(http.StatusOK, building)
}

func (h *SensorHandler) ListSensors(c *gin.Context) {
	var buildingID *uint
	if raw := c.Query("building_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid building_id"})
			return
		}
		id := uint(v)
		buildingID = &id
	}

	sensors, err := h.service.ListSensors(c.Request.Context(), buildingID)
	if err != nil {
		respondError(c, h.logger, err, "failed to list sensors")
		return
	}
	c.JSON(http.StatusOK, sensors)
}

func (h *SensorHandler) GetSensor(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sensor, err := h.service.GetSensor(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to get sensor")
		return
	}
	c.JSON(http.StatusOK, sensor)
}

func (h *SensorHandler) GetReadings(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	hours, ok := queryHours(c)
	if !ok {
		return
	}

	readings, err := h.service.GetReadings(c.Request.Context(), id, hours)
	if err != nil {
		respondError(c, h.logger, err, "failed to get readings")
		return
	}
	c.JSON(http.StatusOK, readings)
}

type addReadingRequest struct {
	Value     *float64 `json:"value" binding:"required"`
	Unit      string   `json:"unit"`
	Timestamp string   `json:"timestamp"`
}

func (h *SensorHandler) AddReading(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req addReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}

	var ts time.Time
	if req.Timestamp != "" {
		parsed, err := iso8601.ParseString(req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timestamp: expected ISO-8601"})
			return
		}
		ts = parsed
	}

	reading, err := h.service.AddReading(c.Request.Context(), id, service.NewReading{
		Value:     *req.Value,
		Unit:      req.Unit,
		Timestamp: ts,
	})
	if err != nil {
		if errors.Is(err, ingest.ErrDuplicateReading) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "reading": reading})
			return
		}
		respondError(c, h.logger, err, "failed to add reading")
		return
	}
	c.JSON(http.StatusCreated, reading)
}

func (h *SensorHandler) GetAlerts(c *gin.Context) {
	hours, ok := queryHours(c)
	if !ok {
		return
	}
	alerts, err := h.service.GetAlerts(c.Request.Context(), hours)
	if err != nil {
		respondError(c, h.logger, err, "failed to get alerts")
		return
	}
	c.JSON(http.StatusOK, alerts)
}
