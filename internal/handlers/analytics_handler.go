package handlers

import (
	"net/http"

	"geomonitoring/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AnalyticsHandler struct {
	approximation service.ApproximationService
	prediction    service.PredictionService
	logger        *zap.Logger
}

func NewAnalyticsHandler(approximation service.ApproximationService, prediction service.PredictionService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		approximation: approximation,
		prediction:    prediction,
		logger:        logger,
	}
}

// GetApproximation отдает аппроксимацию показаний датчика.
// Недостаток данных не является ошибкой: 200 с заполненным полем error.
func (h *AnalyticsHandler) GetApproximation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	hours, ok := queryHours(c)
	if !ok {
		return
	}
	degree, ok := queryInt(c, "degree")
	if !ok {
		return
	}
	numPoints, ok := queryInt(c, "num_points")
	if !ok {
		return
	}

	resp, err := h.approximation.Approximate(c.Request.Context(), id, service.ApproximationQuery{
		Hours:     hours,
		Degree:    degree,
		NumPoints: numPoints,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to approximate readings")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AnalyticsHandler) GetTrend(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	hours, ok := queryHours(c)
	if !ok {
		return
	}

	resp, err := h.approximation.Trend(c.Request.Context(), id, hours)
	if err != nil {
		respondError(c, h.logger, err, "failed to classify trend")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AnalyticsHandler) GetPredictions(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	hours, ok := queryInt(c, "hours")
	if !ok {
		return
	}

	resp, err := h.prediction.Predict(c.Request.Context(), id, hours)
	if err != nil {
		respondError(c, h.logger, err, "failed to predict readings")
		return
	}
	c.JSON(http.StatusOK, resp)
}
