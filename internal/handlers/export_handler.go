package handlers

import (
	"path/filepath"
	"strings"

	"geomonitoring/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ExportHandler struct {
	service service.ExportService
	logger  *zap.Logger
}

func NewExportHandler(service service.ExportService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{service: service, logger: logger}
}

func (h *ExportHandler) ExportReadings(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	hours, ok := queryHours(c)
	if !ok {
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", "csv"))

	path, err := h.service.ExportReadings(c.Request.Context(), id, format, hours)
	if err != nil {
		respondError(c, h.logger, err, "failed to export readings")
		return
	}

	// Определяем Content-Type
	var contentType string
	switch format {
	case "excel", "xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "json":
		contentType = "application/json"
	default:
		contentType = "text/csv"
	}

	c.Header("Content-Type", contentType)
	c.FileAttachment(path, filepath.Base(path))
}
