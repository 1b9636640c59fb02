package handlers

import "github.com/gin-gonic/gin"

type Handlers struct {
	Sensors   *SensorHandler
	Analytics *AnalyticsHandler
	Export    *ExportHandler
	System    *SystemHandler
}

// RegisterRoutes mounts the monitoring API on api. Sample-data seeding is
// only exposed when debug is set.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, debug bool) {
	api.GET("/health", h.System.Health)
	api.GET("/stats", h.System.Stats)

	api.GET("/buildings", h.Sensors.ListBuildings)
	api.GET("/buildings/:id", h.Sensors.GetBuilding)

	api.GET("/sensors", h.Sensors.ListSensors)
	api.GET("/sensors/:id", h.Sensors.GetSensor)
	api.GET("/sensors/:id/readings", h.Sensors.GetReadings)
	api.POST("/sensors/:id/readings", h.Sensors.AddReading)
	api.GET("/sensors/:id/approximation", h.Analytics.GetApproximation)
	api.GET("/sensors/:id/trend", h.Analytics.GetTrend)
	api.GET("/sensors/:id/predictions", h.Analytics.GetPredictions)
	api.GET("/sensors/:id/export", h.Export.ExportReadings)

	api.GET("/alerts", h.Sensors.GetAlerts)

	if debug {
		api.POST("/init-sample-data", h.System.InitSampleData)
	}
}
