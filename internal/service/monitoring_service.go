package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geomonitoring/internal/ingest"
	"geomonitoring/internal/models"
	"geomonitoring/internal/repository"
	"geomonitoring/internal/transport"

	"go.uber.org/zap"
)

type LastReading struct {
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
	IsAlert   bool      `json:"is_alert"`
}

type SensorDetails struct {
	models.Sensor
	LastReading *LastReading `json:"last_reading"`
}

type AlertView struct {
	ID         uint      `json:"id"`
	SensorID   uint      `json:"sensor_id"`
	SensorName string    `json:"sensor_name"`
	BuildingID *uint     `json:"building_id"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	Timestamp  time.Time `json:"timestamp"`
}

type SystemStats struct {
	Buildings       int64            `json:"buildings"`
	Sensors         int64            `json:"sensors"`
	Readings        int64            `json:"readings"`
	AlertsLast24h   int              `json:"alerts_last_24h"`
	Ingest          map[string]int64 `json:"ingest"`
	DeadLetterDepth int64            `json:"dead_letter_depth"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

type NewReading struct {
	Value     float64
	Unit      string
	Timestamp time.Time
}

type MonitoringService interface {
	ListBuildings(ctx context.Context) ([]models.Building, error)
	GetBuilding(ctx context.Context, id uint) (*models.Building, error)
	ListSensors(ctx context.Context, buildingID *uint) ([]models.Sensor, error)
	GetSensor(ctx context.Context, id uint) (*SensorDetails, error)
	GetReadings(ctx context.Context, sensorID uint, hours int) ([]models.Reading, error)
	AddReading(ctx context.Context, sensorID uint, in NewReading) (*models.Reading, error)
	GetAlerts(ctx context.Context, hours int) ([]AlertView, error)
	Stats(ctx context.Context) (*SystemStats, error)
}

type MonitoringConfig struct {
	MaxHours         int
	DeadLetterStream string
	Clock            func() time.Time
}

type monitoringService struct {
	buildings repository.BuildingRepository
	sensors   repository.SensorRepository
	readings  repository.ReadingRepository
	pipeline  *ingest.Pipeline
	cache     repository.CacheRepository
	cfg       MonitoringConfig
	logger    *zap.Logger
}

func NewMonitoringService(
	buildings repository.BuildingRepository,
	sensors repository.SensorRepository,
	readings repository.ReadingRepository,
	pipeline *ingest.Pipeline,
	cache repository.CacheRepository,
	cfg MonitoringConfig,
	logger *zap.Logger,
) MonitoringService {
	if cfg.MaxHours <= 0 {
		cfg.MaxHours = MaxHours
	}
	if cfg.DeadLetterStream == "" {
		cfg.DeadLetterStream = transport.DefaultDeadLetterStream
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &monitoringService{
		buildings: buildings,
		sensors:   sensors,
		readings:  readings,
		pipeline:  pipeline,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *monitoringService) ListBuildings(ctx context.Context) ([]models.Building, error) {
	return s.buildings.List(ctx)
}

func (s *monitoringService) GetBuilding(ctx context.Context, id uint) (*models.Building, error) {
	b, err := s.buildings.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("building %d: %w", id, err)
	}
	return b, nil
}

func (s *monitoringService) ListSensors(ctx context.Context, buildingID *uint) ([]models.Sensor, error) {
	return s.sensors.ListSensors(ctx, buildingID)
}

func (s *monitoringService) GetSensor(ctx context.Context, id uint) (*SensorDetails, error) {
	sensor, err := s.sensors.GetSensor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("sensor %d: %w", id, err)
	}
	details := &SensorDetails{Sensor: *sensor}

	latest, err := s.readings.GetLatest(ctx, id, 1)
	if err != nil {
		return nil, fmt.Errorf("last reading of sensor %d: %w", id, err)
	}
	if len(latest) > 0 {
		r := latest[0]
		details.LastReading = &LastReading{
			Value:     r.Value,
			Unit:      r.Unit,
			Timestamp: r.Timestamp,
			IsAlert:   r.IsAlert,
		}
	}
	return details, nil
}

// GetReadings returns the readings of the last hours hours, newest first.
func (s *monitoringService) GetReadings(ctx context.Context, sensorID uint, hours int) ([]models.Reading, error) {
	if _, err := s.sensors.GetSensor(ctx, sensorID); err != nil {
		return nil, fmt.Errorf("sensor %d: %w", sensorID, err)
	}
	hours = ClampHours(hours, DefaultHours, s.cfg.MaxHours)
	end := s.cfg.Clock().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)

	readings, err := s.readings.GetByRange(ctx, sensorID, start, end)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}
	return readings, nil
}

func (s *monitoringService) AddReading(ctx context.Context, sensorID uint, in NewReading) (*models.Reading, error) {
	reading, err := s.pipeline.Ingest(ctx, sensorID, in.Timestamp, in.Value, in.Unit)
	if err != nil {
		if errors.Is(err, ingest.ErrUnknownSensor) {
			return nil, fmt.Errorf("sensor %d: %w", sensorID, repository.ErrNotFound)
		}
		return reading, err
	}
	return reading, nil
}

func (s *monitoringService) GetAlerts(ctx context.Context, hours int) ([]AlertView, error) {
	hours = ClampHours(hours, DefaultHours, s.cfg.MaxHours)
	since := s.cfg.Clock().UTC().Add(-time.Duration(hours) * time.Hour)

	alerts, err := s.readings.GetAlerts(ctx, since)
	if err != nil {
		return nil, err
	}

	sensors, err := s.sensors.ListSensors(ctx, nil)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Sensor, len(sensors))
	for _, sensor := range sensors {
		byID[sensor.ID] = sensor
	}

	views := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		view := AlertView{
			ID:         a.ID,
			SensorID:   a.SensorID,
			SensorName: "unknown sensor",
			Value:      a.Value,
			Unit:       a.Unit,
			Timestamp:  a.Timestamp,
		}
		if sensor, ok := byID[a.SensorID]; ok {
			buildingID := sensor.BuildingID
			view.SensorName = sensor.Name
			view.BuildingID = &buildingID
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *monitoringService) Stats(ctx context.Context) (*SystemStats, error) {
	stats := &SystemStats{
		Ingest:      make(map[string]int64),
		GeneratedAt: s.cfg.Clock().UTC(),
	}

	var err error
	if stats.Buildings, err = s.buildings.Count(ctx); err != nil {
		return nil, err
	}
	if stats.Sensors, err = s.sensors.Count(ctx); err != nil {
		return nil, err
	}
	if stats.Readings, err = s.readings.Count(ctx); err != nil {
		return nil, err
	}
	alerts, err := s.readings.GetAlerts(ctx, stats.GeneratedAt.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	stats.AlertsLast24h = len(alerts)

	// Счётчики ingest живут в redis; его недоступность не ломает статистику
	if s.cache == nil {
		return stats, nil
	}
	counters := map[string]string{
		"accepted":   transport.CounterAccepted,
		"rejected":   transport.CounterRejected,
		"duplicates": transport.CounterDuplicates,
	}
	for name, key := range counters {
		var n int64
		found, err := s.cache.GetJSON(ctx, key, &n)
		if err != nil {
			s.logger.Warn("failed to read ingest counter", zap.String("key", key), zap.Error(err))
			continue
		}
		if found {
			stats.Ingest[name] = n
		}
	}
	depth, err := s.cache.StreamLength(ctx, s.cfg.DeadLetterStream)
	if err != nil {
		s.logger.Warn("failed to read dead-letter depth", zap.Error(err))
	} else {
		stats.DeadLetterDepth = depth
	}
	return stats, nil
}
