package service

import (
	"context"
	"fmt"
	"time"

	"geomonitoring/internal/fitting"
	"geomonitoring/internal/repository"
	"geomonitoring/internal/threshold"

	"go.uber.org/zap"
)

const (
	PredictionHistoryHours = 72
	PredictionMinPoints    = 5
	DefaultPredictHours    = 24
	MaxPredictHours        = 168
)

type PredictedValue struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type AlertPrediction struct {
	WillAlert bool       `json:"will_alert"`
	AlertTime *time.Time `json:"alert_time"`
}

type PredictionResponse struct {
	SensorID        uint             `json:"sensor_id"`
	Predictions     []PredictedValue `json:"predictions"`
	AlertPrediction AlertPrediction  `json:"alert_prediction"`
	Error           *string          `json:"error,omitempty"`
}

type PredictionService interface {
	Predict(ctx context.Context, sensorID uint, hours int) (*PredictionResponse, error)
}

type predictionService struct {
	sensors      repository.SensorRepository
	readings     repository.ReadingRepository
	alertConfigs repository.AlertConfigRepository
	bounds       threshold.Mode
	clock        func() time.Time
	logger       *zap.Logger
}

func NewPredictionService(
	sensors repository.SensorRepository,
	readings repository.ReadingRepository,
	alertConfigs repository.AlertConfigRepository,
	bounds threshold.Mode,
	clock func() time.Time,
	logger *zap.Logger,
) PredictionService {
	if clock == nil {
		clock = time.Now
	}
	return &predictionService{
		sensors:      sensors,
		readings:     readings,
		alertConfigs: alertConfigs,
		bounds:       bounds,
		clock:        clock,
		logger:       logger,
	}
}

// Predict fits a straight line to the last 72 hours and extends it hourly
// for the next hours hours. The first forecast crossing an alert bound is
// reported as the alert time.
func (s *predictionService) Predict(ctx context.Context, sensorID uint, hours int) (*PredictionResponse, error) {
	hours = ClampHours(hours, DefaultPredictHours, MaxPredictHours)

	sensor, err := s.sensors.GetSensor(ctx, sensorID)
	if err != nil {
		return nil, fmt.Errorf("sensor %d: %w", sensorID, err)
	}

	now := s.clock().UTC()
	history, err := s.readings.GetByRange(ctx, sensorID, now.Add(-PredictionHistoryHours*time.Hour), now)
	if err != nil {
		return nil, err
	}

	resp := &PredictionResponse{
		SensorID:    sensorID,
		Predictions: []PredictedValue{},
	}
	if len(history) < PredictionMinPoints {
		msg := fmt.Sprintf("insufficient data: at least %d readings in the last %d hours required, got %d",
			PredictionMinPoints, PredictionHistoryHours, len(history))
		resp.Error = &msg
		return resp, nil
	}

	origin := history[0].Timestamp
	xs := make([]float64, len(history))
	ys := make([]float64, len(history))
	for i, r := range history {
		xs[i] = r.Timestamp.Sub(origin).Hours()
		ys[i] = r.Value
	}

	model, err := fitting.FitLinear(xs, ys)
	if err != nil {
		s.logger.Info("prediction model unavailable", zap.Uint("sensor_id", sensorID), zap.Error(err))
		msg := err.Error()
		resp.Error = &msg
		return resp, nil
	}

	cfg, err := s.alertConfigs.GetBySensorType(ctx, sensor.SensorType)
	if err != nil {
		return nil, err
	}

	for h := 1; h <= hours; h++ {
		at := now.Add(time.Duration(h) * time.Hour)
		v := model.Predict(at.Sub(origin).Hours())
		resp.Predictions = append(resp.Predictions, PredictedValue{Timestamp: at, Value: v})

		if !resp.AlertPrediction.WillAlert && s.bounds.Exceeds(cfg, v) {
			alertAt := at
			resp.AlertPrediction = AlertPrediction{WillAlert: true, AlertTime: &alertAt}
		}
	}
	return resp, nil
}
