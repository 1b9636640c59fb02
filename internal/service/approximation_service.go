package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"geomonitoring/internal/fitting"
	"geomonitoring/internal/models"
	"geomonitoring/internal/repository"
	"geomonitoring/internal/trend"
	"geomonitoring/internal/window"

	"go.uber.org/zap"
)

type ApproximationQuery struct {
	Hours     int
	Degree    int
	NumPoints int
}

type WindowInfo struct {
	Start          time.Time       `json:"start"`
	End            time.Time       `json:"end"`
	RequestedHours int             `json:"requested_hours"`
	Strategy       window.Strategy `json:"strategy"`
	Multiplier     int             `json:"multiplier"`
	TrainingPoints int             `json:"training_points"`
}

type ApproximationResponse struct {
	SensorID       uint              `json:"sensor_id"`
	SensorType     models.SensorType `json:"sensor_type"`
	Unit           string            `json:"unit"`
	Window         WindowInfo        `json:"window"`
	OriginalData   []fitting.Point   `json:"original_data"`
	Approximation  []fitting.Point   `json:"approximation"`
	QualityMetrics *fitting.Quality  `json:"quality_metrics"`
	TrendAnalysis  trend.Analysis    `json:"trend_analysis"`
	Error          *string           `json:"error"`
}

type TrendResponse struct {
	SensorID      uint           `json:"sensor_id"`
	Hours         int            `json:"hours"`
	TrendAnalysis trend.Analysis `json:"trend_analysis"`
	Method        string         `json:"method,omitempty"`
	RSquared      *float64       `json:"r_squared,omitempty"`
	Error         *string        `json:"error"`
}

type ApproximationService interface {
	Approximate(ctx context.Context, sensorID uint, q ApproximationQuery) (*ApproximationResponse, error)
	Trend(ctx context.Context, sensorID uint, hours int) (*TrendResponse, error)
}

type ApproximationConfig struct {
	DefaultHours int
	MaxHours     int
	CacheTTL     time.Duration
	Classifier   trend.Classifier
}

type approximationService struct {
	sensors  repository.SensorRepository
	resolver *window.Resolver
	engine   *fitting.Engine
	cache    repository.CacheRepository
	cfg      ApproximationConfig
	logger   *zap.Logger
}

func NewApproximationService(
	sensors repository.SensorRepository,
	resolver *window.Resolver,
	engine *fitting.Engine,
	cache repository.CacheRepository,
	cfg ApproximationConfig,
	logger *zap.Logger,
) ApproximationService {
	if cfg.DefaultHours <= 0 {
		cfg.DefaultHours = DefaultHours
	}
	if cfg.MaxHours <= 0 {
		cfg.MaxHours = MaxHours
	}
	if cfg.Classifier == (trend.Classifier{}) {
		cfg.Classifier = trend.NewClassifier()
	}
	return &approximationService{
		sensors:  sensors,
		resolver: resolver,
		engine:   engine,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
	}
}

func approximationCacheKey(sensorID uint, q ApproximationQuery) string {
	return fmt.Sprintf("geo:approx:%d:%d:%d:%d", sensorID, q.Hours, q.Degree, q.NumPoints)
}

func (s *approximationService) normalize(q ApproximationQuery) ApproximationQuery {
	return ApproximationQuery{
		Hours:     ClampHours(q.Hours, s.cfg.DefaultHours, s.cfg.MaxHours),
		Degree:    ClampDegree(q.Degree),
		NumPoints: ClampNumPoints(q.NumPoints),
	}
}

func (s *approximationService) Approximate(ctx context.Context, sensorID uint, q ApproximationQuery) (*ApproximationResponse, error) {
	q = s.normalize(q)

	sensor, err := s.sensors.GetSensor(ctx, sensorID)
	if err != nil {
		return nil, fmt.Errorf("sensor %d: %w", sensorID, err)
	}

	key := approximationCacheKey(sensorID, q)
	if s.cache != nil && s.cfg.CacheTTL > 0 {
		var cached ApproximationResponse
		found, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("approximation cache read failed", zap.String("key", key), zap.Error(err))
		} else if found {
			return &cached, nil
		}
	}

	w, err := s.resolver.Resolve(ctx, sensorID, q.Hours)
	if err != nil {
		return nil, err
	}

	result := s.engine.Fit(fitting.Request{
		Training:  w.Training,
		Display:   w.Display,
		Start:     w.Start,
		End:       w.End,
		Degree:    q.Degree,
		NumPoints: q.NumPoints,
	})

	resp := &ApproximationResponse{
		SensorID:   sensor.ID,
		SensorType: sensor.SensorType,
		Unit:       sensor.SensorType.Profile().Unit,
		Window: WindowInfo{
			Start:          w.Start,
			End:            w.End,
			RequestedHours: w.RequestedHours,
			Strategy:       w.Strategy,
			Multiplier:     w.Multiplier,
			TrainingPoints: len(w.Training),
		},
		OriginalData:   result.OriginalData,
		Approximation:  result.Approximation,
		QualityMetrics: result.Quality,
		Error:          result.Error,
	}

	classifier := s.cfg.Classifier
	if result.Quality != nil && !result.Failed() {
		classifier = classifier.ForNoise(relativeNoisePercent(result.Quality.ResidualStd, w.Training))
	}
	resp.TrendAnalysis = classifier.Classify(result.Approximation)

	if result.Failed() {
		s.logger.Info("approximation unavailable",
			zap.Uint("sensor_id", sensorID),
			zap.Int("hours", q.Hours),
			zap.Int("training_points", len(w.Training)),
			zap.String("reason", *result.Error),
		)
	}

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		if err := s.cache.SetJSON(ctx, key, resp, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("approximation cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return resp, nil
}

func (s *approximationService) Trend(ctx context.Context, sensorID uint, hours int) (*TrendResponse, error) {
	approx, err := s.Approximate(ctx, sensorID, ApproximationQuery{Hours: hours})
	if err != nil {
		return nil, err
	}
	resp := &TrendResponse{
		SensorID:      sensorID,
		Hours:         approx.Window.RequestedHours,
		TrendAnalysis: approx.TrendAnalysis,
		Error:         approx.Error,
	}
	if approx.QualityMetrics != nil && approx.Error == nil {
		r2 := approx.QualityMetrics.RSquared
		resp.Method = approx.QualityMetrics.Method
		resp.RSquared = &r2
	}
	return resp, nil
}

// relativeNoisePercent is the residual spread as a percentage of the mean
// training level; 0 when the level is zero.
func relativeNoisePercent(residualStd float64, training []models.Reading) float64 {
	if len(training) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range training {
		sum += r.Value
	}
	level := math.Abs(sum / float64(len(training)))
	if level == 0 {
		return 0
	}
	return residualStd / level * 100
}

// IsNotFound reports whether err means a missing sensor or building.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
