// Package ingest turns raw sensor values into persisted readings with the
// alert flag computed at write time.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"geomonitoring/internal/models"
	"geomonitoring/internal/repository"
	"geomonitoring/internal/threshold"

	"go.uber.org/zap"
)

var (
	ErrUnknownSensor      = errors.New("unknown sensor")
	ErrDuplicateReading   = errors.New("duplicate reading")
	ErrStorageUnavailable = errors.New("reading store unavailable")
)

type DedupPolicy string

const (
	// DedupNone stores every delivery, so a redelivered message yields two rows.
	DedupNone DedupPolicy = "none"
	// DedupNaturalKey rejects a reading whose (sensor_id, timestamp) already exists.
	DedupNaturalKey DedupPolicy = "natural_key"
)

func ParseDedupPolicy(s string) (DedupPolicy, error) {
	switch DedupPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DedupNone:
		return DedupNone, nil
	case DedupNaturalKey:
		return DedupNaturalKey, nil
	}
	return DedupNone, fmt.Errorf("unknown dedup policy %q", s)
}

// Notifier receives every reading that was stored with the alert flag set.
type Notifier interface {
	NotifyAlert(ctx context.Context, sensor *models.Sensor, reading *models.Reading) error
}

type Options struct {
	Dedup    DedupPolicy
	Bounds   threshold.Mode
	Notifier Notifier
	Clock    func() time.Time
}

type Pipeline struct {
	sensors      repository.SensorRepository
	readings     repository.ReadingRepository
	alertConfigs repository.AlertConfigRepository
	logger       *zap.Logger
	opts         Options
}

func NewPipeline(
	sensors repository.SensorRepository,
	readings repository.ReadingRepository,
	alertConfigs repository.AlertConfigRepository,
	logger *zap.Logger,
	opts Options,
) *Pipeline {
	if opts.Dedup == "" {
		opts.Dedup = DedupNone
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Pipeline{
		sensors:      sensors,
		readings:     readings,
		alertConfigs: alertConfigs,
		logger:       logger,
		opts:         opts,
	}
}

// Ingest validates the sensor, evaluates thresholds and stores one reading.
// A zero timestamp means "now"; an empty unit falls back to the configured
// unit and then to the nominal unit of the sensor type.
func (p *Pipeline) Ingest(ctx context.Context, sensorID uint, timestamp time.Time, value float64, unit string) (*models.Reading, error) {
	sensor, err := p.sensors.GetSensor(ctx, sensorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownSensor, sensorID)
		}
		return nil, p.storageFailure("load sensor", sensorID, err)
	}

	cfg, err := p.alertConfigs.GetBySensorType(ctx, sensor.SensorType)
	if err != nil {
		return nil, p.storageFailure("load alert config", sensorID, err)
	}

	if timestamp.IsZero() {
		timestamp = p.opts.Clock()
	}
	timestamp = timestamp.UTC()

	if p.opts.Dedup == DedupNaturalKey {
		existing, err := p.readings.FindByNaturalKey(ctx, sensorID, timestamp)
		switch {
		case err == nil && existing != nil:
			return existing, fmt.Errorf("%w: sensor %d at %s", ErrDuplicateReading, sensorID, timestamp.Format(time.RFC3339Nano))
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, p.storageFailure("dedup lookup", sensorID, err)
		}
	}

	reading := &models.Reading{
		SensorID:  sensorID,
		Timestamp: timestamp,
		Value:     value,
		Unit:      resolveUnit(unit, cfg, sensor.SensorType),
		IsAlert:   p.opts.Bounds.Exceeds(cfg, value),
	}

	if err := p.readings.Create(ctx, reading); err != nil {
		return nil, p.storageFailure("store reading", sensorID, err)
	}

	if reading.IsAlert {
		p.logger.Info("threshold exceeded",
			zap.Uint("sensor_id", sensorID),
			zap.String("sensor_type", string(sensor.SensorType)),
			zap.Float64("value", value),
			zap.String("unit", reading.Unit),
		)
		if p.opts.Notifier != nil {
			if err := p.opts.Notifier.NotifyAlert(ctx, sensor, reading); err != nil {
				p.logger.Warn("alert notification failed", zap.Uint("sensor_id", sensorID), zap.Error(err))
			}
		}
	}

	return reading, nil
}

func (p *Pipeline) storageFailure(op string, sensorID uint, err error) error {
	p.logger.Error("ingest aborted",
		zap.String("op", op),
		zap.Uint("sensor_id", sensorID),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}

func resolveUnit(unit string, cfg *models.AlertConfig, sensorType models.SensorType) string {
	if u := strings.TrimSpace(unit); u != "" {
		return u
	}
	if cfg != nil && cfg.Unit != "" {
		return cfg.Unit
	}
	return sensorType.Profile().Unit
}
