package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geomonitoring/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AlertConfigRepository interface {
	// GetBySensorType returns nil without error when no config exists.
	GetBySensorType(ctx context.Context, sensorType models.SensorType) (*models.AlertConfig, error)
	List(ctx context.Context) ([]models.AlertConfig, error)
	Upsert(ctx context.Context, configs []models.AlertConfig) error
}

type alertConfigRepository struct {
	db *gorm.DB
}

func NewAlertConfigRepository(db *gorm.DB) AlertConfigRepository {
	return &alertConfigRepository{db: db}
}

func (r *alertConfigRepository) GetBySensorType(ctx context.Context, sensorType models.SensorType) (*models.AlertConfig, error) {
	var cfg models.AlertConfig
	err := r.db.WithContext(ctx).
		Where("sensor_type = ?", sensorType).
		First(&cfg).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *alertConfigRepository) List(ctx context.Context) ([]models.AlertConfig, error) {
	var configs []models.AlertConfig
	err := r.db.WithContext(ctx).Order("sensor_type ASC").Find(&configs).Error
	return configs, err
}

func (r *alertConfigRepository) Upsert(ctx context.Context, configs []models.AlertConfig) error {
	if len(configs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sensor_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"min_threshold", "max_threshold", "unit"}),
		}).
		Create(&configs).
		Error
}

type cachedAlertConfig struct {
	Found  bool                `json:"found"`
	Config *models.AlertConfig `json:"config,omitempty"`
}

// cachedAlertConfigRepository keeps per-type lookups in redis so the ingest
// path does not hit the database for every reading. Absent configs are cached
// too. Cache failures fall through to the database.
type cachedAlertConfigRepository struct {
	next   AlertConfigRepository
	cache  CacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedAlertConfigRepository(next AlertConfigRepository, cache CacheRepository, ttl time.Duration, logger *zap.Logger) AlertConfigRepository {
	return &cachedAlertConfigRepository{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func alertConfigKey(sensorType models.SensorType) string {
	return fmt.Sprintf("geo:alert_config:%s", sensorType)
}

func (r *cachedAlertConfigRepository) GetBySensorType(ctx context.Context, sensorType models.SensorType) (*models.AlertConfig, error) {
	key := alertConfigKey(sensorType)

	var cached cachedAlertConfig
	found, err := r.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		r.logger.Warn("alert config cache read failed", zap.String("key", key), zap.Error(err))
	} else if found {
		if !cached.Found {
			return nil, nil
		}
		return cached.Config, nil
	}

	cfg, err := r.next.GetBySensorType(ctx, sensorType)
	if err != nil {
		return nil, err
	}

	entry := cachedAlertConfig{Found: cfg != nil, Config: cfg}
	if err := r.cache.SetJSON(ctx, key, entry, r.ttl); err != nil {
		r.logger.Warn("alert config cache write failed", zap.String("key", key), zap.Error(err))
	}
	return cfg, nil
}

func (r *cachedAlertConfigRepository) List(ctx context.Context) ([]models.AlertConfig, error) {
	return r.next.List(ctx)
}

func (r *cachedAlertConfigRepository) Upsert(ctx context.Context, configs []models.AlertConfig) error {
	if err := r.next.Upsert(ctx, configs); err != nil {
		return err
	}
	keys := make([]string, 0, len(configs))
	for _, c := range configs {
		keys = append(keys, alertConfigKey(c.SensorType))
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.Warn("alert config cache invalidation failed", zap.Error(err))
	}
	return nil
}
