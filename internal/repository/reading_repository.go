package repository

import (
	"context"
	"time"

	"geomonitoring/internal/models"

	"gorm.io/gorm"
)

type ReadingRepository interface {
	Create(ctx context.Context, reading *models.Reading) error
	BatchCreate(ctx context.Context, readings []models.Reading) error
	GetByRange(ctx context.Context, sensorID uint, from, to time.Time) ([]models.Reading, error)
	GetLatest(ctx context.Context, sensorID uint, limit int) ([]models.Reading, error)
	FindByNaturalKey(ctx context.Context, sensorID uint, timestamp time.Time) (*models.Reading, error)
	GetAlerts(ctx context.Context, since time.Time) ([]models.Reading, error)
	Count(ctx context.Context) (int64, error)
	CountBySensor(ctx context.Context, sensorID uint) (int64, error)
	DeleteOld(ctx context.Context, olderThan time.Time) (int64, error)
}

type readingRepository struct {
	db *gorm.DB
}

func NewReadingRepository(db *gorm.DB) ReadingRepository {
	return &readingRepository{db: db}
}

// Create inserts a single row; each reading is its own transaction.
func (r *readingRepository) Create(ctx context.Context, reading *models.Reading) error {
	return r.db.WithContext(ctx).Create(reading).Error
}

func (r *readingRepository) BatchCreate(ctx context.Context, readings []models.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(readings, 500).Error
}

// GetByRange returns readings with from <= timestamp <= to in ascending order.
func (r *readingRepository) GetByRange(ctx context.Context, sensorID uint, from, to time.Time) ([]models.Reading, error) {
	var readings []models.Reading
	err := r.db.WithContext(ctx).
		Where("sensor_id = ? AND timestamp BETWEEN ? AND ?", sensorID, from, to).
		Order("timestamp ASC, id ASC").
		Find(&readings).
		Error
	return readings, err
}

// GetLatest returns the newest readings by timestamp, newest first.
func (r *readingRepository) GetLatest(ctx context.Context, sensorID uint, limit int) ([]models.Reading, error) {
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	var readings []models.Reading
	err := r.db.WithContext(ctx).
		Where("sensor_id = ?", sensorID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&readings).
		Error
	return readings, err
}

func (r *readingRepository) FindByNaturalKey(ctx context.Context, sensorID uint, timestamp time.Time) (*models.Reading, error) {
	var reading models.Reading
	err := r.db.WithContext(ctx).
		Where("sensor_id = ? AND timestamp = ?", sensorID, timestamp).
		Order("id ASC").
		First(&reading).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &reading, nil
}

func (r *readingRepository) GetAlerts(ctx context.Context, since time.Time) ([]models.Reading, error) {
	var readings []models.Reading
	err := r.db.WithContext(ctx).
		Where("is_alert = ? AND timestamp >= ?", true, since).
		Order("timestamp DESC").
		Find(&readings).
		Error
	return readings, err
}

func (r *readingRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reading{}).
		Count(&count).
		Error
	return count, err
}

func (r *readingRepository) CountBySensor(ctx context.Context, sensorID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reading{}).
		Where("sensor_id = ?", sensorID).
		Count(&count).
		Error
	return count, err
}

func (r *readingRepository) DeleteOld(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("timestamp < ?", olderThan).
		Delete(&models.Reading{})
	return result.RowsAffected, result.Error
}
