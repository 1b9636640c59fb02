package repository

import (
	"context"

	"geomonitoring/internal/models"

	"gorm.io/gorm"
)

type SensorRepository interface {
	GetSensor(ctx context.Context, id uint) (*models.Sensor, error)
	ListSensors(ctx context.Context, buildingID *uint) ([]models.Sensor, error)
	ListActiveSensors(ctx context.Context) ([]models.Sensor, error)
	CreateSensors(ctx context.Context, sensors []models.Sensor) error
	UpdateStatus(ctx context.Context, id uint, status models.SensorStatus) error
	Count(ctx context.Context) (int64, error)
}

type BuildingRepository interface {
	List(ctx context.Context) ([]models.Building, error)
	Get(ctx context.Context, id uint) (*models.Building, error)
	CreateBuildings(ctx context.Context, buildings []models.Building) error
	Count(ctx context.Context) (int64, error)
}

type sensorRepository struct {
	db *gorm.DB
}

func NewSensorRepository(db *gorm.DB) SensorRepository {
	return &sensorRepository{db: db}
}

func (r *sensorRepository) GetSensor(ctx context.Context, id uint) (*models.Sensor, error) {
	var sensor models.Sensor
	if err := r.db.WithContext(ctx).First(&sensor, id).Error; err != nil {
		return nil, translate(err)
	}
	return &sensor, nil
}

func (r *sensorRepository) ListSensors(ctx context.Context, buildingID *uint) ([]models.Sensor, error) {
	var sensors []models.Sensor
	q := r.db.WithContext(ctx).Order("id ASC")
	if buildingID != nil {
		q = q.Where("building_id = ?", *buildingID)
	}
	err := q.Find(&sensors).Error
	return sensors, err
}

func (r *sensorRepository) ListActiveSensors(ctx context.Context) ([]models.Sensor, error) {
	var sensors []models.Sensor
	err := r.db.WithContext(ctx).
		Where("status = ?", models.SensorStatusActive).
		Order("id ASC").
		Find(&sensors).
		Error
	return sensors, err
}

func (r *sensorRepository) CreateSensors(ctx context.Context, sensors []models.Sensor) error {
	if len(sensors) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&sensors).Error
}

func (r *sensorRepository) UpdateStatus(ctx context.Context, id uint, status models.SensorStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Sensor{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sensorRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Sensor{}).Count(&count).Error
	return count, err
}

type buildingRepository struct {
	db *gorm.DB
}

func NewBuildingRepository(db *gorm.DB) BuildingRepository {
	return &buildingRepository{db: db}
}

func (r *buildingRepository) List(ctx context.Context) ([]models.Building, error) {
	var buildings []models.Building
	err := r.db.WithContext(ctx).Order("id ASC").Find(&buildings).Error
	return buildings, err
}

// Get loads the building together with its sensors.
func (r *buildingRepository) Get(ctx context.Context, id uint) (*models.Building, error) {
	var building models.Building
	err := r.db.WithContext(ctx).
		Preload("Sensors", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		First(&building, id).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &building, nil
}

func (r *buildingRepository) CreateBuildings(ctx context.Context, buildings []models.Building) error {
	if len(buildings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&buildings).Error
}

func (r *buildingRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Building{}).Count(&count).Error
	return count, err
}
