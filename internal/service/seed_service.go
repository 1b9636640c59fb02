package service

import (
	"context"
	"fmt"
	"time"

	"geomonitoring/internal/models"
	"geomonitoring/internal/repository"
	"geomonitoring/internal/simulation"
	"geomonitoring/internal/threshold"

	"go.uber.org/zap"
)

type SeedOptions struct {
	Buildings          int
	SensorsPerBuilding int
	Days               int
	ReadingsPerDay     int
}

func DefaultSeedOptions() SeedOptions {
	return SeedOptions{
		Buildings:          2,
		SensorsPerBuilding: 5,
		Days:               30,
		ReadingsPerDay:     24,
	}
}

type SeedSummary struct {
	Message       string `json:"message"`
	AlreadySeeded bool   `json:"already_seeded"`
	Buildings     int    `json:"buildings"`
	Sensors       int    `json:"sensors"`
	Readings      int    `json:"readings"`
}

type SeedService interface {
	SeedSampleData(ctx context.Context, opts SeedOptions) (*SeedSummary, error)
}

type seedService struct {
	buildings    repository.BuildingRepository
	sensors      repository.SensorRepository
	readings     repository.ReadingRepository
	alertConfigs repository.AlertConfigRepository
	generator    *simulation.Generator
	bounds       threshold.Mode
	clock        func() time.Time
	logger       *zap.Logger
}

func NewSeedService(
	buildings repository.BuildingRepository,
	sensors repository.SensorRepository,
	readings repository.ReadingRepository,
	alertConfigs repository.AlertConfigRepository,
	generator *simulation.Generator,
	bounds threshold.Mode,
	logger *zap.Logger,
) SeedService {
	return &seedService{
		buildings:    buildings,
		sensors:      sensors,
		readings:     readings,
		alertConfigs: alertConfigs,
		generator:    generator,
		bounds:       bounds,
		clock:        time.Now,
		logger:       logger,
	}
}

var (
	sampleBuildingTypes = []string{"residential", "office", "industrial"}
	sampleSides         = []string{"north", "south", "west", "east"}
)

// SeedSampleData fills an empty store with buildings, alert configs, sensors
// and synthetic history. A store that already has buildings is left alone.
func (s *seedService) SeedSampleData(ctx context.Context, opts SeedOptions) (*SeedSummary, error) {
	def := DefaultSeedOptions()
	if opts.Buildings <= 0 {
		opts.Buildings = def.Buildings
	}
	if opts.SensorsPerBuilding <= 0 {
		opts.SensorsPerBuilding = def.SensorsPerBuilding
	}
	if opts.Days <= 0 {
		opts.Days = def.Days
	}
	if opts.ReadingsPerDay <= 0 {
		opts.ReadingsPerDay = def.ReadingsPerDay
	}

	existing, err := s.buildings.Count(ctx)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return &SeedSummary{Message: "sample data already present", AlreadySeeded: true}, nil
	}

	// Здания
	buildings := make([]models.Building, 0, opts.Buildings)
	for i := 1; i <= opts.Buildings; i++ {
		floors := 5 + s.generator.Intn(26)
		year := 1990 + s.generator.Intn(31)
		buildings = append(buildings, models.Building{
			Name:             fmt.Sprintf("Building %d", i),
			Address:          fmt.Sprintf("%d Sample Street", i),
			Floors:           &floors,
			ConstructionYear: &year,
			BuildingType:     sampleBuildingTypes[s.generator.Intn(len(sampleBuildingTypes))],
		})
	}
	if err := s.buildings.CreateBuildings(ctx, buildings); err != nil {
		return nil, fmt.Errorf("create buildings: %w", err)
	}

	// Пороги тревог
	configs := models.DefaultAlertConfigs()
	if err := s.alertConfigs.Upsert(ctx, configs); err != nil {
		return nil, fmt.Errorf("create alert configs: %w", err)
	}

	// Датчики
	types := models.AllSensorTypes()
	sensors := make([]models.Sensor, 0, opts.Buildings*opts.SensorsPerBuilding)
	for _, b := range buildings {
		for i := 1; i <= opts.SensorsPerBuilding; i++ {
			sensorType := types[s.generator.Intn(len(types))]
			floor := 1 + s.generator.Intn(*b.Floors)
			x := s.generator.Float64() * 100
			y := s.generator.Float64() * 100
			sensors = append(sensors, models.Sensor{
				Name:       fmt.Sprintf("%s %s %d", sensorType, b.Name, i),
				SensorType: sensorType,
				Location:   fmt.Sprintf("floor %d, %s side", floor, sampleSides[s.generator.Intn(len(sampleSides))]),
				BuildingID: b.ID,
				Floor:      &floor,
				PositionX:  &x,
				PositionY:  &y,
				Status:     models.SensorStatusActive,
			})
		}
	}
	if err := s.sensors.CreateSensors(ctx, sensors); err != nil {
		return nil, fmt.Errorf("create sensors: %w", err)
	}

	// История показаний
	evaluator := threshold.NewEvaluator(configs, s.bounds)
	end := s.clock().UTC()
	total := 0
	for _, sensor := range sensors {
		history := s.generator.History(sensor, end, opts.Days, opts.ReadingsPerDay)
		for i := range history {
			history[i].IsAlert = evaluator.Evaluate(sensor.SensorType, history[i].Value)
		}
		if err := s.readings.BatchCreate(ctx, history); err != nil {
			return nil, fmt.Errorf("create readings for sensor %d: %w", sensor.ID, err)
		}
		total += len(history)
	}

	s.logger.Info("sample data created",
		zap.Int("buildings", len(buildings)),
		zap.Int("sensors", len(sensors)),
		zap.Int("readings", total),
	)

	return &SeedSummary{
		Message:   "sample data created",
		Buildings: len(buildings),
		Sensors:   len(sensors),
		Readings:  total,
	}, nil
}
