package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"geomonitoring/internal/models"
	"geomonitoring/internal/repository"
	"geomonitoring/internal/utils"

	"go.uber.org/zap"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrNoData            = errors.New("no data found for the specified range")
)

type ExportService interface {
	// ExportReadings writes the readings of the last hours hours to a file
	// in outputDir and returns its path.
	ExportReadings(ctx context.Context, sensorID uint, format string, hours int) (string, error)
}

type exportService struct {
	sensors      repository.SensorRepository
	readings     repository.ReadingRepository
	alertConfigs repository.AlertConfigRepository
	outputDir    string
	maxHours     int
	clock        func() time.Time
	logger       *zap.Logger
}

func NewExportService(
	sensors repository.SensorRepository,
	readings repository.ReadingRepository,
	alertConfigs repository.AlertConfigRepository,
	outputDir string,
	maxHours int,
	logger *zap.Logger,
) ExportService {
	if outputDir == "" {
		outputDir = "/data/exports"
	}
	if maxHours <= 0 {
		maxHours = MaxHours
	}

	// Создаем директорию если не существует
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		logger.Warn("failed to create export directory", zap.String("dir", outputDir), zap.Error(err))
	}

	return &exportService{
		sensors:      sensors,
		readings:     readings,
		alertConfigs: alertConfigs,
		outputDir:    outputDir,
		maxHours:     maxHours,
		clock:        time.Now,
		logger:       logger,
	}
}

func (s *exportService) ExportReadings(ctx context.Context, sensorID uint, format string, hours int) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	switch format {
	case "csv", "excel", "xlsx", "json":
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	sensor, err := s.sensors.GetSensor(ctx, sensorID)
	if err != nil {
		return "", fmt.Errorf("sensor %d: %w", sensorID, err)
	}

	hours = ClampHours(hours, DefaultHours, s.maxHours)
	to := s.clock().UTC()
	from := to.Add(-time.Duration(hours) * time.Hour)

	records, err := s.readings.GetByRange(ctx, sensorID, from, to)
	if err != nil {
		return "", fmt.Errorf("failed to get readings: %w", err)
	}
	if len(records) == 0 {
		return "", ErrNoData
	}

	base := fmt.Sprintf("sensor_%d_%s", sensorID, to.Format("20060102_150405"))

	switch format {
	case "csv":
		path := filepath.Join(s.outputDir, base+".csv")
		if err := saveReadingsCSV(path, records); err != nil {
			return "", err
		}
		s.logExport(path, len(records))
		return path, nil

	case "excel", "xlsx":
		cfg, err := s.alertConfigs.GetBySensorType(ctx, sensor.SensorType)
		if err != nil {
			return "", err
		}
		path := filepath.Join(s.outputDir, base+".xlsx")
		report := utils.ReadingsReport{
			Sensor:   *sensor,
			Config:   cfg,
			Readings: records,
			From:     from,
			To:       to,
		}
		if err := utils.CreateExcelFile(path, report); err != nil {
			return "", fmt.Errorf("failed to create Excel file: %w", err)
		}
		s.logExport(path, len(records))
		return path, nil

	default:
		path := filepath.Join(s.outputDir, base+".json")
		if err := utils.SaveAsJSON(path, records); err != nil {
			return "", err
		}
		s.logExport(path, len(records))
		return path, nil
	}
}

func (s *exportService) logExport(path string, n int) {
	s.logger.Info("readings exported", zap.String("file", filepath.Base(path)), zap.Int("records", n))
}

func saveReadingsCSV(path string, records []models.Reading) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"timestamp", "sensor_id", "value", "unit", "is_alert"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatUint(uint64(r.SensorID), 10),
			strconv.FormatFloat(r.Value, 'f', -1, 64),
			r.Unit,
			strconv.FormatBool(r.IsAlert),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
