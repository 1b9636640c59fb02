package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"geomonitoring/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleReport() ReadingsReport {
	max := 5.0
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	report := ReadingsReport{
		Sensor: models.Sensor{ID: 8, Name: "crack-8", SensorType: models.SensorTypeCrackWidth, Location: "basement"},
		Config: &models.AlertConfig{SensorType: models.SensorTypeCrackWidth, MaxThreshold: &max, Unit: "mm"},
		From:   start,
		To:     start.Add(3 * time.Hour),
	}
	for i, v := range []float64{1.2, 1.4, 6.3} {
		report.Readings = append(report.Readings, models.Reading{
			SensorID:  8,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Value:     v,
			Unit:      "mm",
			IsAlert:   v > max,
		})
	}
	return report
}

func TestCreateExcelFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.xlsx")

	require.NoError(t, CreateExcelFile(path, sampleReport()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Readings", "Info"}, f.GetSheetList())

	header, err := f.GetCellValue("Readings", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Timestamp (UTC)", header)

	alert, err := f.GetCellValue("Readings", "D4")
	require.NoError(t, err)
	assert.Equal(t, "yes", alert)

	total, err := f.GetCellValue("Info", "B6")
	require.NoError(t, err)
	assert.Equal(t, "3", total)
}

func TestCreateExcelFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	report := sampleReport()
	report.Readings = nil

	require.NoError(t, CreateExcelFile(path, report))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestSaveAsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, SaveAsJSON(path, map[string]int{"records": 3}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"records": 3}`, string(data))
}
