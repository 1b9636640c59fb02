package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"geomonitoring/internal/models"

	"github.com/xuri/excelize/v2"
)

const readingsSheet = "Readings"

// ReadingsReport is everything needed to render one sensor's export.
type ReadingsReport struct {
	Sensor   models.Sensor
	Config   *models.AlertConfig
	Readings []models.Reading
	From     time.Time
	To       time.Time
}

// CreateExcelFile создает Excel файл с показаниями датчика
func CreateExcelFile(path string, report ReadingsReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", readingsSheet); err != nil {
		return err
	}

	headers := []string{"Timestamp (UTC)", "Value", "Unit", "Alert"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(readingsSheet, cell, header); err != nil {
			return err
		}
	}

	numberStyle := getNumberStyle(f, "0.000")
	for rowIdx, r := range report.Readings {
		rowNum := rowIdx + 2

		f.SetCellValue(readingsSheet, fmt.Sprintf("A%d", rowNum), r.Timestamp.UTC().Format("2006-01-02 15:04:05"))
		f.SetCellValue(readingsSheet, fmt.Sprintf("B%d", rowNum), r.Value)
		f.SetCellValue(readingsSheet, fmt.Sprintf("C%d", rowNum), r.Unit)
		f.SetCellValue(readingsSheet, fmt.Sprintf("D%d", rowNum), alertMark(r.IsAlert))
	}
	if n := len(report.Readings); n > 0 {
		f.SetCellStyle(readingsSheet, "B2", fmt.Sprintf("B%d", n+1), numberStyle)
	}

	for i := 1; i <= len(headers); i++ {
		colName, _ := excelize.ColumnNumberToName(i)
		f.SetColWidth(readingsSheet, colName, colName, 20)
	}

	// Подсветка значений за пределами порогов
	if err := addThresholdFormatting(f, report); err != nil {
		return err
	}

	if len(report.Readings) > 1 {
		if err := createChart(f, report); err != nil {
			return err
		}
	}

	if err := createInfoSheet(f, report); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.SaveAs(path)
}

func alertMark(isAlert bool) string {
	if isAlert {
		return "yes"
	}
	return ""
}

func addThresholdFormatting(f *excelize.File, report ReadingsReport) error {
	if report.Config == nil || len(report.Readings) == 0 {
		return nil
	}
	valueRange := fmt.Sprintf("B2:B%d", len(report.Readings)+1)

	var rules []excelize.ConditionalFormatOptions
	if report.Config.MaxThreshold != nil {
		rules = append(rules, excelize.ConditionalFormatOptions{
			Type:     "cell",
			Criteria: ">",
			Value:    fmt.Sprintf("%g", *report.Config.MaxThreshold),
			Format:   getConditionalFormatStyle(f, "#FFCCCC"),
		})
	}
	if report.Config.MinThreshold != nil {
		rules = append(rules, excelize.ConditionalFormatOptions{
			Type:     "cell",
			Criteria: "<",
			Value:    fmt.Sprintf("%g", *report.Config.MinThreshold),
			Format:   getConditionalFormatStyle(f, "#CCE5FF"),
		})
	}
	if len(rules) == 0 {
		return nil
	}
	return f.SetConditionalFormat(readingsSheet, valueRange, rules)
}

func getNumberStyle(f *excelize.File, format string) int {
	style, err := f.NewStyle(&excelize.Style{
		CustomNumFmt: &format,
	})
	if err != nil {
		return 0
	}
	return style
}

func createChart(f *excelize.File, report ReadingsReport) error {
	last := len(report.Readings) + 1
	chart := &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{
			{
				Name:       fmt.Sprintf("%s (%s)", report.Sensor.Name, report.Sensor.SensorType.Profile().Unit),
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", readingsSheet, last),
				Values:     fmt.Sprintf("%s!$B$2:$B$%d", readingsSheet, last),
			},
		},
		Title: []excelize.RichTextRun{
			{
				Text: fmt.Sprintf("%s over time", report.Sensor.Name),
			},
		},
		XAxis: excelize.ChartAxis{
			MajorGridLines: true,
		},
		YAxis: excelize.ChartAxis{
			MajorGridLines: true,
		},
		Dimension: excelize.ChartDimension{
			Width:  720,
			Height: 400,
		},
	}
	return f.AddChart(readingsSheet, "F2", chart)
}

func createInfoSheet(f *excelize.File, report ReadingsReport) error {
	const sheet = "Info"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	minV, maxV := valueRange(report.Readings)
	alerts := 0
	for _, r := range report.Readings {
		if r.IsAlert {
			alerts++
		}
	}

	// Порядок строк фиксирован
	rows := [][2]interface{}{
		{"Report Generated", time.Now().UTC().Format("2006-01-02 15:04:05")},
		{"Sensor", fmt.Sprintf("#%d %s", report.Sensor.ID, report.Sensor.Name)},
		{"Sensor Type", string(report.Sensor.SensorType)},
		{"Location", report.Sensor.Location},
		{"Period", fmt.Sprintf("%s to %s",
			report.From.UTC().Format("2006-01-02 15:04:05"),
			report.To.UTC().Format("2006-01-02 15:04:05"))},
		{"Total Records", len(report.Readings)},
		{"Alert Records", alerts},
		{"Value Range", fmt.Sprintf("%.3f - %.3f", minV, maxV)},
	}
	for i, row := range rows {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", i+1), row[0])
		f.SetCellValue(sheet, fmt.Sprintf("B%d", i+1), row[1])
	}
	f.SetColWidth(sheet, "A", "B", 30)
	return nil
}

func valueRange(readings []models.Reading) (float64, float64) {
	if len(readings) == 0 {
		return 0, 0
	}
	lo, hi := readings[0].Value, readings[0].Value
	for _, r := range readings[1:] {
		if r.Value < lo {
			lo = r.Value
		}
		if r.Value > hi {
			hi = r.Value
		}
	}
	return lo, hi
}

// SaveAsJSON сохраняет данные в JSON файл
func SaveAsJSON(path string, data interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// getConditionalFormatStyle создает стиль для условного форматирования
func getConditionalFormatStyle(f *excelize.File, color string) *int {
	style, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{color},
			Pattern: 1,
		},
	})
	if err != nil {
		return nil
	}
	return &style
}
