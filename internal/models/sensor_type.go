package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownSensorType = errors.New("unknown sensor type")

type SensorType string

const (
	SensorTypeTilt         SensorType = "tilt"
	SensorTypeStrain       SensorType = "strain"
	SensorTypeAcceleration SensorType = "acceleration"
	SensorTypeCrackWidth   SensorType = "crack_width"
	SensorTypeTemperature  SensorType = "temperature"
)

// DailyCycle is the shape of the periodic component over a day.
type DailyCycle int

const (
	CycleNone DailyCycle = iota
	// CycleDiurnal follows a sine over 24 hours.
	CycleDiurnal
	// CycleWorkHours adds the full amplitude between 08:00 and 18:59.
	CycleWorkHours
)

// SensorProfile describes the physical behaviour of a sensor type: its
// resting level, how noisy it is, how it drifts and in which unit it reports.
type SensorProfile struct {
	Base         float64
	Noise        float64
	TrendPerDay  float64
	Periodic     float64
	Cycle        DailyCycle
	Unit         string
	MinThreshold *float64
	MaxThreshold *float64
}

var SensorProfiles = map[SensorType]SensorProfile{
	SensorTypeTilt: {
		Base:         0,
		Noise:        0.5,
		TrendPerDay:  0.1,
		Unit:         "deg",
		MinThreshold: float64Ptr(-5),
		MaxThreshold: float64Ptr(5),
	},
	SensorTypeStrain: {
		Base:         0,
		Noise:        0.5,
		TrendPerDay:  0.67,
		Unit:         "um/m",
		MinThreshold: float64Ptr(-50),
		MaxThreshold: float64Ptr(50),
	},
	SensorTypeAcceleration: {
		Base:         5,
		Noise:        2,
		Periodic:     5,
		Cycle:        CycleWorkHours,
		Unit:         "mm/s2",
		MaxThreshold: float64Ptr(20),
	},
	SensorTypeCrackWidth: {
		Base:         0.5,
		Noise:        0.5,
		TrendPerDay:  0.067,
		Unit:         "mm",
		MaxThreshold: float64Ptr(5),
	},
	SensorTypeTemperature: {
		Base:         20,
		Noise:        0.5,
		Periodic:     5,
		Cycle:        CycleDiurnal,
		Unit:         "C",
		MinThreshold: float64Ptr(-30),
		MaxThreshold: float64Ptr(80),
	},
}

var sensorTypeAliases = map[string]SensorType{
	"tilt":          SensorTypeTilt,
	"inclinometer":  SensorTypeTilt,
	"strain":        SensorTypeStrain,
	"strain_gauge":  SensorTypeStrain,
	"tensometer":    SensorTypeStrain,
	"acceleration":  SensorTypeAcceleration,
	"accelerometer": SensorTypeAcceleration,
	"vibration":     SensorTypeAcceleration,
	"crack_width":   SensorTypeCrackWidth,
	"crack":         SensorTypeCrackWidth,
	"crackmeter":    SensorTypeCrackWidth,
	"temperature":   SensorTypeTemperature,
	"thermometer":   SensorTypeTemperature,
}

func ParseSensorType(s string) (SensorType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if t, ok := sensorTypeAliases[key]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSensorType, s)
}

func AllSensorTypes() []SensorType {
	return []SensorType{
		SensorTypeTilt,
		SensorTypeStrain,
		SensorTypeAcceleration,
		SensorTypeCrackWidth,
		SensorTypeTemperature,
	}
}

// Profile returns the profile of the type; unknown types get a zero profile
// with a generic unit.
func (t SensorType) Profile() SensorProfile {
	if p, ok := SensorProfiles[t]; ok {
		return p
	}
	return SensorProfile{Unit: "units"}
}

func (t SensorType) Valid() bool {
	_, ok := SensorProfiles[t]
	return ok
}

func float64Ptr(v float64) *float64 {
	return &v
}
