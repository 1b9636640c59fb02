// Package threshold decides whether a sensor value violates the alert bounds
// configured for its sensor type.
package threshold

import (
	"fmt"
	"strings"

	"geomonitoring/internal/models"
)

// Mode selects how a value lying exactly on a bound is treated.
type Mode int

const (
	// Strict raises an alert only for values beyond a bound.
	Strict Mode = iota
	// Inclusive also raises an alert for values equal to a bound.
	Inclusive
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "inclusive":
		return Inclusive, nil
	}
	return Strict, fmt.Errorf("unknown threshold mode %q", s)
}

func (m Mode) String() string {
	if m == Inclusive {
		return "inclusive"
	}
	return "strict"
}

// Exceeds reports whether value violates cfg in Strict mode. A nil config
// never raises an alert.
func Exceeds(cfg *models.AlertConfig, value float64) bool {
	return Strict.Exceeds(cfg, value)
}

func (m Mode) Exceeds(cfg *models.AlertConfig, value float64) bool {
	if cfg == nil {
		return false
	}
	if cfg.MinThreshold != nil {
		if value < *cfg.MinThreshold || (m == Inclusive && value == *cfg.MinThreshold) {
			return true
		}
	}
	if cfg.MaxThreshold != nil {
		if value > *cfg.MaxThreshold || (m == Inclusive && value == *cfg.MaxThreshold) {
			return true
		}
	}
	return false
}

// Evaluator is an immutable lookup table of alert configs keyed by sensor type.
type Evaluator struct {
	mode    Mode
	configs map[models.SensorType]models.AlertConfig
}

func NewEvaluator(configs []models.AlertConfig, mode Mode) *Evaluator {
	table := make(map[models.SensorType]models.AlertConfig, len(configs))
	for _, c := range configs {
		table[c.SensorType] = c
	}
	return &Evaluator{mode: mode, configs: table}
}

func (e *Evaluator) Evaluate(sensorType models.SensorType, value float64) bool {
	cfg, ok := e.configs[sensorType]
	if !ok {
		return false
	}
	return e.mode.Exceeds(&cfg, value)
}

func (e *Evaluator) Config(sensorType models.SensorType) (*models.AlertConfig, bool) {
	cfg, ok := e.configs[sensorType]
	if !ok {
		return nil, false
	}
	return &cfg, true
}
