// Package simulation produces plausible synthetic sensor values from the
// sensor-type profiles. It backs the sample-data seeding and the MQTT
// simulator worker.
package simulation

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"geomonitoring/internal/models"
)

const DefaultAnomalyRate = 0.05

// Generator is safe for concurrent use.
type Generator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	anomalyRate float64
}

func NewGenerator(seed int64, anomalyRate float64) *Generator {
	if anomalyRate < 0 || anomalyRate > 1 {
		anomalyRate = DefaultAnomalyRate
	}
	return &Generator{
		rng:         rand.New(rand.NewSource(seed)),
		anomalyRate: anomalyRate,
	}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *Generator) chance(p float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64() < p
}

func (g *Generator) Intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(n)
}

func (g *Generator) Float64() float64 {
	return g.uniform(0, 1)
}

// Periodic returns the daily component of a profile at the given time.
func Periodic(p models.SensorProfile, at time.Time) float64 {
	hour := float64(at.Hour()) + float64(at.Minute())/60
	switch p.Cycle {
	case models.CycleDiurnal:
		return p.Periodic * math.Sin(hour*math.Pi/12)
	case models.CycleWorkHours:
		if at.Hour() >= 8 && at.Hour() <= 18 {
			return p.Periodic
		}
	}
	return 0
}

// Value is base + drift + daily cycle + uniform noise. elapsedDays drives
// the slow drift of the profile.
func (g *Generator) Value(sensorType models.SensorType, at time.Time, elapsedDays float64) float64 {
	p := sensorType.Profile()
	noise := g.uniform(-1, 1) * p.Noise
	return p.Base + p.TrendPerDay*elapsedDays + Periodic(p, at) + noise
}

// LiveValue is Value without drift and with occasional out-of-bounds
// anomalies when both bounds of cfg are set.
func (g *Generator) LiveValue(sensorType models.SensorType, at time.Time, cfg *models.AlertConfig) float64 {
	v := g.Value(sensorType, at, 0)
	if cfg == nil || g.anomalyRate == 0 || !g.chance(g.anomalyRate) {
		return v
	}
	switch {
	case cfg.MinThreshold != nil && cfg.MaxThreshold != nil:
		if g.chance(0.5) {
			return *cfg.MinThreshold - g.uniform(1, 5)
		}
		return *cfg.MaxThreshold + g.uniform(1, 5)
	case cfg.MaxThreshold != nil:
		return *cfg.MaxThreshold + g.uniform(1, 5)
	case cfg.MinThreshold != nil:
		return *cfg.MinThreshold - g.uniform(1, 5)
	}
	return v
}

// History generates days*perDay evenly spaced readings ending at end.
func (g *Generator) History(sensor models.Sensor, end time.Time, days, perDay int) []models.Reading {
	if days <= 0 || perDay <= 0 {
		return nil
	}
	total := days * perDay
	start := end.Add(-time.Duration(days) * 24 * time.Hour)
	step := end.Sub(start) / time.Duration(total)
	unit := sensor.SensorType.Profile().Unit

	readings := make([]models.Reading, 0, total)
	for i := 0; i < total; i++ {
		ts := start.Add(step * time.Duration(i)).UTC()
		elapsed := ts.Sub(start).Hours() / 24
		readings = append(readings, models.Reading{
			SensorID:  sensor.ID,
			Timestamp: ts,
			Value:     g.Value(sensor.SensorType, ts, elapsed),
			Unit:      unit,
		})
	}
	return readings
}
