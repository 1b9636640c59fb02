package window

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"geomonitoring/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySource struct {
	readings []models.Reading
	err      error
	calls    int
}

func (m *memorySource) GetByRange(_ context.Context, sensorID uint, from, to time.Time) ([]models.Reading, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Reading
	for _, r := range m.readings {
		if r.SensorID == sensorID && !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *memorySource) GetLatest(_ context.Context, sensorID uint, limit int) ([]models.Reading, error) {
	var out []models.Reading
	for _, r := range m.readings {
		if r.SensorID == sensorID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var now = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

func reading(ago time.Duration, v float64) models.Reading {
	return models.Reading{SensorID: 1, Timestamp: now.Add(-ago), Value: v}
}

func TestResolve_RequestedWindowSuffices(t *testing.T) {
	src := &memorySource{}
	for i := 0; i < 10; i++ {
		src.readings = append(src.readings, reading(time.Duration(i)*5*time.Minute, float64(i)))
	}
	r := NewResolver(src, WithClock(fixedClock))

	w, err := r.Resolve(context.Background(), 1, 1)

	require.NoError(t, err)
	assert.Equal(t, StrategyRequested, w.Strategy)
	assert.Equal(t, 1, w.Multiplier)
	assert.Len(t, w.Training, 10)
	assert.Len(t, w.Display, 10)
	assert.Equal(t, now.Add(-time.Hour), w.Start)
	assert.Equal(t, now, w.End)
	assert.Equal(t, 1, src.calls)
}

func TestResolve_WidensSparseWindow(t *testing.T) {
	src := &memorySource{}
	// three readings within the last hour
	for i := 0; i < 3; i++ {
		src.readings = append(src.readings, reading(time.Duration(10+i*10)*time.Minute, float64(i)))
	}
	// fifty readings spread over the preceding week
	for i := 0; i < 50; i++ {
		src.readings = append(src.readings, reading(2*time.Hour+time.Duration(i)*3*time.Hour, float64(i)))
	}
	r := NewResolver(src, WithClock(fixedClock))

	w, err := r.Resolve(context.Background(), 1, 1)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(w.Training), 5)
	assert.Equal(t, StrategyWidened, w.Strategy)
	// x2 yields 4 readings, x6 is the first to reach 5
	assert.Equal(t, 6, w.Multiplier)
	require.Len(t, w.Display, 3)
	for _, d := range w.Display {
		assert.False(t, d.Timestamp.Before(w.Start))
		assert.False(t, d.Timestamp.After(w.End))
	}
	for i := 1; i < len(w.Training); i++ {
		assert.False(t, w.Training[i].Timestamp.Before(w.Training[i-1].Timestamp))
	}
}

func TestResolve_TailFallback(t *testing.T) {
	src := &memorySource{}
	// everything is older than 168 hours
	for i := 0; i < 60; i++ {
		src.readings = append(src.readings, reading(200*time.Hour+time.Duration(i)*time.Hour, float64(i)))
	}
	r := NewResolver(src, WithClock(fixedClock))

	w, err := r.Resolve(context.Background(), 1, 1)

	require.NoError(t, err)
	assert.Equal(t, StrategyTail, w.Strategy)
	assert.Equal(t, 0, w.Multiplier)
	assert.Len(t, w.Training, DefaultTailSize)
	assert.Empty(t, w.Display)
	for i := 1; i < len(w.Training); i++ {
		assert.True(t, w.Training[i].Timestamp.After(w.Training[i-1].Timestamp))
	}
	// the tail is the most recent readings
	assert.Equal(t, now.Add(-200*time.Hour), w.Training[len(w.Training)-1].Timestamp)
}

func TestResolve_NoReadings(t *testing.T) {
	r := NewResolver(&memorySource{}, WithClock(fixedClock))

	w, err := r.Resolve(context.Background(), 1, 24)

	require.NoError(t, err)
	assert.Equal(t, StrategyTail, w.Strategy)
	assert.Empty(t, w.Training)
	assert.Empty(t, w.Display)
}

func TestResolve_SourceError(t *testing.T) {
	r := NewResolver(&memorySource{err: errors.New("db down")}, WithClock(fixedClock))

	_, err := r.Resolve(context.Background(), 1, 24)

	assert.Error(t, err)
}

func TestResolve_ClampsHours(t *testing.T) {
	r := NewResolver(&memorySource{}, WithClock(fixedClock))

	w, err := r.Resolve(context.Background(), 1, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, w.RequestedHours)
}
