package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"geomonitoring/internal/models"
	"geomonitoring/internal/repository"
	"geomonitoring/internal/threshold"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSensors struct {
	repository.SensorRepository
	sensors map[uint]*models.Sensor
	err     error
}

func (f *fakeSensors) GetSensor(_ context.Context, id uint) (*models.Sensor, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sensors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

type fakeReadings struct {
	repository.ReadingRepository
	mu        sync.Mutex
	rows      []models.Reading
	createErr error
}

func (f *fakeReadings) Create(_ context.Context, r *models.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	r.ID = uint(len(f.rows) + 1)
	f.rows = append(f.rows, *r)
	return nil
}

func (f *fakeReadings) FindByNaturalKey(_ context.Context, sensorID uint, ts time.Time) (*models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].SensorID == sensorID && f.rows[i].Timestamp.Equal(ts) {
			r := f.rows[i]
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeAlertConfigs struct {
	repository.AlertConfigRepository
	configs map[models.SensorType]*models.AlertConfig
}

func (f *fakeAlertConfigs) GetBySensorType(_ context.Context, t models.SensorType) (*models.AlertConfig, error) {
	return f.configs[t], nil
}

type recordingNotifier struct {
	calls []models.Reading
	err   error
}

func (n *recordingNotifier) NotifyAlert(_ context.Context, _ *models.Sensor, r *models.Reading) error {
	n.calls = append(n.calls, *r)
	return n.err
}

func ptr(v float64) *float64 { return &v }

func newTestPipeline(opts Options) (*Pipeline, *fakeReadings) {
	sensors := &fakeSensors{sensors: map[uint]*models.Sensor{
		1: {ID: 1, Name: "crack-1", SensorType: models.SensorTypeCrackWidth, Status: models.SensorStatusActive},
		2: {ID: 2, Name: "tilt-1", SensorType: models.SensorTypeTilt, Status: models.SensorStatusActive},
	}}
	readings := &fakeReadings{}
	configs := &fakeAlertConfigs{configs: map[models.SensorType]*models.AlertConfig{
		models.SensorTypeCrackWidth: {SensorType: models.SensorTypeCrackWidth, MaxThreshold: ptr(5), Unit: "mm"},
	}}
	return NewPipeline(sensors, readings, configs, zap.NewNop(), opts), readings
}

func TestIngest_AlertFlag(t *testing.T) {
	p, readings := newTestPipeline(Options{})
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	normal, err := p.Ingest(ctx, 1, ts, 4.9, "mm")
	require.NoError(t, err)
	assert.False(t, normal.IsAlert)

	high, err := p.Ingest(ctx, 1, ts.Add(time.Minute), 6.5, "mm")
	require.NoError(t, err)
	assert.True(t, high.IsAlert)

	assert.Len(t, readings.rows, 2)
}

func TestIngest_BoundValueByMode(t *testing.T) {
	ctx := context.Background()
	ts := time.Now()

	strict, _ := newTestPipeline(Options{Bounds: threshold.Strict})
	r, err := strict.Ingest(ctx, 1, ts, 5, "")
	require.NoError(t, err)
	assert.False(t, r.IsAlert)

	inclusive, _ := newTestPipeline(Options{Bounds: threshold.Inclusive})
	r, err = inclusive.Ingest(ctx, 1, ts, 5, "")
	require.NoError(t, err)
	assert.True(t, r.IsAlert)
}

func TestIngest_UnknownSensor(t *testing.T) {
	p, readings := newTestPipeline(Options{})

	_, err := p.Ingest(context.Background(), 404, time.Now(), 1, "mm")

	assert.ErrorIs(t, err, ErrUnknownSensor)
	assert.Empty(t, readings.rows)
}

func TestIngest_UnitFallback(t *testing.T) {
	p, _ := newTestPipeline(Options{})
	ctx := context.Background()

	fromConfig, err := p.Ingest(ctx, 1, time.Now(), 1, "")
	require.NoError(t, err)
	assert.Equal(t, "mm", fromConfig.Unit)

	// no alert config for tilt, so the profile unit applies
	fromProfile, err := p.Ingest(ctx, 2, time.Now(), 1, "  ")
	require.NoError(t, err)
	assert.Equal(t, "deg", fromProfile.Unit)
	assert.False(t, fromProfile.IsAlert)

	explicit, err := p.Ingest(ctx, 2, time.Now(), 1, "mrad")
	require.NoError(t, err)
	assert.Equal(t, "mrad", explicit.Unit)
}

func TestIngest_ZeroTimestampUsesClock(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	p, _ := newTestPipeline(Options{Clock: func() time.Time { return now }})

	r, err := p.Ingest(context.Background(), 1, time.Time{}, 1, "mm")

	require.NoError(t, err)
	assert.True(t, now.Equal(r.Timestamp))
}

func TestIngest_DuplicateProducesTwoRows(t *testing.T) {
	p, readings := newTestPipeline(Options{Dedup: DedupNone})
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := p.Ingest(ctx, 1, ts, 2.5, "mm")
	require.NoError(t, err)
	_, err = p.Ingest(ctx, 1, ts, 2.5, "mm")
	require.NoError(t, err)

	require.Len(t, readings.rows, 2)
	assert.Equal(t, readings.rows[0].Timestamp, readings.rows[1].Timestamp)
	assert.NotEqual(t, readings.rows[0].ID, readings.rows[1].ID)
}

func TestIngest_NaturalKeyDedup(t *testing.T) {
	p, readings := newTestPipeline(Options{Dedup: DedupNaturalKey})
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first, err := p.Ingest(ctx, 1, ts, 2.5, "mm")
	require.NoError(t, err)

	again, err := p.Ingest(ctx, 1, ts, 2.5, "mm")
	assert.ErrorIs(t, err, ErrDuplicateReading)
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, readings.rows, 1)
}

func TestIngest_StorageFailure(t *testing.T) {
	p, readings := newTestPipeline(Options{})
	readings.createErr = errors.New("connection refused")

	_, err := p.Ingest(context.Background(), 1, time.Now(), 1, "mm")

	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIngest_NotifierErrorDoesNotFailIngest(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("webhook down")}
	p, readings := newTestPipeline(Options{Notifier: notifier})
	ctx := context.Background()

	_, err := p.Ingest(ctx, 1, time.Now(), 1, "mm")
	require.NoError(t, err)
	assert.Empty(t, notifier.calls)

	r, err := p.Ingest(ctx, 1, time.Now(), 9, "mm")
	require.NoError(t, err)
	assert.True(t, r.IsAlert)
	assert.Len(t, notifier.calls, 1)
	assert.Len(t, readings.rows, 2)
}

func TestParseDedupPolicy(t *testing.T) {
	p, err := ParseDedupPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DedupNone, p)

	p, err = ParseDedupPolicy("NATURAL_KEY")
	require.NoError(t, err)
	assert.Equal(t, DedupNaturalKey, p)

	_, err = ParseDedupPolicy("fuzzy")
	assert.Error(t, err)
}
