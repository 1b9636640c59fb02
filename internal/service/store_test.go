package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"geomonitoring/internal/models"
	"geomonitoring/internal/repository"
)

// memStore backs the repository fakes used across the service tests.
type memStore struct {
	mu        sync.Mutex
	buildings []models.Building
	sensors   []models.Sensor
	readings  []models.Reading
	configs   map[models.SensorType]models.AlertConfig
	nextID    uint
}

func newMemStore() *memStore {
	return &memStore{configs: make(map[models.SensorType]models.AlertConfig)}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

type memBuildings struct{ *memStore }
type memSensors struct{ *memStore }
type memReadings struct{ *memStore }
type memConfigs struct{ *memStore }

func (m memBuildings) List(context.Context) ([]models.Building, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Building(nil), m.buildings...), nil
}

func (m memBuildings) Get(_ context.Context, id uint) (*models.Building, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.buildings {
		if b.ID == id {
			for _, s := range m.sensors {
				if s.BuildingID == id {
					b.Sensors = append(b.Sensors, s)
				}
			}
			return &b, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m memBuildings) CreateBuildings(_ context.Context, buildings []models.Building) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range buildings {
		buildings[i].ID = m.id()
		m.buildings = append(m.buildings, buildings[i])
	}
	return nil
}

func (m memBuildings) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.buildings)), nil
}

func (m memSensors) GetSensor(_ context.Context, id uint) (*models.Sensor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sensors {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m memSensors) ListSensors(_ context.Context, buildingID *uint) ([]models.Sensor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Sensor
	for _, s := range m.sensors {
		if buildingID == nil || s.BuildingID == *buildingID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m memSensors) ListActiveSensors(ctx context.Context) ([]models.Sensor, error) {
	all, _ := m.ListSensors(ctx, nil)
	var out []models.Sensor
	for _, s := range all {
		if s.Status == models.SensorStatusActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m memSensors) CreateSensors(_ context.Context, sensors []models.Sensor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range sensors {
		sensors[i].ID = m.id()
		m.sensors = append(m.sensors, sensors[i])
	}
	return nil
}

func (m memSensors) UpdateStatus(_ context.Context, id uint, status models.SensorStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sensors {
		if m.sensors[i].ID == id {
			m.sensors[i].Status = status
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m memSensors) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sensors)), nil
}

func (m memReadings) Create(_ context.Context, r *models.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id()
	m.readings = append(m.readings, *r)
	return nil
}

func (m memReadings) BatchCreate(_ context.Context, readings []models.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range readings {
		readings[i].ID = m.id()
		m.readings = append(m.readings, readings[i])
	}
	return nil
}

func (m memReadings) GetByRange(_ context.Context, sensorID uint, from, to time.Time) ([]models.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reading
	for _, r := range m.readings {
		if r.SensorID == sensorID && !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m memReadings) GetLatest(_ context.Context, sensorID uint, limit int) ([]models.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reading
	for _, r := range m.readings {
		if r.SensorID == sensorID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memReadings) FindByNaturalKey(_ context.Context, sensorID uint, ts time.Time) (*models.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.readings {
		if r.SensorID == sensorID && r.Timestamp.Equal(ts) {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m memReadings) GetAlerts(_ context.Context, since time.Time) ([]models.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reading
	for _, r := range m.readings {
		if r.IsAlert && !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m memReadings) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.readings)), nil
}

func (m memReadings) CountBySensor(_ context.Context, sensorID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.readings {
		if r.SensorID == sensorID {
			n++
		}
	}
	return n, nil
}

func (m memReadings) DeleteOld(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.readings[:0]
	var n int64
	for _, r := range m.readings {
		if r.Timestamp.Before(olderThan) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.readings = kept
	return n, nil
}

func (m memConfigs) GetBySensorType(_ context.Context, t models.SensorType) (*models.AlertConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[t]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (m memConfigs) List(context.Context) ([]models.AlertConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AlertConfig
	for _, c := range m.configs {
		out = append(out, c)
	}
	return out, nil
}

func (m memConfigs) Upsert(_ context.Context, configs []models.AlertConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range configs {
		m.configs[c.SensorType] = c
	}
	return nil
}

var testNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func (m *memStore) addSensor(id, buildingID uint, t models.SensorType) models.Sensor {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := models.Sensor{ID: id, Name: "sensor", SensorType: t, Location: "floor 1", BuildingID: buildingID, Status: models.SensorStatusActive}
	m.sensors = append(m.sensors, s)
	if id > m.nextID {
		m.nextID = id
	}
	return s
}

func (m *memStore) addReading(sensorID uint, ago time.Duration, value float64, alert bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.readings = append(m.readings, models.Reading{
		ID:        m.nextID,
		SensorID:  sensorID,
		Timestamp: testNow.Add(-ago),
		Value:     value,
		Unit:      "mm",
		IsAlert:   alert,
	})
}
