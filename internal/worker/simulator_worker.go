package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"geomonitoring/internal/repository"
	"geomonitoring/internal/simulation"
	"geomonitoring/internal/transport"

	"go.uber.org/zap"
)

type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// SimulatorWorker publishes one synthetic reading per active sensor on every
// tick, the way field devices would.
type SimulatorWorker struct {
	sensors      repository.SensorRepository
	alertConfigs repository.AlertConfigRepository
	publisher    Publisher
	generator    *simulation.Generator
	interval     time.Duration
	qos          byte
	clock        func() time.Time
	logger       *zap.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

func NewSimulatorWorker(
	sensors repository.SensorRepository,
	alertConfigs repository.AlertConfigRepository,
	publisher Publisher,
	generator *simulation.Generator,
	interval time.Duration,
	qos byte,
	logger *zap.Logger,
) *SimulatorWorker {
	return &SimulatorWorker{
		sensors:      sensors,
		alertConfigs: alertConfigs,
		publisher:    publisher,
		generator:    generator,
		interval:     interval,
		qos:          qos,
		clock:        time.Now,
		logger:       logger,
	}
}

func (w *SimulatorWorker) Name() string { return "simulator" }

func (w *SimulatorWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}

	w.running = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})
	w.logger.Info("simulator worker started", zap.Duration("interval", w.interval))

	go loop(w.interval, false, w.stopChan, w.done, func() { w.PublishOnce(context.Background()) })
}

func (w *SimulatorWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopChan)
	w.running = false
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("simulator worker stopped")
}

// PublishOnce publishes a value for every active sensor and returns how many
// messages went out.
func (w *SimulatorWorker) PublishOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sensors, err := w.sensors.ListActiveSensors(ctx)
	if err != nil {
		w.logger.Error("simulator: failed to list sensors", zap.Error(err))
		return 0
	}

	now := w.clock().UTC()
	published := 0
	for _, s := range sensors {
		cfg, err := w.alertConfigs.GetBySensorType(ctx, s.SensorType)
		if err != nil {
			w.logger.Warn("simulator: alert config unavailable", zap.Uint("sensor_id", s.ID), zap.Error(err))
		}

		payload, err := json.Marshal(transport.Payload{
			Value:     w.generator.LiveValue(s.SensorType, now, cfg),
			Unit:      s.SensorType.Profile().Unit,
			Timestamp: now.Format(time.RFC3339Nano),
		})
		if err != nil {
			continue
		}

		topic := transport.DataTopic(s.SensorType, s.ID)
		if err := w.publisher.Publish(topic, w.qos, false, payload); err != nil {
			w.logger.Warn("simulator: publish failed", zap.String("topic", topic), zap.Error(err))
			continue
		}
		published++
	}

	w.logger.Debug("simulator tick", zap.Int("published", published), zap.Int("sensors", len(sensors)))
	return published
}
