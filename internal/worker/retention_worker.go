package worker

import (
	"context"
	"sync"
	"time"

	"geomonitoring/internal/repository"

	"go.uber.org/zap"
)

// RetentionWorker deletes readings older than the retention period.
type RetentionWorker struct {
	readings repository.ReadingRepository
	period   time.Duration
	interval time.Duration
	clock    func() time.Time
	logger   *zap.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

func NewRetentionWorker(readings repository.ReadingRepository, period, interval time.Duration, logger *zap.Logger) *RetentionWorker {
	return &RetentionWorker{
		readings: readings,
		period:   period,
		interval: interval,
		clock:    time.Now,
		logger:   logger,
	}
}

func (w *RetentionWorker) Name() string { return "retention" }

func (w *RetentionWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}

	w.running = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})
	w.logger.Info("retention worker started",
		zap.Duration("period", w.period),
		zap.Duration("interval", w.interval),
	)

	go loop(w.interval, true, w.stopChan, w.done, func() { w.Purge(context.Background()) })
}

func (w *RetentionWorker) Stop() {
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
	w.logger.Info("retention worker stopped")
}

// Purge runs one retention pass and returns the number of deleted readings.
func (w *RetentionWorker) Purge(ctx context.Context) int64 {
	if w.period <= 0 {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := w.clock().UTC().Add(-w.period)
	deleted, err := w.readings.DeleteOld(ctx, cutoff)
	if err != nil {
		w.logger.Error("retention pass failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0
	}
	if deleted > 0 {
		w.logger.Info("old readings deleted", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
	return deleted
}
