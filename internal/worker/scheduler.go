package worker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Worker is a periodic background job. Start must not block.
type Worker interface {
	Name() string
	Start()
	Stop()
}

type Scheduler struct {
	workers     []Worker
	logger      *zap.Logger
	stopTimeout time.Duration
	started     bool
	stopped     bool
	mu          sync.RWMutex
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		workers:     make([]Worker, 0),
		logger:      logger,
		stopTimeout: 10 * time.Second,
	}
}

func (s *Scheduler) AddWorker(worker Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker)
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.started {
		return
	}
	s.started = true

	s.logger.Info("starting scheduler", zap.Int("workers", len(s.workers)))
	for _, w := range s.workers {
		w.Start()
	}
}

// Stop stops every worker and waits for them up to the stop timeout.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	workers := append([]Worker(nil), s.workers...)
	s.mu.Unlock()

	s.logger.Info("stopping scheduler")

	// Останавливаем всех воркеров
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			w.Stop()
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	// Таймаут на остановку
	select {
	case <-done:
		s.logger.Info("scheduler stopped gracefully")
	case <-time.After(s.stopTimeout):
		s.logger.Warn("scheduler stop timeout", zap.Duration("timeout", s.stopTimeout))
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started && !s.stopped
}

// loop runs tick every interval until stop is closed, then closes done.
func loop(interval time.Duration, immediate bool, stop <-chan struct{}, done chan<- struct{}, tick func()) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if immediate {
		tick()
	}

	for {
		select {
		case <-ticker.C:
			tick()
		case <-stop:
			return
		}
	}
}
