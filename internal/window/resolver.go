// Package window decides which stored readings back a time-windowed query.
// Sparse sensors get a wider training window so a curve can still be fitted,
// while the display set always stays inside the requested window.
package window

import (
	"context"
	"fmt"
	"sort"
	"time"

	"geomonitoring/internal/models"
)

const (
	DefaultMinPoints = 5
	DefaultTailSize  = 50
)

var DefaultMultipliers = []int{2, 6, 24, 168}

type Strategy string

const (
	StrategyRequested Strategy = "requested"
	StrategyWidened   Strategy = "widened"
	StrategyTail      Strategy = "tail"
)

// Source is the subset of the reading store the resolver needs.
type Source interface {
	GetByRange(ctx context.Context, sensorID uint, from, to time.Time) ([]models.Reading, error)
	GetLatest(ctx context.Context, sensorID uint, limit int) ([]models.Reading, error)
}

type Window struct {
	Start          time.Time
	End            time.Time
	RequestedHours int
	Training       []models.Reading
	Display        []models.Reading
	Strategy       Strategy
	// Multiplier is the factor applied to the requested hours for the
	// training set; 1 for the requested window, 0 for the tail fallback.
	Multiplier int
}

type Resolver struct {
	source      Source
	minPoints   int
	tailSize    int
	multipliers []int
	clock       func() time.Time
}

type Option func(*Resolver)

func WithClock(clock func() time.Time) Option {
	return func(r *Resolver) { r.clock = clock }
}

func WithMinPoints(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.minPoints = n
		}
	}
}

func WithTailSize(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.tailSize = n
		}
	}
}

func NewResolver(source Source, opts ...Option) *Resolver {
	r := &Resolver{
		source:      source,
		minPoints:   DefaultMinPoints,
		tailSize:    DefaultTailSize,
		multipliers: DefaultMultipliers,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the training and display readings for the last hours hours.
// Callers clamp hours; values below 1 are treated as 1.
func (r *Resolver) Resolve(ctx context.Context, sensorID uint, hours int) (*Window, error) {
	if hours < 1 {
		hours = 1
	}
	end := r.clock().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)

	display, err := r.source.GetByRange(ctx, sensorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load readings for sensor %d: %w", sensorID, err)
	}

	w := &Window{
		Start:          start,
		End:            end,
		RequestedHours: hours,
		Display:        display,
		Training:       display,
		Strategy:       StrategyRequested,
		Multiplier:     1,
	}
	if len(display) >= r.minPoints {
		return w, nil
	}

	for _, m := range r.multipliers {
		from := end.Add(-time.Duration(hours*m) * time.Hour)
		training, err := r.source.GetByRange(ctx, sensorID, from, end)
		if err != nil {
			return nil, fmt.Errorf("load widened readings for sensor %d: %w", sensorID, err)
		}
		if len(training) >= r.minPoints {
			w.Training = training
			w.Strategy = StrategyWidened
			w.Multiplier = m
			return w, nil
		}
	}

	tail, err := r.source.GetLatest(ctx, sensorID, r.tailSize)
	if err != nil {
		return nil, fmt.Errorf("load latest readings for sensor %d: %w", sensorID, err)
	}
	sort.SliceStable(tail, func(i, j int) bool {
		return tail[i].Timestamp.Before(tail[j].Timestamp)
	})
	w.Training = tail
	w.Strategy = StrategyTail
	w.Multiplier = 0
	return w, nil
}
