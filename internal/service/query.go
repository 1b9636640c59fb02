package service

import "time"

const (
	DefaultHours     = 24
	MaxHours         = 672
	MinDegree        = 2
	MaxDegree        = 5
	DefaultNumPoints = 100
	MinNumPoints     = 10
	MaxNumPoints     = 500
)

// ClampHours maps 0 to def and bounds the rest to [1, max].
func ClampHours(hours, def, max int) int {
	if hours == 0 {
		hours = def
	}
	if hours < 1 {
		return 1
	}
	if hours > max {
		return max
	}
	return hours
}

// ClampDegree keeps 0 (automatic) and bounds explicit degrees to [2, 5].
func ClampDegree(degree int) int {
	if degree == 0 {
		return 0
	}
	if degree < MinDegree {
		return MinDegree
	}
	if degree > MaxDegree {
		return MaxDegree
	}
	return degree
}

func ClampNumPoints(n int) int {
	if n == 0 {
		return DefaultNumPoints
	}
	if n < MinNumPoints {
		return MinNumPoints
	}
	if n > MaxNumPoints {
		return MaxNumPoints
	}
	return n
}

// HoursFromDuration rounds a duration up to whole hours.
func HoursFromDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	h := int(d / time.Hour)
	if d%time.Hour != 0 {
		h++
	}
	return h
}
