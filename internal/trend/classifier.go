// Package trend labels the direction of a fitted curve by comparing the
// average level of its first and last segments.
//
// The label is a heuristic for dashboards, not a statistical significance
// test.
package trend

import (
	"fmt"
	"math"

	"geomonitoring/internal/fitting"
)

type Label string

const (
	Stable             Label = "stable"
	Increasing         Label = "increasing"
	StronglyIncreasing Label = "strongly_increasing"
	Decreasing         Label = "decreasing"
	StronglyDecreasing Label = "strongly_decreasing"
	Unknown            Label = "unknown"
)

const (
	DefaultSmall           = 2.0
	DefaultLarge           = 10.0
	DefaultSegmentFraction = 0.2
)

type Analysis struct {
	Trend         Label   `json:"trend"`
	Description   string  `json:"description"`
	ChangePercent float64 `json:"change_percent"`
	StartValue    float64 `json:"start_value"`
	EndValue      float64 `json:"end_value"`
}

// Classifier thresholds are percentages of the starting level.
type Classifier struct {
	Small           float64
	Large           float64
	SegmentFraction float64
}

func NewClassifier() Classifier {
	return Classifier{
		Small:           DefaultSmall,
		Large:           DefaultLarge,
		SegmentFraction: DefaultSegmentFraction,
	}
}

// ForNoise widens the thresholds for noisy sensors. noisePercent is the
// residual spread of the fit relative to its mean level.
func (c Classifier) ForNoise(noisePercent float64) Classifier {
	if math.IsNaN(noisePercent) || math.IsInf(noisePercent, 0) || noisePercent <= 0 {
		return c
	}
	out := c
	out.Small = math.Max(c.Small, 2*noisePercent)
	out.Large = math.Max(c.Large, 5*out.Small)
	return out
}

func (c Classifier) Classify(curve []fitting.Point) Analysis {
	n := len(curve)
	if n < 2 {
		return Analysis{
			Trend:       Unknown,
			Description: "Not enough data to determine a trend",
		}
	}

	fraction := c.SegmentFraction
	if fraction <= 0 || fraction > 0.5 {
		fraction = DefaultSegmentFraction
	}
	seg := int(math.Ceil(fraction * float64(n)))
	if seg < 1 {
		seg = 1
	}

	start := segmentMean(curve[:seg])
	end := segmentMean(curve[n-seg:])

	change := 0.0
	if start != 0 {
		change = (end - start) / math.Abs(start) * 100
	}

	label := c.label(change)
	return Analysis{
		Trend:         label,
		Description:   describe(label, change),
		ChangePercent: round(change, 2),
		StartValue:    start,
		EndValue:      end,
	}
}

func (c Classifier) label(change float64) Label {
	magnitude := math.Abs(change)
	switch {
	case magnitude < c.Small:
		return Stable
	case change > 0 && magnitude > c.Large:
		return StronglyIncreasing
	case change > 0:
		return Increasing
	case magnitude > c.Large:
		return StronglyDecreasing
	default:
		return Decreasing
	}
}

func describe(label Label, change float64) string {
	switch label {
	case Stable:
		return fmt.Sprintf("Values are stable (%+.1f%%)", change)
	case Increasing:
		return fmt.Sprintf("Values are increasing (%+.1f%%)", change)
	case StronglyIncreasing:
		return fmt.Sprintf("Values are increasing sharply (%+.1f%%)", change)
	case Decreasing:
		return fmt.Sprintf("Values are decreasing (%+.1f%%)", change)
	case StronglyDecreasing:
		return fmt.Sprintf("Values are decreasing sharply (%+.1f%%)", change)
	}
	return "Trend could not be determined"
}

func segmentMean(points []fitting.Point) float64 {
	sum := 0.0
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
