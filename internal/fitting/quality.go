package fitting

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Quality describes how the returned curve was produced and how well it
// explains the training readings.
type Quality struct {
	Method              string    `json:"method"`
	Degree              int       `json:"degree,omitempty"`
	RSquared            float64   `json:"r_squared"`
	TrainingPoints      int       `json:"training_points"`
	DisplayPoints       int       `json:"display_points"`
	ApproximationPoints int       `json:"approximation_points"`
	ResidualStd         float64   `json:"residual_std"`
	Extrapolated        bool      `json:"extrapolated"`
	Attempts            []Attempt `json:"attempts,omitempty"`
}

// Attempt records one strategy tried by the engine.
type Attempt struct {
	Method   string   `json:"method"`
	RSquared *float64 `json:"r_squared,omitempty"`
	Accepted bool     `json:"accepted"`
	Error    string   `json:"error,omitempty"`
}

// rSquared is the coefficient of determination of estimates against values.
// A constant series scores 1 when reproduced exactly and 0 otherwise.
func rSquared(estimates, values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) < 2 || stat.Variance(values, nil) == 0 {
		if residualSumSquares(estimates, values) < 1e-12 {
			return 1
		}
		return 0
	}
	return stat.RSquaredFrom(estimates, values, nil)
}

func residualSumSquares(estimates, values []float64) float64 {
	sum := 0.0
	for i, v := range values {
		d := v - estimates[i]
		sum += d * d
	}
	return sum
}

func residualStd(estimates, values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return math.Sqrt(residualSumSquares(estimates, values) / float64(len(values)))
}
