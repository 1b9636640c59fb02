package fitting

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// Linear interpolates between de-duplicated points and extrapolates along
// the first and last segments.
type Linear struct{}

func (Linear) Name() string { return MethodLinear }

func (Linear) Fit(xs, ys []float64) (Model, error) {
	ux, uy := dedupe(xs, ys)
	n := len(ux)
	if n < 2 {
		return nil, fmt.Errorf("%w: linear interpolation needs 2 distinct points, got %d", ErrTooFewPoints, n)
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(ux, uy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNumerical, err)
	}

	return extendedModel{
		inner:  pl.Predict,
		x0:     ux[0],
		y0:     uy[0],
		slope0: (uy[1] - uy[0]) / (ux[1] - ux[0]),
		xn:     ux[n-1],
		yn:     uy[n-1],
		slopeN: (uy[n-1] - uy[n-2]) / (ux[n-1] - ux[n-2]),
	}, nil
}

// LinearModel is a straight line y = Intercept + Slope*x.
type LinearModel struct {
	Intercept float64
	Slope     float64
}

func (m LinearModel) Predict(x float64) float64 {
	return m.Intercept + m.Slope*x
}

// FitLinear fits a least squares line through the points.
func FitLinear(xs, ys []float64) (LinearModel, error) {
	if len(xs) != len(ys) {
		return LinearModel{}, fmt.Errorf("mismatched input lengths %d and %d", len(xs), len(ys))
	}
	if distinctCount(xs) < 2 {
		return LinearModel{}, fmt.Errorf("%w: regression needs 2 distinct x values", ErrTooFewPoints)
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if !allFinite([]float64{alpha, beta}) {
		return LinearModel{}, fmt.Errorf("%w: non-finite regression coefficients", ErrNumerical)
	}
	return LinearModel{Intercept: alpha, Slope: beta}, nil
}
