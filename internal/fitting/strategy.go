package fitting

import "errors"

const (
	MethodPolynomial      = "polynomial"
	MethodSmoothingSpline = "smoothing_spline"
	MethodLinear          = "linear"
)

var (
	ErrTooFewPoints = errors.New("too few distinct points")
	ErrNumerical    = errors.New("numerical failure")
)

// Model is a fitted curve over the elapsed-time axis.
type Model interface {
	Predict(x float64) float64
}

// Strategy fits one family of curves. Implementations must not retain xs or ys.
type Strategy interface {
	Name() string
	Fit(xs, ys []float64) (Model, error)
}

type scaledModel struct {
	inner Model
	x     scaler
	y     scaler
}

func (m scaledModel) Predict(x float64) float64 {
	return m.y.inverse(m.inner.Predict(m.x.forward(x)))
}

func predictAll(m Model, xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = m.Predict(x)
	}
	return out
}
