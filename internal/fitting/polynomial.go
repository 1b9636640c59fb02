package fitting

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Polynomial is an ordinary least squares polynomial of fixed degree.
type Polynomial struct {
	Degree int
}

func (p Polynomial) Name() string { return MethodPolynomial }

func (p Polynomial) Fit(xs, ys []float64) (Model, error) {
	if p.Degree < 1 {
		return nil, fmt.Errorf("invalid polynomial degree %d", p.Degree)
	}
	if distinctCount(xs) <= p.Degree {
		return nil, fmt.Errorf("%w: degree %d needs %d distinct points", ErrTooFewPoints, p.Degree, p.Degree+1)
	}

	n, cols := len(xs), p.Degree+1
	a := mat.NewDense(n, cols, nil)
	for i, x := range xs {
		v := 1.0
		for j := 0; j < cols; j++ {
			a.Set(i, j, v)
			v *= x
		}
	}
	b := mat.NewVecDense(n, append([]float64(nil), ys...))

	// QR for the overdetermined case, LU when square.
	var c mat.VecDense
	if err := c.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNumerical, err)
	}

	coeffs := make([]float64, cols)
	for j := range coeffs {
		coeffs[j] = c.AtVec(j)
	}
	if !allFinite(coeffs) {
		return nil, fmt.Errorf("%w: non-finite coefficients", ErrNumerical)
	}
	return polynomialModel{coeffs: coeffs}, nil
}

type polynomialModel struct {
	coeffs []float64
}

func (m polynomialModel) Predict(x float64) float64 {
	y := 0.0
	for j := len(m.coeffs) - 1; j >= 0; j-- {
		y = y*x + m.coeffs[j]
	}
	return y
}
