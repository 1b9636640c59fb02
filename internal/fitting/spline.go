package fitting

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
)

const DefaultMaxKnots = 200

// DefaultLambdas is the smoothing-parameter grid searched by generalized
// cross validation, from near-interpolation to near-linear.
var DefaultLambdas = []float64{1e-9, 1e-8, 1e-7, 1e-6, 1e-5, 1e-4, 1e-3, 1e-2, 1e-1, 1}

// SmoothingSpline is a penalized natural cubic spline in Reinsch form. Points
// sharing an x are merged into their mean before fitting.
type SmoothingSpline struct {
	MaxKnots int
	Lambdas  []float64
}

func (s SmoothingSpline) Name() string { return MethodSmoothingSpline }

func (s SmoothingSpline) Fit(xs, ys []float64) (Model, error) {
	kx, ky := dedupe(xs, ys)
	maxKnots := s.MaxKnots
	if maxKnots <= 0 {
		maxKnots = DefaultMaxKnots
	}
	kx, ky = bucketAverage(kx, ky, maxKnots)

	n := len(kx)
	if n < 3 {
		return nil, fmt.Errorf("%w: spline needs 3 knots, got %d", ErrTooFewPoints, n)
	}

	h := make([]float64, n-1)
	for i := range h {
		h[i] = kx[i+1] - kx[i]
		if h[i] <= 0 {
			return nil, fmt.Errorf("%w: knots not strictly increasing", ErrNumerical)
		}
	}

	m := n - 2
	q := mat.NewDense(n, m, nil)
	r := mat.NewSymDense(m, nil)
	for j := 0; j < m; j++ {
		q.Set(j, j, 1/h[j])
		q.Set(j+1, j, -1/h[j]-1/h[j+1])
		q.Set(j+2, j, 1/h[j+1])

		r.SetSym(j, j, (h[j]+h[j+1])/3)
		if j+1 < m {
			r.SetSym(j, j+1, h[j+1]/6)
		}
	}

	var qtq mat.SymDense
	qtq.SymOuterK(1, q.T())

	y := mat.NewVecDense(n, append([]float64(nil), ky...))
	var qty mat.VecDense
	qty.MulVec(q.T(), y)

	lambdas := s.Lambdas
	if len(lambdas) == 0 {
		lambdas = DefaultLambdas
	}

	var (
		best      *splineSolution
		bestScore = math.Inf(1)
	)
	for _, lambda := range lambdas {
		sol, ok := solveReinsch(r, &qtq, q, y, &qty, lambda)
		if !ok {
			continue
		}
		if sol.gcv < bestScore {
			bestScore = sol.gcv
			best = sol
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no smoothing parameter produced a stable spline", ErrNumerical)
	}

	var nc interp.NaturalCubic
	if err := nc.Fit(kx, best.g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNumerical, err)
	}

	// End slopes of the natural spline, whose second derivative is zero at
	// both boundary knots.
	last := n - 1
	slope0 := (best.g[1]-best.g[0])/h[0] - h[0]*best.gamma[0]/6
	slopeN := (best.g[last]-best.g[last-1])/h[last-1] + h[last-1]*best.gamma[m-1]/6

	return extendedModel{
		inner:  nc.Predict,
		x0:     kx[0],
		y0:     best.g[0],
		slope0: slope0,
		xn:     kx[last],
		yn:     best.g[last],
		slopeN: slopeN,
	}, nil
}

type splineSolution struct {
	g     []float64
	gamma []float64
	gcv   float64
}

// solveReinsch solves (R + lambda*QᵀQ)γ = Qᵀy, g = y - lambda*Qγ and scores
// the result by GCV = n*RSS / (lambda*tr(M⁻¹QᵀQ))².
func solveReinsch(r, qtq *mat.SymDense, q *mat.Dense, y, qty *mat.VecDense, lambda float64) (*splineSolution, bool) {
	m := r.SymmetricDim()
	n := y.Len()

	var scaled, system mat.SymDense
	scaled.ScaleSym(lambda, qtq)
	system.AddSym(r, &scaled)

	var chol mat.Cholesky
	if ok := chol.Factorize(&system); !ok {
		return nil, false
	}

	var gamma mat.VecDense
	if err := chol.SolveVecTo(&gamma, qty); err != nil {
		return nil, false
	}

	var qg mat.VecDense
	qg.MulVec(q, &gamma)

	g := make([]float64, n)
	rss := 0.0
	for i := 0; i < n; i++ {
		g[i] = y.AtVec(i) - lambda*qg.AtVec(i)
		d := y.AtVec(i) - g[i]
		rss += d * d
	}

	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, false
	}
	trace := 0.0
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			trace += inv.At(i, j) * qtq.At(i, j)
		}
	}
	df := lambda * trace
	if df <= 0 || math.IsNaN(df) {
		return nil, false
	}

	gammas := make([]float64, m)
	for i := range gammas {
		gammas[i] = gamma.AtVec(i)
	}
	if !allFinite(g) || !allFinite(gammas) {
		return nil, false
	}
	return &splineSolution{
		g:     g,
		gamma: gammas,
		gcv:   float64(n) * rss / (df * df),
	}, true
}
