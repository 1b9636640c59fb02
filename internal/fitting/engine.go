// Package fitting fits smooth curves to irregular, noisy sensor readings and
// samples them across a requested time window.
//
// Strategies are tried in order (polynomial, smoothing spline, linear) until
// one explains the training data well enough. Linear interpolation is the
// floor and is accepted whenever at least two distinct timestamps exist.
package fitting

import (
	"fmt"
	"math"
	"sort"
	"time"

	"geomonitoring/internal/models"

	"go.uber.org/zap"
)

type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type Config struct {
	MinPoints         int
	MaxTrainingPoints int
	MinDegree         int
	MaxDegree         int
	DegreePenalty     float64
	AcceptR2          float64
	Folds             int
	// Below this many points degrees are scored in-sample.
	MinCrossValidationPoints int
	MaxKnots                 int
	DefaultNumPoints         int
	MinNumPoints             int
	MaxNumPoints             int
}

func DefaultConfig() Config {
	return Config{
		MinPoints:                3,
		MaxTrainingPoints:        2000,
		MinDegree:                2,
		MaxDegree:                5,
		DegreePenalty:            0.02,
		AcceptR2:                 0.3,
		Folds:                    5,
		MinCrossValidationPoints: 10,
		MaxKnots:                 DefaultMaxKnots,
		DefaultNumPoints:         100,
		MinNumPoints:             10,
		MaxNumPoints:             500,
	}
}

type Request struct {
	Training []models.Reading
	Display  []models.Reading
	Start    time.Time
	End      time.Time
	// Degree 0 selects the degree automatically.
	Degree    int
	NumPoints int
}

type Result struct {
	OriginalData  []Point  `json:"original_data"`
	Approximation []Point  `json:"approximation"`
	Quality       *Quality `json:"quality_metrics"`
	Error         *string  `json:"error"`
}

func (r *Result) Failed() bool {
	return r.Error != nil
}

type Engine struct {
	cfg    Config
	logger *zap.Logger
}

func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	def := DefaultConfig()
	if cfg.MinPoints < 3 {
		cfg.MinPoints = def.MinPoints
	}
	if cfg.MaxTrainingPoints <= 0 {
		cfg.MaxTrainingPoints = def.MaxTrainingPoints
	}
	if cfg.MinDegree < 1 {
		cfg.MinDegree = def.MinDegree
	}
	if cfg.MaxDegree < cfg.MinDegree {
		cfg.MaxDegree = def.MaxDegree
	}
	if cfg.Folds < 2 {
		cfg.Folds = def.Folds
	}
	if cfg.MinCrossValidationPoints <= cfg.Folds {
		cfg.MinCrossValidationPoints = def.MinCrossValidationPoints
	}
	if cfg.MaxKnots < 3 {
		cfg.MaxKnots = def.MaxKnots
	}
	if cfg.MinNumPoints < 2 {
		cfg.MinNumPoints = def.MinNumPoints
	}
	if cfg.MaxNumPoints < cfg.MinNumPoints {
		cfg.MaxNumPoints = def.MaxNumPoints
	}
	if cfg.DefaultNumPoints <= 0 {
		cfg.DefaultNumPoints = def.DefaultNumPoints
	}
	return &Engine{cfg: cfg, logger: logger}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// ClampNumPoints bounds a requested sample count; 0 means the default.
func (e *Engine) ClampNumPoints(n int) int {
	if n == 0 {
		n = e.cfg.DefaultNumPoints
	}
	return clampInt(n, e.cfg.MinNumPoints, e.cfg.MaxNumPoints)
}

// Fit never returns nil and never panics. Data insufficiency and exhausted
// strategies are reported through Result.Error with empty curves.
func (e *Engine) Fit(req Request) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("curve fitting panicked", zap.Any("panic", r))
			res = failure(fmt.Sprintf("curve fitting failed: %v", r))
		}
	}()

	training := sortedReadings(req.Training)
	if len(training) < e.cfg.MinPoints {
		return failure(fmt.Sprintf("insufficient data: at least %d readings required, got %d", e.cfg.MinPoints, len(training)))
	}

	t0 := training[0].Timestamp
	rawXs := make([]float64, len(training))
	rawYs := make([]float64, len(training))
	for i, r := range training {
		rawXs[i] = minutesSince(t0, r.Timestamp)
		rawYs[i] = r.Value
	}
	if !allFinite(rawYs) {
		return failure("invalid data: non-finite reading values")
	}

	xs, ys := bucketAverage(rawXs, rawYs, e.cfg.MaxTrainingPoints)
	if distinctCount(xs) < 2 {
		return failure("insufficient data: readings share a single timestamp")
	}

	xScale := scaler{offset: xs[0], scale: xs[len(xs)-1] - xs[0]}
	yScale := newScaler(ys)
	nx := xScale.forwardAll(xs)
	ny := yScale.forwardAll(ys)

	degree := e.SelectDegree(nx, ny, req.Degree)

	model, quality := e.runChain(e.chain(degree), nx, ny, xs, ys, xScale, yScale)
	if model == nil {
		msg := "curve fitting failed: no strategy produced a usable curve"
		res = failure(msg)
		res.Quality = quality
		return res
	}
	if quality.Method == MethodPolynomial {
		quality.Degree = degree
	}

	start, end := req.Start, req.End
	if start.IsZero() || end.IsZero() || !end.After(start) {
		start, end = t0, training[len(training)-1].Timestamp
	}
	numPoints := e.ClampNumPoints(req.NumPoints)

	lastX := rawXs[len(rawXs)-1]
	approximation := make([]Point, numPoints)
	step := end.Sub(start) / time.Duration(numPoints-1)
	for k := 0; k < numPoints; k++ {
		ts := start.Add(step * time.Duration(k))
		if k == numPoints-1 {
			ts = end
		}
		x := minutesSince(t0, ts)
		if x < 0 || x > lastX {
			quality.Extrapolated = true
		}
		approximation[k] = Point{Timestamp: ts, Value: model.Predict(x)}
	}

	display := sortedReadings(req.Display)
	original := make([]Point, len(display))
	for i, r := range display {
		original[i] = Point{Timestamp: r.Timestamp, Value: r.Value}
	}

	quality.TrainingPoints = len(training)
	quality.DisplayPoints = len(display)
	quality.ApproximationPoints = len(approximation)

	e.logger.Debug("curve fitted",
		zap.String("method", quality.Method),
		zap.Int("degree", quality.Degree),
		zap.Float64("r_squared", quality.RSquared),
		zap.Int("training_points", quality.TrainingPoints),
		zap.Bool("extrapolated", quality.Extrapolated),
	)

	return &Result{
		OriginalData:  original,
		Approximation: approximation,
		Quality:       quality,
	}
}

func (e *Engine) chain(degree int) []Strategy {
	return []Strategy{
		Polynomial{Degree: degree},
		SmoothingSpline{MaxKnots: e.cfg.MaxKnots},
		Linear{},
	}
}

// runChain tries each strategy on the normalized data and scores it against
// the training values in original units. The first strategy above the
// acceptance gate wins; the last one is accepted whenever it fits. If the
// chain runs out, the best fitted candidate is used.
func (e *Engine) runChain(chain []Strategy, nx, ny, xs, ys []float64, xScale, yScale scaler) (Model, *Quality) {
	quality := &Quality{}

	var (
		fallback        Model
		fallbackR2      = math.Inf(-1)
		fallbackMethod  string
		fallbackStd     float64
		fallbackAttempt = -1
	)

	for i, s := range chain {
		attempt := Attempt{Method: s.Name()}

		inner, err := s.Fit(nx, ny)
		if err != nil {
			attempt.Error = err.Error()
			quality.Attempts = append(quality.Attempts, attempt)
			e.logger.Debug("fitting strategy failed", zap.String("method", s.Name()), zap.Error(err))
			continue
		}

		model := scaledModel{inner: inner, x: xScale, y: yScale}
		estimates := predictAll(model, xs)
		if !allFinite(estimates) {
			attempt.Error = fmt.Sprintf("%v: non-finite predictions", ErrNumerical)
			quality.Attempts = append(quality.Attempts, attempt)
			continue
		}

		r2 := rSquared(estimates, ys)
		attempt.RSquared = &r2
		quality.Attempts = append(quality.Attempts, attempt)

		floor := i == len(chain)-1
		if r2 > e.cfg.AcceptR2 || floor {
			quality.Attempts[len(quality.Attempts)-1].Accepted = true
			quality.Method = s.Name()
			quality.RSquared = r2
			quality.ResidualStd = residualStd(estimates, ys)
			return model, quality
		}

		if r2 > fallbackR2 {
			fallback, fallbackR2, fallbackMethod = model, r2, s.Name()
			fallbackStd = residualStd(estimates, ys)
			fallbackAttempt = len(quality.Attempts) - 1
		}
	}

	if fallback == nil {
		return nil, quality
	}
	quality.Attempts[fallbackAttempt].Accepted = true
	quality.Method = fallbackMethod
	quality.RSquared = fallbackR2
	quality.ResidualStd = fallbackStd
	return fallback, quality
}

// SelectDegree picks the polynomial degree for the points. A positive hint is
// clamped to [MinDegree, min(hint, distinct-1, MaxDegree)]. Otherwise every
// candidate up to min(MaxDegree, distinct-2) is scored by cross-validated R²
// (in-sample for small inputs) minus DegreePenalty per degree above the
// minimum.
func (e *Engine) SelectDegree(xs, ys []float64, hint int) int {
	distinct := distinctCount(xs)
	lo := e.cfg.MinDegree

	if hint > 0 {
		d := minInt(hint, distinct-1, e.cfg.MaxDegree)
		if d < lo {
			d = lo
		}
		return d
	}

	hi := minInt(e.cfg.MaxDegree, distinct-2)
	if hi <= lo {
		return lo
	}

	best, bestScore := lo, math.Inf(-1)
	for d := lo; d <= hi; d++ {
		score, ok := e.scoreDegree(xs, ys, d)
		if !ok {
			continue
		}
		score -= e.cfg.DegreePenalty * float64(d-lo)
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

func (e *Engine) scoreDegree(xs, ys []float64, degree int) (float64, bool) {
	poly := Polynomial{Degree: degree}

	if len(xs) < e.cfg.MinCrossValidationPoints {
		m, err := poly.Fit(xs, ys)
		if err != nil {
			return 0, false
		}
		return rSquared(predictAll(m, xs), ys), true
	}

	// Interleaved folds keep every fold spread across the whole time range.
	folds := e.cfg.Folds
	estimates := make([]float64, len(xs))
	for f := 0; f < folds; f++ {
		var trainX, trainY, testX []float64
		var testIdx []int
		for i := range xs {
			if i%folds == f {
				testX = append(testX, xs[i])
				testIdx = append(testIdx, i)
				continue
			}
			trainX = append(trainX, xs[i])
			trainY = append(trainY, ys[i])
		}
		m, err := poly.Fit(trainX, trainY)
		if err != nil {
			return 0, false
		}
		for j, x := range testX {
			estimates[testIdx[j]] = m.Predict(x)
		}
	}
	if !allFinite(estimates) {
		return 0, false
	}
	return rSquared(estimates, ys), true
}

func failure(msg string) *Result {
	return &Result{
		OriginalData:  []Point{},
		Approximation: []Point{},
		Error:         &msg,
	}
}

func sortedReadings(in []models.Reading) []models.Reading {
	out := make([]models.Reading, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func minutesSince(t0, t time.Time) float64 {
	return t.Sub(t0).Minutes()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(first int, rest ...int) int {
	m := first
	for _, v := range rest {
		if v < m {
			m = v
		}
	}
	return m
}
