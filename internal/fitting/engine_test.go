package fitting

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"geomonitoring/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func readingsAt(minutes []float64, values []float64) []models.Reading {
	out := make([]models.Reading, len(minutes))
	for i, m := range minutes {
		out[i] = models.Reading{
			SensorID:  1,
			Timestamp: t0.Add(time.Duration(m * float64(time.Minute))),
			Value:     values[i],
		}
	}
	return out
}

func newTestEngine() *Engine {
	return NewEngine(DefaultConfig(), zap.NewNop())
}

func TestFit_CollinearRoundTrip(t *testing.T) {
	training := readingsAt([]float64{0, 10, 20}, []float64{1, 2, 3})

	res := newTestEngine().Fit(Request{
		Training:  training,
		Display:   training,
		Start:     t0,
		End:       t0.Add(20 * time.Minute),
		Degree:    2,
		NumPoints: 21,
	})

	require.Nil(t, res.Error)
	require.NotNil(t, res.Quality)
	assert.Equal(t, MethodPolynomial, res.Quality.Method)
	assert.Equal(t, 2, res.Quality.Degree)
	assert.InDelta(t, 1.0, res.Quality.RSquared, 1e-9)
	assert.False(t, res.Quality.Extrapolated)
	require.Len(t, res.Approximation, 21)

	// the grid has one-minute steps, so samples 0, 10 and 20 hit the inputs
	for i, idx := range []int{0, 10, 20} {
		assert.True(t, training[i].Timestamp.Equal(res.Approximation[idx].Timestamp))
		assert.InDelta(t, training[i].Value, res.Approximation[idx].Value, 1e-9)
	}
	assert.Len(t, res.OriginalData, 3)
}

func TestFit_TwoPointsIsInsufficient(t *testing.T) {
	training := readingsAt([]float64{0, 10}, []float64{1, 2})

	res := newTestEngine().Fit(Request{Training: training, Display: training, NumPoints: 50})

	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "insufficient data")
	assert.NotNil(t, res.Approximation)
	assert.Empty(t, res.Approximation)
	assert.Empty(t, res.OriginalData)
}

func TestFit_SingleTimestampIsInsufficient(t *testing.T) {
	training := readingsAt([]float64{5, 5, 5}, []float64{1, 2, 3})

	res := newTestEngine().Fit(Request{Training: training})

	require.NotNil(t, res.Error)
	assert.Empty(t, res.Approximation)
}

func TestFit_DuplicateTimestampsFallBack(t *testing.T) {
	// two distinct times only: no polynomial or spline, linear is the floor
	training := readingsAt([]float64{0, 0, 30}, []float64{1, 3, 5})

	res := newTestEngine().Fit(Request{
		Training:  training,
		Start:     t0,
		End:       t0.Add(30 * time.Minute),
		NumPoints: 10,
	})

	require.Nil(t, res.Error)
	assert.Equal(t, MethodLinear, res.Quality.Method)
	assert.Zero(t, res.Quality.Degree)
	assert.InDelta(t, 2.0, res.Approximation[0].Value, 1e-9)
	assert.InDelta(t, 5.0, res.Approximation[9].Value, 1e-9)
	require.Len(t, res.Quality.Attempts, 3)
	assert.NotEmpty(t, res.Quality.Attempts[0].Error)
	assert.True(t, res.Quality.Attempts[2].Accepted)
}

func TestFit_ExtrapolatesToRequestedWindow(t *testing.T) {
	var minutes, values []float64
	for i := 0; i < 12; i++ {
		minutes = append(minutes, float64(i*10))
		values = append(values, 2+0.1*float64(i*10))
	}
	training := readingsAt(minutes, values)
	end := t0.Add(4 * time.Hour)

	res := newTestEngine().Fit(Request{
		Training:  training,
		Display:   training,
		Start:     t0,
		End:       end,
		NumPoints: 100,
	})

	require.Nil(t, res.Error)
	assert.True(t, res.Quality.Extrapolated)
	last := res.Approximation[len(res.Approximation)-1]
	assert.True(t, end.Equal(last.Timestamp))
	assert.InDelta(t, 2+0.1*240, last.Value, 1e-6)
}

func TestFit_NoisyQuadraticPrefersPolynomial(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var minutes, values []float64
	for i := 0; i < 60; i++ {
		x := float64(i * 5)
		minutes = append(minutes, x)
		values = append(values, 0.001*x*x-0.2*x+10+rng.NormFloat64()*0.05)
	}
	training := readingsAt(minutes, values)

	res := newTestEngine().Fit(Request{Training: training, Display: training})

	require.Nil(t, res.Error)
	assert.Equal(t, MethodPolynomial, res.Quality.Method)
	assert.GreaterOrEqual(t, res.Quality.Degree, 2)
	assert.Greater(t, res.Quality.RSquared, 0.99)
	assert.Less(t, res.Quality.ResidualStd, 0.1)
	assert.Equal(t, 60, res.Quality.TrainingPoints)
	assert.Equal(t, DefaultConfig().DefaultNumPoints, res.Quality.ApproximationPoints)
}

func TestFit_PureNoiseFallsThroughGate(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var minutes, values []float64
	for i := 0; i < 40; i++ {
		minutes = append(minutes, float64(i))
		values = append(values, rng.NormFloat64())
	}
	training := readingsAt(minutes, values)

	res := newTestEngine().Fit(Request{Training: training, Degree: 2})

	require.Nil(t, res.Error)
	assert.NotEqual(t, MethodPolynomial, res.Quality.Method)
	require.NotEmpty(t, res.Quality.Attempts)
	assert.Equal(t, MethodPolynomial, res.Quality.Attempts[0].Method)
	assert.False(t, res.Quality.Attempts[0].Accepted)
}

func TestFit_DownsamplesLargeInput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTrainingPoints = 100
	engine := NewEngine(cfg, zap.NewNop())

	var minutes, values []float64
	for i := 0; i < 1000; i++ {
		minutes = append(minutes, float64(i))
		values = append(values, float64(i)/10)
	}
	training := readingsAt(minutes, values)

	res := engine.Fit(Request{Training: training, Start: t0, End: t0.Add(999 * time.Minute)})

	require.Nil(t, res.Error)
	assert.Equal(t, 1000, res.Quality.TrainingPoints)
	assert.InDelta(t, 0, res.Approximation[0].Value, 0.1)
	assert.InDelta(t, 99.9, res.Approximation[len(res.Approximation)-1].Value, 0.1)
}

func TestFit_ClampsNumPoints(t *testing.T) {
	training := readingsAt([]float64{0, 10, 20, 30}, []float64{1, 2, 3, 4})
	engine := newTestEngine()

	low := engine.Fit(Request{Training: training, NumPoints: 2})
	high := engine.Fit(Request{Training: training, NumPoints: 10000})

	assert.Len(t, low.Approximation, 10)
	assert.Len(t, high.Approximation, 500)
}

func TestSelectDegree(t *testing.T) {
	engine := newTestEngine()

	t.Run("exact cubic", func(t *testing.T) {
		var xs, ys []float64
		for i := 0; i < 30; i++ {
			x := float64(i) / 29
			xs = append(xs, x)
			ys = append(ys, x*x*x-x)
		}
		assert.Equal(t, 3, engine.SelectDegree(xs, ys, 0))
	})

	t.Run("three points", func(t *testing.T) {
		assert.Equal(t, 2, engine.SelectDegree([]float64{0, 0.5, 1}, []float64{1, 2, 3}, 0))
	})

	t.Run("hint is clamped", func(t *testing.T) {
		xs := []float64{0, 0.25, 0.5, 0.75, 1}
		ys := []float64{0, 1, 0, 1, 0}
		assert.Equal(t, 4, engine.SelectDegree(xs, ys, 9))
		assert.Equal(t, 2, engine.SelectDegree(xs, ys, 1))
		assert.Equal(t, 3, engine.SelectDegree(xs, ys, 3))
	})
}

func TestSmoothingSpline(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var xs, ys []float64
	for i := 0; i < 80; i++ {
		x := float64(i) / 79
		xs = append(xs, x)
		ys = append(ys, math.Sin(2*math.Pi*x)+rng.NormFloat64()*0.05)
	}

	m, err := SmoothingSpline{}.Fit(xs, ys)
	require.NoError(t, err)

	est := predictAll(m, xs)
	assert.Greater(t, rSquared(est, ys), 0.95)

	// linear continuation outside the knots stays close to the boundary value
	assert.InDelta(t, m.Predict(1), m.Predict(1+1e-6), 1e-3)
	assert.InDelta(t, m.Predict(0), m.Predict(-1e-6), 1e-3)
}

func TestSmoothingSpline_TooFewKnots(t *testing.T) {
	_, err := SmoothingSpline{}.Fit([]float64{0, 0, 1}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestLinear_Extrapolates(t *testing.T) {
	m, err := Linear{}.Fit([]float64{0, 1, 2}, []float64{0, 2, 3})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, m.Predict(0.5), 1e-12)
	assert.InDelta(t, -2.0, m.Predict(-1), 1e-12)
	assert.InDelta(t, 4.0, m.Predict(3), 1e-12)
}

func TestPolynomial_NeedsDistinctPoints(t *testing.T) {
	_, err := Polynomial{Degree: 3}.Fit([]float64{0, 1, 1, 2}, []float64{0, 1, 1, 2})
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestFitLinear(t *testing.T) {
	m, err := FitLinear([]float64{0, 1, 2, 3}, []float64{1, 3, 5, 7})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, m.Slope, 1e-12)
	assert.InDelta(t, 1.0, m.Intercept, 1e-12)
	assert.InDelta(t, 21.0, m.Predict(10), 1e-9)

	_, err = FitLinear([]float64{1, 1}, []float64{2, 3})
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestBucketAverage(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	ys := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	bx, by := bucketAverage(xs, ys, 5)

	require.Len(t, bx, 5)
	assert.Equal(t, []float64{0.5, 2.5, 4.5, 6.5, 8.5}, bx)
	assert.Equal(t, bx, by)
}
