package fitting

import (
	"math"
	"sort"
)

// scaler maps values affinely onto roughly [0,1].
type scaler struct {
	offset float64
	scale  float64
}

func newScaler(vs []float64) scaler {
	if len(vs) == 0 {
		return scaler{scale: 1}
	}
	lo, hi := vs[0], vs[0]
	for _, v := range vs[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 || math.IsInf(span, 0) || math.IsNaN(span) {
		span = 1
	}
	return scaler{offset: lo, scale: span}
}

func (s scaler) forward(v float64) float64 { return (v - s.offset) / s.scale }
func (s scaler) inverse(v float64) float64 { return v*s.scale + s.offset }

func (s scaler) forwardAll(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = s.forward(v)
	}
	return out
}

func distinctCount(xs []float64) int {
	seen := make(map[float64]struct{}, len(xs))
	for _, x := range xs {
		seen[x] = struct{}{}
	}
	return len(seen)
}

// dedupe collapses equal x values into one point carrying the mean y.
// The result is sorted by x.
func dedupe(xs, ys []float64) ([]float64, []float64) {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	ux := make([]float64, 0, len(xs))
	uy := make([]float64, 0, len(xs))
	for i := 0; i < len(idx); {
		x := xs[idx[i]]
		sum, n := 0.0, 0
		for i < len(idx) && xs[idx[i]] == x {
			sum += ys[idx[i]]
			n++
			i++
		}
		ux = append(ux, x)
		uy = append(uy, sum/float64(n))
	}
	return ux, uy
}

// bucketAverage reduces sorted points to at most maxBuckets points by
// averaging x and y inside equal-width x buckets. Empty buckets are skipped.
func bucketAverage(xs, ys []float64, maxBuckets int) ([]float64, []float64) {
	if maxBuckets < 1 || len(xs) <= maxBuckets {
		return xs, ys
	}
	lo, hi := xs[0], xs[len(xs)-1]
	width := (hi - lo) / float64(maxBuckets)
	if width <= 0 {
		return []float64{lo}, []float64{mean(ys)}
	}

	sumX := make([]float64, maxBuckets)
	sumY := make([]float64, maxBuckets)
	counts := make([]int, maxBuckets)
	for i, x := range xs {
		b := int((x - lo) / width)
		if b >= maxBuckets {
			b = maxBuckets - 1
		}
		if b < 0 {
			b = 0
		}
		sumX[b] += x
		sumY[b] += ys[i]
		counts[b]++
	}

	outX := make([]float64, 0, maxBuckets)
	outY := make([]float64, 0, maxBuckets)
	for b := 0; b < maxBuckets; b++ {
		if counts[b] == 0 {
			continue
		}
		outX = append(outX, sumX[b]/float64(counts[b]))
		outY = append(outY, sumY[b]/float64(counts[b]))
	}
	return outX, outY
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func allFinite(vs []float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// extendedModel evaluates inner inside [x0, xn] and continues the end
// segments as straight lines outside it.
type extendedModel struct {
	inner  func(float64) float64
	x0     float64
	y0     float64
	slope0 float64
	xn     float64
	yn     float64
	slopeN float64
}

func (m extendedModel) Predict(x float64) float64 {
	switch {
	case x < m.x0:
		return m.y0 + m.slope0*(x-m.x0)
	case x > m.xn:
		return m.yn + m.slopeN*(x-m.xn)
	default:
		return m.inner(x)
	}
}
