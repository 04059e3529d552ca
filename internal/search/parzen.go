package search

import (
	"math"
	"math/rand"
	"sort"

	"goparam/domain/space"

	"gonum.org/v1/gonum/stat/distuv"
)

const priorWeight = 1.0

// estimator is a one-dimensional Parzen density over a parameter domain
type estimator interface {
	sample(r *rand.Rand) float64
	logPDF(x float64) float64
}

// categoricalEstimator smooths observed choice counts with a uniform prior
type categoricalEstimator struct {
	probs []float64
	cdf   []float64
}

func newCategoricalEstimator(n int, observed []float64) *categoricalEstimator {
	probs := make([]float64, n)
	for i := range probs {
		probs[i] = priorWeight / float64(n)
	}
	for _, o := range observed {
		probs[int(o)]++
	}
	total := 0.0
	for _, p := range probs {
		total += p
	}
	cdf := make([]float64, n)
	acc := 0.0
	for i := range probs {
		probs[i] /= total
		acc += probs[i]
		cdf[i] = acc
	}
	return &categoricalEstimator{probs: probs, cdf: cdf}
}

func (e *categoricalEstimator) sample(r *rand.Rand) float64 {
	u := r.Float64()
	for i, c := range e.cdf {
		if u < c {
			return float64(i)
		}
	}
	return float64(len(e.cdf) - 1)
}

func (e *categoricalEstimator) logPDF(x float64) float64 {
	return math.Log(e.probs[int(x)])
}

// numericEstimator is a truncated Gaussian mixture with one kernel per
// observation plus a wide prior kernel at the middle of the range. Each
// kernel's bandwidth is the larger gap to its sorted neighbours, clipped to
// [range/min(100, 1+n), range]. Integer domains put the mass of
// [k-0.5, k+0.5] on k.
type numericEstimator struct {
	low, high float64
	integer   bool
	weights   []float64
	kernels   []distuv.Normal
	mass      []float64 // truncation normaliser per kernel
}

func newNumericEstimator(d space.Domain, observed []float64) *numericEstimator {
	low, high := d.Low, d.High
	integer := d.Kind == space.KindInteger
	if integer {
		low, high = low-0.5, high+0.5
	}
	span := high - low

	mus := append(append([]float64(nil), observed...), low+span/2)
	n := len(observed)

	sorted := make([]int, len(mus))
	for i := range sorted {
		sorted[i] = i
	}
	sort.SliceStable(sorted, func(a, b int) bool { return mus[sorted[a]] < mus[sorted[b]] })

	sigmas := make([]float64, len(mus))
	for pos, i := range sorted {
		left, right := mus[i]-low, high-mus[i]
		if pos > 0 {
			left = mus[i] - mus[sorted[pos-1]]
		}
		if pos < len(sorted)-1 {
			right = mus[sorted[pos+1]] - mus[i]
		}
		sigmas[i] = math.Max(left, right)
	}
	minSigma := span / math.Min(100, 1+float64(n))
	for i := range sigmas {
		sigmas[i] = math.Max(minSigma, math.Min(span, sigmas[i]))
	}
	sigmas[len(sigmas)-1] = span

	e := &numericEstimator{
		low:     low,
		high:    high,
		integer: integer,
		weights: make([]float64, len(mus)),
		kernels: make([]distuv.Normal, len(mus)),
		mass:    make([]float64, len(mus)),
	}
	total := float64(n) + priorWeight
	for i := range mus {
		w := 1.0
		if i == len(mus)-1 {
			w = priorWeight
		}
		e.weights[i] = w / total
		e.kernels[i] = distuv.Normal{Mu: mus[i], Sigma: sigmas[i]}
		e.mass[i] = e.kernels[i].CDF(high) - e.kernels[i].CDF(low)
	}
	return e
}

func (e *numericEstimator) sample(r *rand.Rand) float64 {
	u := r.Float64()
	k := len(e.weights) - 1
	acc := 0.0
	for i, w := range e.weights {
		acc += w
		if u < acc {
			k = i
			break
		}
	}
	kernel := e.kernels[k]
	lo, hi := kernel.CDF(e.low), kernel.CDF(e.high)
	x := kernel.Quantile(lo + r.Float64()*(hi-lo))
	x = math.Max(e.low, math.Min(e.high, x))
	if e.integer {
		x = math.Max(e.low+0.5, math.Min(e.high-0.5, math.Round(x)))
	}
	return x
}

func (e *numericEstimator) logPDF(x float64) float64 {
	p := 0.0
	for i, k := range e.kernels {
		if e.mass[i] <= 0 {
			continue
		}
		if e.integer {
			p += e.weights[i] * (k.CDF(x+0.5) - k.CDF(x-0.5)) / e.mass[i]
		} else {
			p += e.weights[i] * k.Prob(x) / e.mass[i]
		}
	}
	if p <= 0 {
		return math.Inf(-1)
	}
	return math.Log(p)
}

// newEstimator builds the density for one domain from encoded observations
// (choice indices for categoricals, raw numbers otherwise).
func newEstimator(d space.Domain, observed []float64) estimator {
	if d.Kind == space.KindCategorical {
		return newCategoricalEstimator(len(d.Choices), observed)
	}
	return newNumericEstimator(d, observed)
}
