package causal

import (
	"context"
	"math"
	"sort"

	"goparam/domain/analysis"
	"goparam/internal/rng"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

const (
	MethodRandomCommonCause = "random_common_cause"
	MethodPlaceboTreatment  = "placebo_treatment"
	MethodDataSubset        = "data_subset"
)

// problem is the regression the estimate came from: target on treatment
// plus confounders.
type problem struct {
	y           []float64
	treatment   []float64
	confounders [][]float64
}

func (p problem) design(treatment []float64, extra ...[]float64) *mat.Dense {
	cols := append([][]float64{treatment}, p.confounders...)
	cols = append(cols, extra...)
	return designMatrix(len(p.y), cols...)
}

func (p problem) subset(rows []int) problem {
	pick := func(xs []float64) []float64 {
		out := make([]float64, len(rows))
		for i, r := range rows {
			out[i] = xs[r]
		}
		return out
	}
	sub := problem{y: pick(p.y), treatment: pick(p.treatment)}
	for _, c := range p.confounders {
		sub.confounders = append(sub.confounders, pick(c))
	}
	return sub
}

// refute re-estimates the effect under three perturbations, each averaged
// over opts.Simulations seeded draws. A check passes when the new effect
// stays within PassRatio·|ATE| of the estimate; the placebo check passes
// when its effect stays below PlaceboRatio·|ATE|.
func refute(ctx context.Context, p problem, ate float64, opts Options) ([]analysis.Refutation, error) {
	n := len(p.y)
	sims := opts.Simulations
	if sims < 1 {
		sims = 1
	}
	var out []analysis.Refutation

	r := rng.New("causal."+MethodRandomCommonCause, opts.Seed)
	var effects []float64
	for s := 0; s < sims; s++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		noise := make([]float64, n)
		for i := range noise {
			noise[i] = r.NormFloat64()
		}
		effects = append(effects, fitOLS(p.design(p.treatment, noise), p.y).coef[1])
	}
	effect := mean(effects)
	out = append(out, analysis.Refutation{
		Method:      MethodRandomCommonCause,
		NewEffect:   effect,
		Passed:      math.Abs(effect-ate) < opts.PassRatio*math.Abs(ate),
		Simulations: len(effects),
	})

	r = rng.New("causal."+MethodPlaceboTreatment, opts.Seed)
	effects = effects[:0]
	for s := 0; s < sims; s++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		placebo := make([]float64, n)
		for i, j := range r.Perm(n) {
			placebo[i] = p.treatment[j]
		}
		effects = append(effects, fitOLS(p.design(placebo), p.y).coef[1])
	}
	effect = mean(effects)
	out = append(out, analysis.Refutation{
		Method:      MethodPlaceboTreatment,
		NewEffect:   effect,
		Passed:      math.Abs(effect) < opts.PlaceboRatio*math.Abs(ate),
		Simulations: len(effects),
	})

	r = rng.New("causal."+MethodDataSubset, opts.Seed)
	size := int(math.Round(opts.SubsetFraction * float64(n)))
	if size < 2 {
		size = n
	}
	effects = effects[:0]
	for s := 0; s < sims; s++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows := r.Perm(n)[:size]
		sort.Ints(rows)
		sub := p.subset(rows)
		if constant(sub.treatment) {
			continue
		}
		effects = append(effects, fitOLS(sub.design(sub.treatment), sub.y).coef[1])
	}
	subset := analysis.Refutation{Method: MethodDataSubset, Simulations: len(effects)}
	if len(effects) > 0 {
		subset.NewEffect = mean(effects)
		subset.Passed = math.Abs(subset.NewEffect-ate) < opts.PassRatio*math.Abs(ate)
	}
	out = append(out, subset)
	return out, nil
}

func mean(xs []float64) float64 {
	m, err := stats.Mean(xs)
	if err != nil {
		return 0
	}
	return m
}

func constant(xs []float64) bool {
	if len(xs) < 2 {
		return true
	}
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}
