package search

import (
	"math"
	"math/rand"
	"sort"

	"goparam/domain/run"
	"goparam/domain/space"
)

// TPEOptions tune the sampler
type TPEOptions struct {
	StartupTrials int // below this many trials, sample uniformly
	EICandidates  int // draws from the good density per dimension
}

// DefaultTPEOptions matches common TPE defaults
func DefaultTPEOptions() TPEOptions {
	return TPEOptions{StartupTrials: 10, EICandidates: 24}
}

// Sampler proposes parameter assignments that look like the best trials
// seen so far (maximisation). Each dimension is modelled independently by a
// good density l (top gamma(n) trials) and a bad density g (the rest); a draw
// takes the best of EICandidates samples from l by log l(x) - log g(x).
// Every proposal is told back as the worst outcome so repeated asks spread
// out instead of collapsing onto the same assignment.
type Sampler struct {
	space  space.Space
	opts   TPEOptions
	rng    *rand.Rand
	trials []Trial
	good   []estimator
	bad    []estimator
}

// Proposal is one sampled assignment and its summed acquisition value
type Proposal struct {
	Params      map[string]run.Value
	Acquisition float64
}

// NewSampler starts a sampler from the history
func NewSampler(sp space.Space, history []Trial, opts TPEOptions, r *rand.Rand) *Sampler {
	trials := make([]Trial, len(history))
	copy(trials, history)
	return &Sampler{space: sp, opts: opts, rng: r, trials: trials}
}

// Tell records an observed value for an assignment
func (s *Sampler) Tell(params map[string]run.Value, value float64) {
	s.trials = append(s.trials, Trial{Params: params, Value: value, Key: run.ConfigKey(params, s.space.Names())})
}

func (s *Sampler) startup() bool {
	return len(s.trials) < s.opts.StartupTrials
}

// fit rebuilds the per-dimension densities from the current trials
func (s *Sampler) fit() {
	ordered := make([]Trial, len(s.trials))
	copy(ordered, s.trials)
	sort.SliceStable(ordered, func(a, b int) bool {
		if ordered[a].Value != ordered[b].Value {
			return ordered[a].Value > ordered[b].Value
		}
		return ordered[a].Key < ordered[b].Key
	})
	nGood := gamma(len(ordered))

	s.good = make([]estimator, len(s.space))
	s.bad = make([]estimator, len(s.space))
	for d, p := range s.space {
		obs := make([]float64, len(ordered))
		for i, t := range ordered {
			obs[i] = encodeDim(p.Domain, t.Params[p.Name])
		}
		s.good[d] = newEstimator(p.Domain, obs[:nGood])
		s.bad[d] = newEstimator(p.Domain, obs[nGood:])
	}
}

// gamma is the size of the good group: min(ceil(0.1 n), 25)
func gamma(n int) int {
	g := int(math.Ceil(0.1 * float64(n)))
	if g > 25 {
		g = 25
	}
	if g < 1 {
		g = 1
	}
	return g
}

// Ask draws one assignment
func (s *Sampler) Ask() Proposal {
	params := make(map[string]run.Value, len(s.space))
	total := 0.0
	startup := s.startup()
	if !startup {
		s.fit()
	}
	for d, p := range s.space {
		var x, acq float64
		if startup {
			x = s.uniform(p.Domain)
		} else {
			x, acq = s.bestOf(d)
		}
		params[p.Name] = decodeDim(p.Domain, x)
		total += acq
	}
	return Proposal{Params: params, Acquisition: total}
}

func (s *Sampler) bestOf(d int) (float64, float64) {
	best, bestScore := 0.0, math.Inf(-1)
	found := false
	for i := 0; i < s.opts.EICandidates; i++ {
		x := s.good[d].sample(s.rng)
		score := s.good[d].logPDF(x) - s.bad[d].logPDF(x)
		if math.IsNaN(score) {
			continue
		}
		if !found || score > bestScore {
			best, bestScore, found = x, score, true
		}
	}
	if !found {
		return s.good[d].sample(s.rng), 0
	}
	if math.IsInf(bestScore, 0) {
		bestScore = 0
	}
	return best, bestScore
}

func (s *Sampler) uniform(d space.Domain) float64 {
	switch d.Kind {
	case space.KindCategorical:
		return float64(s.rng.Intn(len(d.Choices)))
	case space.KindInteger:
		return d.Low + float64(s.rng.Intn(int(d.High-d.Low)+1))
	default:
		return d.Low + s.rng.Float64()*(d.High-d.Low)
	}
}

// encodeDim maps a value onto the sampler's axis: the choice index for
// categoricals, the number itself otherwise.
func encodeDim(d space.Domain, v run.Value) float64 {
	if d.Kind == space.KindCategorical {
		if i := d.Index(v); i >= 0 {
			return float64(i)
		}
		return 0
	}
	f, _ := v.Float()
	return f
}

func decodeDim(d space.Domain, x float64) run.Value {
	switch d.Kind {
	case space.KindCategorical:
		return d.Decode(int(x))
	case space.KindInteger:
		return run.Number(math.Round(x))
	default:
		return run.Number(x)
	}
}
