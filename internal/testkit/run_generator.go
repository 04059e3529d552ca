package testkit

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"goparam/domain/core"
	"goparam/domain/run"
)

// Level is one value of a factor and its additive effect on the score
type Level struct {
	Value run.Value `json:"value"`
	Bonus float64   `json:"bonus"`
}

// Factor is a parameter with a programmed bonus table
type Factor struct {
	Name   string  `json:"name"`
	Levels []Level `json:"levels"`
}

// Span is the range of the factor's bonus table
func (f Factor) Span() float64 {
	lo, hi := f.Levels[0].Bonus, f.Levels[0].Bonus
	for _, l := range f.Levels[1:] {
		if l.Bonus < lo {
			lo = l.Bonus
		}
		if l.Bonus > hi {
			hi = l.Bonus
		}
	}
	return hi - lo
}

// Best returns the level with the highest bonus
func (f Factor) Best() Level {
	best := f.Levels[0]
	for _, l := range f.Levels[1:] {
		if l.Bonus > best.Bonus {
			best = l
		}
	}
	return best
}

// RunGeneratorConfig configures the synthetic run generator
type RunGeneratorConfig struct {
	Factors    []Factor  `json:"factors"`
	Base       float64   `json:"base"`
	Noise      float64   `json:"noise"` // uniform in [-Noise, +Noise]
	Metric     string    `json:"metric"`
	Replicates int       `json:"replicates"`
	Random     int       `json:"random"` // > 0 draws this many random configurations instead of the full factorial
	StartDate  time.Time `json:"start_date"`
	Seed       int64     `json:"seed"`
}

// DefaultRunConfig models a retrieval pipeline whose score is
// base + f(mode) + g(chunk) + h(rerank) + k(top_k) + noise.
func DefaultRunConfig() RunGeneratorConfig {
	return RunGeneratorConfig{
		Factors: []Factor{
			{Name: "query_mode", Levels: []Level{
				{Value: run.Category("global"), Bonus: 0},
				{Value: run.Category("hybrid"), Bonus: 0.25},
				{Value: run.Category("local"), Bonus: 0.05},
			}},
			{Name: "param_chunk_size", Levels: []Level{
				{Value: run.Number(256), Bonus: -0.06},
				{Value: run.Number(512), Bonus: 0.12},
				{Value: run.Number(1024), Bonus: -0.03},
			}},
			{Name: "param_rerank_threshold", Levels: []Level{
				{Value: run.Number(0.1), Bonus: -0.05},
				{Value: run.Number(0.3), Bonus: 0.08},
				{Value: run.Number(0.5), Bonus: -0.03},
			}},
			{Name: "top_k", Levels: []Level{
				{Value: run.Number(5), Bonus: -0.02},
				{Value: run.Number(10), Bonus: 0.03},
				{Value: run.Number(15), Bonus: 0.04},
				{Value: run.Number(20), Bonus: 0},
			}},
		},
		Base:       0.45,
		Noise:      0.02,
		Metric:     "llm_f1",
		Replicates: 1,
		StartDate:  time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
		Seed:       42,
	}
}

// TreatmentRunConfig injects a binary treatment worth +0.20, independent of
// the other factors.
func TreatmentRunConfig() RunGeneratorConfig {
	cfg := DefaultRunConfig()
	cfg.Factors = []Factor{
		{Name: "param_reranker", Levels: []Level{
			{Value: run.Category("off"), Bonus: 0},
			{Value: run.Category("on"), Bonus: 0.20},
		}},
		cfg.Factors[1],
		cfg.Factors[3],
	}
	cfg.Replicates = 2
	return cfg
}

// RunGenerator produces run records with known parameter effects
type RunGenerator struct {
	config RunGeneratorConfig
	rng    *rand.Rand
}

// NewRunGenerator creates a new run generator
func NewRunGenerator(config RunGeneratorConfig) *RunGenerator {
	return &RunGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate produces the full factorial design (times Replicates), or
// Random random configurations when set.
func (g *RunGenerator) Generate() run.Collection {
	var configs [][]int
	if g.config.Random > 0 {
		for i := 0; i < g.config.Random; i++ {
			pick := make([]int, len(g.config.Factors))
			for f, factor := range g.config.Factors {
				pick[f] = g.rng.Intn(len(factor.Levels))
			}
			configs = append(configs, pick)
		}
	} else {
		configs = factorial(g.config.Factors)
	}

	reps := g.config.Replicates
	if reps < 1 {
		reps = 1
	}
	var out run.Collection
	for rep := 0; rep < reps; rep++ {
		for _, pick := range configs {
			out = append(out, g.record(len(out), pick))
		}
	}
	return out
}

func (g *RunGenerator) record(i int, pick []int) run.Record {
	params := make(map[string]run.Value, len(pick))
	score := g.config.Base
	for f, l := range pick {
		level := g.config.Factors[f].Levels[l]
		params[g.config.Factors[f].Name] = level.Value
		score += level.Bonus
	}
	score += (g.rng.Float64()*2 - 1) * g.config.Noise

	metrics := map[string]float64{g.config.Metric: score}
	if g.config.Metric == "llm_f1" {
		metrics["llm_recall"] = score + 0.05 + (g.rng.Float64()*2-1)*g.config.Noise
		metrics["llm_precision"] = score - 0.03 + (g.rng.Float64()*2-1)*g.config.Noise
	}

	return run.Record{
		Label:     fmt.Sprintf("run_%03d", i+1),
		Timestamp: core.NewTimestamp(g.config.StartDate.Add(time.Duration(i) * time.Hour)),
		Params:    params,
		Metrics:   metrics,
		Source:    "synthetic",
		TestCases: 50,
	}
}

// ExpectedRanking lists factor names by descending bonus span
func (g *RunGenerator) ExpectedRanking() []string {
	factors := append([]Factor(nil), g.config.Factors...)
	sort.SliceStable(factors, func(a, b int) bool { return factors[a].Span() > factors[b].Span() })
	out := make([]string, len(factors))
	for i, f := range factors {
		out[i] = f.Name
	}
	return out
}

// BestConfig is the configuration maximising the noise-free score
func (g *RunGenerator) BestConfig() map[string]run.Value {
	out := make(map[string]run.Value, len(g.config.Factors))
	for _, f := range g.config.Factors {
		out[f.Name] = f.Best().Value
	}
	return out
}

// TrueScore evaluates the noise-free formula for a configuration
func (g *RunGenerator) TrueScore(params map[string]run.Value) float64 {
	score := g.config.Base
	for _, f := range g.config.Factors {
		for _, l := range f.Levels {
			if l.Value.Equal(params[f.Name]) {
				score += l.Bonus
			}
		}
	}
	return score
}

func factorial(factors []Factor) [][]int {
	out := [][]int{{}}
	for _, f := range factors {
		var next [][]int
		for _, prefix := range out {
			for l := range f.Levels {
				pick := append(append([]int(nil), prefix...), l)
				next = append(next, pick)
			}
		}
		out = next
	}
	return out
}
