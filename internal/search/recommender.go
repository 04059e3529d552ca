package search

import (
	"context"
	"fmt"
	"math"
	"sort"

	"goparam/domain/analysis"
	"goparam/domain/core"
	"goparam/domain/run"
	"goparam/domain/space"
	"goparam/internal"
	"goparam/internal/features"
	"goparam/internal/rng"
	"goparam/internal/surrogate"
)

// Scorer predicts the target for a configuration
type Scorer interface {
	Score(params map[string]run.Value) float64
}

type surrogateScorer struct {
	model surrogate.Regressor
	table *features.Table
}

// SurrogateScorer encodes configurations with the training table's columns
// and scores them with the fitted surrogate.
func SurrogateScorer(model surrogate.Regressor, table *features.Table) Scorer {
	return &surrogateScorer{model: model, table: table}
}

func (s *surrogateScorer) Score(params map[string]run.Value) float64 {
	return s.model.Predict(s.table.EncodeConfig(params))
}

// Options control the recommender
type Options struct {
	Count             int
	DrawsPerCandidate int
	Seed              int64
	TPE               TPEOptions
	// Existing holds configuration keys that were run but may be absent
	// from the history, such as runs without a target value.
	Existing map[string]struct{}
}

// DefaultOptions returns the usual settings for n candidates
func DefaultOptions(n int) Options {
	return Options{Count: n, DrawsPerCandidate: 40, Seed: 42, TPE: DefaultTPEOptions()}
}

// Recommend proposes up to opts.Count configurations that appear neither in
// the history nor in opts.Existing. Draws from the sampler are filtered by
// configuration identity, scored with the scorer when one is given (else
// ranked by the sampler's acquisition value), deduplicated and cut to size.
// Finding nothing new is reported in the outcome, not as an error.
func Recommend(ctx context.Context, sp space.Space, history []Trial, scorer Scorer, opts Options) (*analysis.Recommendation, error) {
	if opts.Count <= 0 {
		return nil, core.NewValidationError("count", "must be positive")
	}
	rec := &analysis.Recommendation{Outcome: analysis.Success(), Space: sp, Candidates: []analysis.Candidate{}}
	if len(sp) == 0 {
		rec.Outcome = analysis.Declined("no searchable parameters")
		return rec, nil
	}

	names := sp.Names()
	seen := make(map[string]struct{}, len(history)+len(opts.Existing))
	for key := range opts.Existing {
		seen[key] = struct{}{}
	}
	for _, t := range history {
		key := t.Key
		if key == "" {
			key = run.ConfigKey(t.Params, names)
		}
		seen[key] = struct{}{}
	}
	if len(history) < opts.TPE.StartupTrials {
		rec.Outcome.Warn(fmt.Sprintf("only %d historical trials (< %d): sampling uniformly", len(history), opts.TPE.StartupTrials))
	}

	sampler := NewSampler(sp, history, opts.TPE, rng.New("search.tpe", opts.Seed))
	draws := opts.Count * opts.DrawsPerCandidate
	type scored struct {
		key       string
		params    map[string]run.Value
		score     float64
		predicted bool
	}
	var pool []scored
	for i := 0; i < draws; i++ {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		p := sampler.Ask()
		sampler.Tell(p.Params, math.Inf(-1))
		key := run.ConfigKey(p.Params, names)
		if _, dup := seen[key]; dup {
			continue
		}
		s := scored{key: key, params: p.Params, score: p.Acquisition}
		if scorer != nil {
			s.score = scorer.Score(p.Params)
			s.predicted = true
		}
		pool = append(pool, s)
	}
	rec.Sampled = draws
	if scorer != nil {
		rec.Source = "surrogate"
	} else {
		rec.Source = "sampler"
	}

	sort.SliceStable(pool, func(a, b int) bool {
		if pool[a].score != pool[b].score {
			return pool[a].score > pool[b].score
		}
		return pool[a].key < pool[b].key
	})

	unique := make(map[string]struct{})
	for _, s := range pool {
		if _, dup := unique[s.key]; dup {
			continue
		}
		unique[s.key] = struct{}{}
		c := analysis.Candidate{Rank: len(rec.Candidates) + 1, Params: s.params, HasPrediction: s.predicted}
		if s.predicted {
			c.Predicted = s.score
		}
		rec.Candidates = append(rec.Candidates, c)
		if len(rec.Candidates) == opts.Count {
			break
		}
	}

	if len(rec.Candidates) == 0 {
		internal.DefaultLogger.With("search").Warn("no unseen configuration in %d draws", draws)
		rec.Outcome.Warn(fmt.Sprintf("search space exhausted: no unseen configuration in %d draws", draws))
	} else if len(rec.Candidates) < opts.Count {
		rec.Outcome.Warn(fmt.Sprintf("only %d of %d requested candidates are new", len(rec.Candidates), opts.Count))
	}
	return rec, nil
}
