package surrogate

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	boostLearningRate = 0.1
	boostSubsample    = 0.8
)

// Boosted is a gradient-boosted ensemble of CART regressors on squared loss,
// each tree fitted to the residuals of a row subsample drawn without
// replacement.
type Boosted struct {
	hyper Hyper
	ens   *Ensemble
}

// NewBoosted creates an unfitted boosted ensemble
func NewBoosted(h Hyper) *Boosted {
	return &Boosted{hyper: h}
}

func (b *Boosted) Kind() Kind { return KindBoosted }

func (b *Boosted) Fit(X [][]float64, y []float64) error {
	n := len(X)
	if n == 0 || len(y) != n {
		return fmt.Errorf("boosted fit: %d rows, %d targets", n, len(y))
	}
	rng := rand.New(rand.NewSource(b.hyper.Seed))

	base := 0.0
	for _, v := range y {
		base += v
	}
	base /= float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}
	residual := make([]float64, n)
	take := int(math.Ceil(boostSubsample * float64(n)))
	if take < 2 {
		take = n
	}

	trees := make([]Tree, 0, b.hyper.Estimators)
	for t := 0; t < b.hyper.Estimators; t++ {
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}
		idx := rng.Perm(n)[:take]
		tree := buildTree(X, residual, idx, b.hyper.MaxDepth)
		for i := range pred {
			pred[i] += boostLearningRate * tree.Predict(X[i])
		}
		trees = append(trees, tree)
	}

	b.ens = &Ensemble{
		Trees:       trees,
		Base:        base,
		Scale:       boostLearningRate,
		NumFeatures: len(X[0]),
	}
	return nil
}

func (b *Boosted) Predict(x []float64) float64 { return b.ens.Predict(x) }

func (b *Boosted) PredictAll(X [][]float64) []float64 { return predictAll(b, X) }

func (b *Boosted) Ensemble() *Ensemble { return b.ens }
