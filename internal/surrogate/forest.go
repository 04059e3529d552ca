package surrogate

import (
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Forest is a bagged ensemble of CART regressors considering every feature at
// each split.
type Forest struct {
	hyper Hyper
	ens   *Ensemble
}

// NewForest creates an unfitted forest
func NewForest(h Hyper) *Forest {
	return &Forest{hyper: h}
}

func (f *Forest) Kind() Kind { return KindForest }

// Fit draws every bootstrap sample from one seeded stream up front, then grows
// the trees in parallel into fixed slots.
func (f *Forest) Fit(X [][]float64, y []float64) error {
	n := len(X)
	if n == 0 || len(y) != n {
		return fmt.Errorf("forest fit: %d rows, %d targets", n, len(y))
	}
	rng := rand.New(rand.NewSource(f.hyper.Seed))
	samples := make([][]int, f.hyper.Estimators)
	for t := range samples {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		samples[t] = idx
	}

	trees := make([]Tree, len(samples))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := range samples {
		t := t
		g.Go(func() error {
			trees[t] = buildTree(X, y, samples[t], f.hyper.MaxDepth)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.ens = &Ensemble{
		Trees:       trees,
		Base:        0,
		Scale:       1 / float64(len(trees)),
		NumFeatures: len(X[0]),
	}
	return nil
}

func (f *Forest) Predict(x []float64) float64 { return f.ens.Predict(x) }

func (f *Forest) PredictAll(X [][]float64) []float64 { return predictAll(f, X) }

func (f *Forest) Ensemble() *Ensemble { return f.ens }
