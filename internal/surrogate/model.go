// Package surrogate fits small tree-ensemble regressors that stand in for
// re-running experiments. Both variants share one Ensemble representation so
// attribution can walk their trees the same way.
package surrogate

import (
	"strings"
)

// Kind selects the ensemble variant
type Kind string

const (
	KindForest  Kind = "rf"
	KindBoosted Kind = "gbt"
)

// ParseKind accepts the short names and common aliases
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rf", "forest", "random_forest":
		return KindForest, true
	case "gbt", "xgb", "boosted", "gradient_boosting":
		return KindBoosted, true
	}
	return KindForest, false
}

// Node is one node of a regression tree. Leaves carry Value; internal nodes
// send x to Left when x[Feature] <= Threshold.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Samples   int     `json:"samples"`
	Leaf      bool    `json:"leaf"`
}

// Tree is a flat node array rooted at index 0
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks x to its leaf
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the longest root-to-leaf edge count
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Leaf {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

// Ensemble is the shared prediction form: Base + Scale * sum of tree outputs.
// A forest averages (Base 0, Scale 1/T); boosting adds shrunken residual
// trees to the target mean.
type Ensemble struct {
	Trees       []Tree  `json:"trees"`
	Base        float64 `json:"base"`
	Scale       float64 `json:"scale"`
	NumFeatures int     `json:"num_features"`
}

// Predict evaluates the ensemble on one feature vector
func (e *Ensemble) Predict(x []float64) float64 {
	sum := 0.0
	for i := range e.Trees {
		sum += e.Trees[i].Predict(x)
	}
	return e.Base + e.Scale*sum
}

// Regressor is the capability every surrogate variant provides
type Regressor interface {
	Kind() Kind
	Fit(X [][]float64, y []float64) error
	Predict(x []float64) float64
	PredictAll(X [][]float64) []float64
	// Ensemble exposes the fitted trees for exact attribution
	Ensemble() *Ensemble
}

// Hyper holds the size of an ensemble
type Hyper struct {
	Estimators int
	MaxDepth   int
	Seed       int64
}

// SizeFor scales ensemble size and depth with the number of rows so tiny
// datasets get shallow models.
func SizeFor(kind Kind, rows int) (estimators, depth int) {
	estimators = clamp(rows*15, 50, 300)
	if kind == KindBoosted {
		depth = clamp(rows-1, 2, 4)
	} else {
		depth = clamp(rows-1, 2, 5)
	}
	return estimators, depth
}

// New creates an unfitted regressor of the given kind
func New(kind Kind, h Hyper) Regressor {
	if kind == KindBoosted {
		return NewBoosted(h)
	}
	return NewForest(h)
}

func predictAll(r Regressor, X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = r.Predict(x)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
