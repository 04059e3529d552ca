// Package attribution decomposes surrogate predictions into exact per-feature
// Shapley contributions using interventional TreeSHAP over the training rows.
package attribution

import (
	"context"
	"fmt"
	"runtime"

	"goparam/domain/core"
	"goparam/internal/features"
	"goparam/internal/surrogate"

	"golang.org/x/sync/errgroup"
)

const (
	unassigned int8 = iota
	fromX
	fromZ
)

// Result holds the contribution of every feature to every row's prediction.
// For each row the contributions sum to Predictions[row] - Baseline.
type Result struct {
	Features    []string
	Params      []string // source parameter of each feature
	Values      [][]float64
	Predictions []float64
	Baseline    float64

	table *features.Table
	model surrogate.Regressor
	order []int
}

// Attribute computes exact interventional SHAP values for every row of the
// table, using the table rows themselves as the background distribution.
// Rows are processed in parallel into fixed slots; the output does not
// depend on scheduling.
func Attribute(ctx context.Context, model surrogate.Regressor, table *features.Table) (*Result, error) {
	if table == nil || table.NumRows() == 0 {
		return nil, fmt.Errorf("%w: nothing to attribute", core.ErrInsufficientData)
	}
	ens := model.Ensemble()
	if ens == nil {
		return nil, fmt.Errorf("attribute: model is not fitted")
	}
	if ens.NumFeatures != table.NumCols() {
		return nil, fmt.Errorf("%w: model has %d features, table has %d", core.ErrShapeMismatch, ens.NumFeatures, table.NumCols())
	}

	order := surrogate.CanonicalOrder(table.Rows, nil)
	background := make([][]float64, len(order))
	for i, r := range order {
		background[i] = table.Rows[r]
	}

	preds := model.PredictAll(table.Rows)
	baseline := 0.0
	for _, r := range order {
		baseline += preds[r]
	}
	baseline /= float64(len(order))

	values := make([][]float64, table.NumRows())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range table.Rows {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			values[i] = rowShap(ens, table.Rows[i], background)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	params := make([]string, table.NumCols())
	for j, c := range table.Columns {
		params[j] = c.Param
	}

	return &Result{
		Features:    table.Names(),
		Params:      params,
		Values:      values,
		Predictions: preds,
		Baseline:    baseline,
		table:       table,
		model:       model,
		order:       order,
	}, nil
}

// rowShap averages the single-reference decomposition of x over every
// background row and scales by the ensemble's shrinkage.
func rowShap(ens *surrogate.Ensemble, x []float64, background [][]float64) []float64 {
	phi := make([]float64, ens.NumFeatures)
	w := &walker{
		status: make([]int8, ens.NumFeatures),
		phi:    phi,
		x:      x,
	}
	for _, z := range background {
		w.z = z
		for t := range ens.Trees {
			w.nodes = ens.Trees[t].Nodes
			w.visit(0, 0, 0)
		}
	}
	scale := ens.Scale / float64(len(background))
	for j := range phi {
		phi[j] *= scale
	}
	return phi
}

// walker explores the paths of one tree for a (x, z) pair. Where x and z
// disagree on a split the walk branches: the feature is attributed to x on
// x's side and to z on z's side. At a leaf reached with a features taken
// from x and b from z, each x-feature gains v*(a-1)!b!/(a+b)! and each
// z-feature loses v*a!(b-1)!/(a+b)!.
type walker struct {
	nodes  []surrogate.Node
	status []int8
	phi    []float64
	x, z   []float64
}

func (w *walker) visit(i, a, b int) {
	n := &w.nodes[i]
	if n.Leaf {
		if a+b == 0 {
			return
		}
		var gain, loss float64
		if a > 0 {
			gain = n.Value * factorial[a-1] * factorial[b] / factorial[a+b]
		}
		if b > 0 {
			loss = n.Value * factorial[a] * factorial[b-1] / factorial[a+b]
		}
		for j, s := range w.status {
			switch s {
			case fromX:
				w.phi[j] += gain
			case fromZ:
				w.phi[j] -= loss
			}
		}
		return
	}

	f := n.Feature
	xLeft := w.x[f] <= n.Threshold
	zLeft := w.z[f] <= n.Threshold
	switch w.status[f] {
	case fromX:
		w.visit(child(n, xLeft), a, b)
	case fromZ:
		w.visit(child(n, zLeft), a, b)
	default:
		if xLeft == zLeft {
			w.visit(child(n, xLeft), a, b)
			return
		}
		w.status[f] = fromX
		w.visit(child(n, xLeft), a+1, b)
		w.status[f] = fromZ
		w.visit(child(n, zLeft), a, b+1)
		w.status[f] = unassigned
	}
}

func child(n *surrogate.Node, left bool) int {
	if left {
		return n.Left
	}
	return n.Right
}

// factorial covers any path length a tree can have
var factorial = func() []float64 {
	f := make([]float64, 64)
	f[0] = 1
	for i := 1; i < len(f); i++ {
		f[i] = f[i-1] * float64(i)
	}
	return f
}()
