package surrogate

import (
	"context"
	"fmt"
	"sort"

	"goparam/domain/analysis"
	"goparam/domain/core"
	"goparam/internal"
	"goparam/internal/features"
	"goparam/internal/rng"

	"gonum.org/v1/gonum/stat"
)

// Options control surrogate training
type Options struct {
	ModelKind    string
	Seed         int64
	MinRowsForCV int
	WeakR2       float64
	MaxFolds     int
}

// DefaultOptions mirrors the engine defaults
func DefaultOptions() Options {
	return Options{
		ModelKind:    string(KindForest),
		Seed:         42,
		MinRowsForCV: 5,
		WeakR2:       0.3,
		MaxFolds:     3,
	}
}

// Fit is a trained surrogate together with the data it was trained on
type Fit struct {
	Model       Regressor
	Table       *features.Table
	Target      []float64
	Order       []int     // canonical row order used for fitting
	Predictions []float64 // in table row order
	Baseline    float64   // mean training prediction
	Summary     analysis.ModelSummary
	Outcome     analysis.Outcome
}

// Background returns the training rows in canonical order
func (f *Fit) Background() [][]float64 {
	out := make([][]float64, len(f.Order))
	for i, r := range f.Order {
		out[i] = f.Table.Rows[r]
	}
	return out
}

// Train fits a surrogate of the requested kind. Rows are put in a canonical
// order first, so the fitted model does not depend on input row order.
// It fails only when fewer than 2 rows or no feature columns are available;
// small datasets are fitted and flagged low-confidence.
func Train(ctx context.Context, table *features.Table, y []float64, opts Options) (*Fit, error) {
	logger := internal.DefaultLogger.With("surrogate")
	if table == nil || table.NumCols() == 0 {
		return nil, fmt.Errorf("%w: surrogate needs at least one column", core.ErrNoFeatures)
	}
	rows := table.NumRows()
	if rows != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d targets", core.ErrShapeMismatch, rows, len(y))
	}
	if rows < 2 {
		return nil, core.NewInsufficientDataError("surrogate training", rows, 2)
	}

	outcome := analysis.Success()
	kind, ok := ParseKind(opts.ModelKind)
	if !ok {
		logger.Warn("unknown model kind %q, falling back to %s", opts.ModelKind, KindForest)
		outcome.Warn(fmt.Sprintf("model kind %q unavailable, used %s", opts.ModelKind, KindForest))
	}

	estimators, depth := SizeFor(kind, rows)
	hyper := Hyper{Estimators: estimators, MaxDepth: depth, Seed: rng.Derive("surrogate.fit", opts.Seed)}

	order := CanonicalOrder(table.Rows, y)
	X, target := gather(table.Rows, y, order)

	model := New(kind, hyper)
	if err := model.Fit(X, target); err != nil {
		return nil, fmt.Errorf("fit %s surrogate: %w", kind, err)
	}
	logger.Debug("fit %s: rows=%d features=%d estimators=%d depth=%d", kind, rows, table.NumCols(), estimators, depth)

	preds := model.PredictAll(table.Rows)
	baseline := 0.0
	for _, r := range order {
		baseline += preds[r]
	}
	baseline /= float64(rows)

	summary := analysis.ModelSummary{
		Kind:       string(kind),
		Rows:       rows,
		Features:   table.NumCols(),
		Estimators: estimators,
		MaxDepth:   depth,
		Baseline:   baseline,
	}

	if rows >= opts.MinRowsForCV {
		folds := opts.MaxFolds
		if folds > rows {
			folds = rows
		}
		r2, std, err := crossValidate(ctx, kind, hyper, X, target, folds, opts.Seed)
		if err != nil {
			return nil, err
		}
		summary.CVFolds = folds
		summary.CVR2 = r2
		summary.CVR2Std = std
		summary.HasCV = true
		if r2 < opts.WeakR2 {
			logger.Warn("cross-validated R2 %.3f below %.2f: weak signal", r2, opts.WeakR2)
			outcome.Warn(fmt.Sprintf("weak signal: %d-fold CV R2 = %.3f", folds, r2))
		}
	} else {
		summary.LowConfidence = true
		outcome.Warn(fmt.Sprintf("only %d rows (< %d): surrogate is low confidence", rows, opts.MinRowsForCV))
	}

	return &Fit{
		Model:       model,
		Table:       table,
		Target:      y,
		Order:       order,
		Predictions: preds,
		Baseline:    baseline,
		Summary:     summary,
		Outcome:     outcome,
	}, nil
}

// crossValidate returns the mean and population standard deviation of the
// out-of-fold R2 over k folds drawn from a seeded shuffle of the canonical order.
func crossValidate(ctx context.Context, kind Kind, hyper Hyper, X [][]float64, y []float64, k int, seed int64) (float64, float64, error) {
	perm := rng.New("surrogate.cv", seed).Perm(len(X))
	fold := make([]int, len(X))
	for pos, i := range perm {
		fold[i] = pos % k
	}

	scores := make([]float64, k)
	for f := 0; f < k; f++ {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		var trainX, testX [][]float64
		var trainY, testY []float64
		for i := range X {
			if fold[i] == f {
				testX = append(testX, X[i])
				testY = append(testY, y[i])
			} else {
				trainX = append(trainX, X[i])
				trainY = append(trainY, y[i])
			}
		}
		m := New(kind, hyper)
		if err := m.Fit(trainX, trainY); err != nil {
			return 0, 0, fmt.Errorf("cv fold %d: %w", f, err)
		}
		scores[f] = rSquared(m.PredictAll(testX), testY)
	}
	mean, std := stat.PopMeanStdDev(scores, nil)
	return mean, std, nil
}

// rSquared is 0 when the held-out targets have no spread
func rSquared(pred, actual []float64) float64 {
	if len(actual) < 2 {
		return 0
	}
	same := true
	for _, v := range actual[1:] {
		if v != actual[0] {
			same = false
			break
		}
	}
	if same {
		return 0
	}
	return stat.RSquaredFrom(pred, actual, nil)
}

// CanonicalOrder sorts row indices by (features..., target), original index
// last. y may be nil to order by features only.
func CanonicalOrder(X [][]float64, y []float64) []int {
	order := make([]int, len(X))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := X[order[a]], X[order[b]]
		for j := range ra {
			if ra[j] != rb[j] {
				return ra[j] < rb[j]
			}
		}
		if y == nil {
			return false
		}
		return y[order[a]] < y[order[b]]
	})
	return order
}

func gather(X [][]float64, y []float64, order []int) ([][]float64, []float64) {
	gx := make([][]float64, len(order))
	gy := make([]float64, len(order))
	for i, r := range order {
		gx[i] = X[r]
		gy[i] = y[r]
	}
	return gx, gy
}
