// Package causal estimates the average effect of one binarised parameter on a
// target metric by linear backdoor adjustment over the remaining parameters.
package causal

import (
	"context"
	"fmt"

	"goparam/domain/analysis"
	"goparam/domain/core"
	"goparam/domain/run"
	"goparam/internal"
	"goparam/internal/features"
)

// MinRows is the fewest runs with a target value the estimator accepts
const MinRows = 6

// Options control the causal estimator
type Options struct {
	Treatment       string // optional override
	Seed            int64
	Simulations     int
	PassRatio       float64
	PlaceboRatio    float64
	SubsetFraction  float64
	Counterfactuals int
}

// DefaultOptions mirrors the engine defaults
func DefaultOptions() Options {
	return Options{
		Seed:            42,
		Simulations:     100,
		PassRatio:       0.5,
		PlaceboRatio:    0.5,
		SubsetFraction:  0.8,
		Counterfactuals: 5,
	}
}

// Estimate selects (or accepts) a treatment, regresses the target on it and
// the other parameters, and checks the estimate with refutations. Unmet
// preconditions decline the estimate instead of failing; only context
// cancellation is returned as an error.
func Estimate(ctx context.Context, records run.Collection, target string, opts Options) (*analysis.CausalEstimate, error) {
	logger := internal.DefaultLogger.With("causal")
	est := &analysis.CausalEstimate{Outcome: analysis.Success(), Target: target}

	rows, y := records.WithTarget(target)
	est.Rows = len(rows)
	if len(rows) < MinRows {
		est.Outcome = analysis.Declined(fmt.Sprintf("causal analysis needs at least %d runs with %q, have %d", MinRows, target, len(rows)))
		logger.Warn("%s", est.Outcome.Reason)
		return est, nil
	}

	t := selectTreatment(rows, y, opts.Treatment, &est.Outcome)
	if t == nil {
		est.Outcome = analysis.Declined("no parameter varies enough to serve as treatment")
		logger.Warn("%s", est.Outcome.Reason)
		return est, nil
	}
	est.Treatment, est.Rule, est.Treated = t.param, t.rule, t.treated()
	if est.Treated == 0 || est.Treated == len(rows) {
		est.Outcome = analysis.Declined(fmt.Sprintf("treatment %s puts every run in one group", t.rule))
		logger.Warn("%s", est.Outcome.Reason)
		return est, nil
	}

	names, cols := confounders(rows, t.param)
	est.Confounders = names
	p := problem{y: y, treatment: t.values, confounders: cols}
	fit := fitOLS(p.design(p.treatment), y)
	est.ATE = fit.coef[1]
	est.StdErr = fit.stdErr[1]
	est.PValue = fit.pValue(1)
	if fit.singular {
		est.Outcome.Warn(fmt.Sprintf("%v: standard error and p-value are inconclusive", core.ErrSingularMatrix))
	} else if fit.dof < 1 {
		est.Outcome.Warn(fmt.Sprintf("%d runs leave no residual degrees of freedom for %d confounders", len(rows), len(cols)))
	}
	logger.Info("treatment %s -> %s: ATE %+.4f (se %.4f, p %.4f, n=%d)", t.rule, target, est.ATE, est.StdErr, est.PValue, len(rows))

	refs, err := refute(ctx, p, est.ATE, opts)
	if err != nil {
		return nil, err
	}
	est.Refutations = refs
	for _, r := range refs {
		logger.Debug("refutation %s: new effect %.4f passed=%t", r.Method, r.NewEffect, r.Passed)
	}

	est.Counterfactuals = counterfactuals(rows, p, fit, opts.Counterfactuals)
	return est, nil
}

// confounders encodes every other parameter with the feature codec, dropping
// the first indicator of each categorical parameter as the reference level
// and any column without variation.
func confounders(rows run.Collection, treatment string) ([]string, [][]float64) {
	var others []string
	for _, n := range rows.ParamNames() {
		if n != treatment {
			others = append(others, n)
		}
	}
	if len(others) == 0 {
		return nil, nil
	}
	table, err := features.Encode(rows, others)
	if err != nil {
		return nil, nil
	}

	var names []string
	var cols [][]float64
	reference := make(map[string]bool)
	for j, c := range table.Columns {
		if c.Kind == features.ColumnIndicator && !reference[c.Param] {
			reference[c.Param] = true
			continue
		}
		col := table.Column(j)
		if constant(col) {
			continue
		}
		names = append(names, c.Name)
		cols = append(cols, col)
	}
	return names, cols
}

// counterfactuals predicts the first n runs under their observed and flipped
// treatment with the fitted linear model.
func counterfactuals(rows run.Collection, p problem, fit *olsFit, n int) []analysis.Counterfactual {
	if n > len(rows) {
		n = len(rows)
	}
	out := make([]analysis.Counterfactual, 0, n)
	for i := 0; i < n; i++ {
		row := []float64{1, p.treatment[i]}
		for _, c := range p.confounders {
			row = append(row, c[i])
		}
		observed := fit.predict(row)
		flipped := observed + fit.coef[1]*(1-2*p.treatment[i])
		out = append(out, analysis.Counterfactual{
			Label:     rows[i].Label,
			Treatment: p.treatment[i],
			Actual:    p.y[i],
			Observed:  observed,
			Flipped:   flipped,
			Delta:     flipped - observed,
		})
	}
	return out
}
