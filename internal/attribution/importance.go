package attribution

import (
	"math"
	"sort"

	"goparam/domain/analysis"

	"gonum.org/v1/gonum/stat"
)

// Ranking is the mean absolute contribution per feature, descending, with
// ties broken by feature name.
func (r *Result) Ranking() []analysis.FeatureImportance {
	out := make([]analysis.FeatureImportance, len(r.Features))
	for j, name := range r.Features {
		sum := 0.0
		for _, i := range r.order {
			sum += math.Abs(r.Values[i][j])
		}
		out[j] = analysis.FeatureImportance{Feature: name, Importance: sum / float64(len(r.order))}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Importance != out[b].Importance {
			return out[a].Importance > out[b].Importance
		}
		return out[a].Feature < out[b].Feature
	})
	return out
}

// ByParameter folds the indicator columns of each parameter back together:
// importance is the mean absolute value of the summed signed contributions.
func (r *Result) ByParameter() []analysis.ParamImportance {
	groups := make(map[string][]int)
	var names []string
	for j, p := range r.Params {
		if _, ok := groups[p]; !ok {
			names = append(names, p)
		}
		groups[p] = append(groups[p], j)
	}

	out := make([]analysis.ParamImportance, 0, len(names))
	for _, p := range names {
		sum := 0.0
		for _, i := range r.order {
			s := 0.0
			for _, j := range groups[p] {
				s += r.Values[i][j]
			}
			sum += math.Abs(s)
		}
		out = append(out, analysis.ParamImportance{Param: p, Importance: sum / float64(len(r.order))})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Importance != out[b].Importance {
			return out[a].Importance > out[b].Importance
		}
		return out[a].Param < out[b].Param
	})
	return out
}

// Dependence returns (value, contribution) pairs in row order for the top n
// ranked features, each with its interacting feature.
func (r *Result) Dependence(n int) []analysis.Dependence {
	ranking := r.Ranking()
	if n > len(ranking) {
		n = len(ranking)
	}
	out := make([]analysis.Dependence, 0, n)
	for _, fi := range ranking[:n] {
		j := r.index(fi.Feature)
		out = append(out, analysis.Dependence{
			Feature:       fi.Feature,
			Values:        r.table.Column(j),
			Contributions: r.column(j),
			InteractsWith: r.Interaction(j),
		})
	}
	return out
}

// Interaction picks the feature whose values best explain what is left of
// feature j's contributions after a straight-line fit on its own values:
// the highest absolute Pearson correlation with that residual. Columns of
// the same parameter are skipped; ties go to the first name.
func (r *Result) Interaction(j int) string {
	xj := r.table.Column(j)
	phi := r.column(j)
	residual := phi
	if !constant(xj) {
		alpha, beta := stat.LinearRegression(xj, phi, nil, false)
		residual = make([]float64, len(phi))
		for i := range phi {
			residual[i] = phi[i] - (alpha + beta*xj[i])
		}
	}
	if constant(residual) {
		return ""
	}

	candidates := make([]int, 0, len(r.Features))
	for k := range r.Features {
		if k != j && r.Params[k] != r.Params[j] {
			candidates = append(candidates, k)
		}
	}
	sort.Slice(candidates, func(a, b int) bool { return r.Features[candidates[a]] < r.Features[candidates[b]] })

	best, bestCorr := "", 0.0
	for _, k := range candidates {
		xk := r.table.Column(k)
		if constant(xk) {
			continue
		}
		c := math.Abs(stat.Correlation(xk, residual, nil))
		if math.IsNaN(c) {
			continue
		}
		if c > bestCorr+1e-12 {
			best, bestCorr = r.Features[k], c
		}
	}
	return best
}

// PartialDependence averages the prediction over all rows with feature j
// forced to each of its observed values.
func (r *Result) PartialDependence(j int) analysis.PartialDependence {
	grid := distinctSorted(r.table.Column(j))
	avg := make([]float64, len(grid))
	probe := make([]float64, r.table.NumCols())
	for g, v := range grid {
		sum := 0.0
		for _, i := range r.order {
			copy(probe, r.table.Rows[i])
			probe[j] = v
			sum += r.model.Predict(probe)
		}
		avg[g] = sum / float64(len(r.order))
	}
	return analysis.PartialDependence{Feature: r.Features[j], Grid: grid, Average: avg}
}

// Partial returns partial dependence for the top n ranked features
func (r *Result) Partial(n int) []analysis.PartialDependence {
	ranking := r.Ranking()
	if n > len(ranking) {
		n = len(ranking)
	}
	out := make([]analysis.PartialDependence, 0, n)
	for _, fi := range ranking[:n] {
		out = append(out, r.PartialDependence(r.index(fi.Feature)))
	}
	return out
}

// RowSum is the total contribution of one row
func (r *Result) RowSum(i int) float64 {
	s := 0.0
	for _, v := range r.Values[i] {
		s += v
	}
	return s
}

func (r *Result) index(feature string) int {
	for j, f := range r.Features {
		if f == feature {
			return j
		}
	}
	return -1
}

func (r *Result) column(j int) []float64 {
	out := make([]float64, len(r.Values))
	for i, row := range r.Values {
		out[i] = row[j]
	}
	return out
}

func constant(xs []float64) bool {
	if len(xs) < 2 {
		return true
	}
	for _, v := range xs[1:] {
		if math.Abs(v-xs[0]) > 1e-12 {
			return false
		}
	}
	return true
}

func distinctSorted(xs []float64) []float64 {
	seen := make(map[float64]struct{}, len(xs))
	out := make([]float64, 0, len(xs))
	for _, v := range xs {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}
