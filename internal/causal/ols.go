package causal

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// olsFit is an ordinary least squares fit with an intercept in column 0
type olsFit struct {
	coef     []float64
	stdErr   []float64 // zero when XᵀX is singular
	dof      int
	singular bool
}

// designMatrix prepends the intercept column to the given columns
func designMatrix(n int, columns ...[]float64) *mat.Dense {
	p := len(columns) + 1
	x := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		for j, col := range columns {
			x.Set(i, j+1, col[i])
		}
	}
	return x
}

// fitOLS regresses y on x. A singular XᵀX falls back to the minimum norm
// least squares solution via SVD, with standard errors reported as zero.
func fitOLS(x *mat.Dense, y []float64) *olsFit {
	n, p := x.Dims()
	yv := mat.NewVecDense(n, append([]float64(nil), y...))
	fit := &olsFit{dof: n - (p - 1) - 1, stdErr: make([]float64, p)}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		fit.singular = true
		var svd mat.SVD
		beta := mat.NewVecDense(p, nil)
		if svd.Factorize(x, mat.SVDThin) {
			svd.SolveVecTo(beta, yv, svd.Rank(1e-12))
		}
		fit.coef = beta.RawVector().Data
		return fit
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), yv)
	var beta mat.VecDense
	beta.MulVec(&inv, &xty)
	fit.coef = append([]float64(nil), beta.RawVector().Data...)

	var pred mat.VecDense
	pred.MulVec(x, &beta)
	ssr := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - pred.AtVec(i)
		ssr += r * r
	}
	mse := ssr / math.Max(float64(fit.dof), 1)
	for j := 0; j < p; j++ {
		if v := mse * inv.At(j, j); v > 0 {
			fit.stdErr[j] = math.Sqrt(v)
		}
	}
	return fit
}

// pValue is the two-sided t-test p-value for coefficient j
func (f *olsFit) pValue(j int) float64 {
	se := f.stdErr[j]
	if f.singular || se <= 0 || f.dof < 1 {
		return 1
	}
	t := math.Abs(f.coef[j] / se)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(f.dof)}
	return math.Min(1, 2*dist.Survival(t))
}

// predict evaluates the fitted linear model on one design row
func (f *olsFit) predict(row []float64) float64 {
	s := 0.0
	for j, c := range f.coef {
		s += c * row[j]
	}
	return s
}
