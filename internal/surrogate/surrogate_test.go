package surrogate

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"goparam/domain/core"
	"goparam/domain/run"
	"goparam/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticRuns(n int, seed int64) run.Collection {
	r := rand.New(rand.NewSource(seed))
	modes := []string{"global", "hybrid", "local"}
	bonus := map[string]float64{"global": 0, "hybrid": 0.25, "local": 0.05}
	out := make(run.Collection, n)
	for i := range out {
		mode := modes[i%3]
		chunk := float64(256 * (1 + i%4))
		score := 0.4 + bonus[mode] - math.Abs(chunk-512)/5000 + (r.Float64()-0.5)*0.01
		out[i] = run.Record{
			Label:   string(rune('a' + i%26)),
			Params:  map[string]run.Value{"mode": run.Category(mode), "chunk": run.Number(chunk)},
			Metrics: map[string]float64{"f1": score},
		}
	}
	return out
}

func encode(t *testing.T, rs run.Collection) (*features.Table, []float64) {
	t.Helper()
	rows, y := rs.WithTarget("f1")
	table, err := features.Encode(rows, rows.ParamNames())
	require.NoError(t, err)
	return table, y
}

func TestBuildTree_StepFunction(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{0, 0, 1, 1}
	tree := buildTree(X, y, []int{0, 1, 2, 3}, 3)

	root := tree.Nodes[0]
	assert.False(t, root.Leaf)
	assert.Equal(t, 2.5, root.Threshold)
	for i, x := range X {
		assert.Equal(t, y[i], tree.Predict(x))
	}
	assert.Equal(t, 1, tree.Depth())
}

func TestBuildTree_ConstantTargetIsLeaf(t *testing.T) {
	tree := buildTree([][]float64{{1}, {2}}, []float64{3, 3}, []int{0, 1}, 4)
	require.Len(t, tree.Nodes, 1)
	assert.Equal(t, 3.0, tree.Nodes[0].Value)
}

func TestSizeFor(t *testing.T) {
	e, d := SizeFor(KindForest, 3)
	assert.Equal(t, 50, e)
	assert.Equal(t, 2, d)

	e, d = SizeFor(KindForest, 18)
	assert.Equal(t, 270, e)
	assert.Equal(t, 5, d)

	e, d = SizeFor(KindBoosted, 100)
	assert.Equal(t, 300, e)
	assert.Equal(t, 4, d)
}

func TestTrain_DeterministicAndPermutationInvariant(t *testing.T) {
	rs := syntheticRuns(24, 1)
	table, y := encode(t, rs)

	a, err := Train(context.Background(), table, y, DefaultOptions())
	require.NoError(t, err)
	b, err := Train(context.Background(), table, y, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a.Predictions, b.Predictions)
	assert.Equal(t, a.Summary, b.Summary)

	shuffled := make(run.Collection, len(rs))
	perm := rand.New(rand.NewSource(9)).Perm(len(rs))
	for i, p := range perm {
		shuffled[i] = rs[p]
	}
	ptable, py := encode(t, shuffled)
	c, err := Train(context.Background(), ptable, py, DefaultOptions())
	require.NoError(t, err)

	for i, p := range perm {
		assert.Equal(t, a.Predictions[p], c.Predictions[i])
	}
	assert.Equal(t, a.Baseline, c.Baseline)
	assert.Equal(t, a.Summary.CVR2, c.Summary.CVR2)
	assert.Equal(t, a.Summary.CVR2Std, c.Summary.CVR2Std)
}

func TestTrain_FitsSignal(t *testing.T) {
	for _, kind := range []string{"rf", "gbt"} {
		t.Run(kind, func(t *testing.T) {
			table, y := encode(t, syntheticRuns(36, 2))
			opts := DefaultOptions()
			opts.ModelKind = kind

			fit, err := Train(context.Background(), table, y, opts)
			require.NoError(t, err)
			assert.Equal(t, kind, fit.Summary.Kind)
			assert.True(t, fit.Summary.HasCV)
			assert.Greater(t, fit.Summary.CVR2, 0.5)
			assert.GreaterOrEqual(t, fit.Summary.CVR2Std, 0.0)
			assert.Less(t, fit.Summary.CVR2Std, 0.5)

			for i := range y {
				assert.InDelta(t, y[i], fit.Predictions[i], 0.06)
			}
		})
	}
}

func TestTrain_SmallDataLowConfidence(t *testing.T) {
	table, y := encode(t, syntheticRuns(3, 3))
	fit, err := Train(context.Background(), table, y, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, fit.Summary.LowConfidence)
	assert.False(t, fit.Summary.HasCV)
	assert.NotEmpty(t, fit.Outcome.Warnings)
}

func TestTrain_UnknownKindFallsBack(t *testing.T) {
	table, y := encode(t, syntheticRuns(6, 4))
	opts := DefaultOptions()
	opts.ModelKind = "catboost"

	fit, err := Train(context.Background(), table, y, opts)
	require.NoError(t, err)
	assert.Equal(t, string(KindForest), fit.Summary.Kind)
	assert.Contains(t, fit.Outcome.Warnings[0], "catboost")
}

func TestTrain_TooFewRows(t *testing.T) {
	table, y := encode(t, syntheticRuns(1, 5))
	_, err := Train(context.Background(), table, y, DefaultOptions())
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestEnsemble_PredictMatchesModel(t *testing.T) {
	table, y := encode(t, syntheticRuns(12, 6))
	fit, err := Train(context.Background(), table, y, DefaultOptions())
	require.NoError(t, err)

	ens := fit.Model.Ensemble()
	assert.Equal(t, table.NumCols(), ens.NumFeatures)
	for i, row := range table.Rows {
		assert.Equal(t, fit.Predictions[i], ens.Predict(row))
	}
}
