package attribution

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"

	"goparam/domain/run"
	"goparam/internal/features"
	"goparam/internal/surrogate"
	"goparam/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedModel wraps a hand-built ensemble
type fixedModel struct {
	ens *surrogate.Ensemble
}

func (m fixedModel) Kind() surrogate.Kind                 { return surrogate.KindForest }
func (m fixedModel) Fit(X [][]float64, y []float64) error { return nil }
func (m fixedModel) Predict(x []float64) float64          { return m.ens.Predict(x) }
func (m fixedModel) Ensemble() *surrogate.Ensemble        { return m.ens }
func (m fixedModel) PredictAll(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = m.Predict(x)
	}
	return out
}

func andTree() surrogate.Tree {
	return surrogate.Tree{Nodes: []surrogate.Node{
		{Feature: 0, Threshold: 0.5, Left: 1, Right: 2},
		{Leaf: true, Value: 0},
		{Feature: 1, Threshold: 0.5, Left: 3, Right: 4},
		{Leaf: true, Value: 0},
		{Leaf: true, Value: 1},
	}}
}

func twoColumnTable(rows ...[]float64) *features.Table {
	return &features.Table{
		Columns: []features.Column{{Name: "a", Param: "a"}, {Name: "b", Param: "b"}},
		Rows:    rows,
		Labels:  make([]string, len(rows)),
		Params:  []string{"a", "b"},
	}
}

func TestAttribute_AndGameSplitsEvenly(t *testing.T) {
	model := fixedModel{ens: &surrogate.Ensemble{Trees: []surrogate.Tree{andTree()}, Scale: 1, NumFeatures: 2}}
	table := twoColumnTable([]float64{1, 1}, []float64{0, 0})

	res, err := Attribute(context.Background(), model, table)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, res.Baseline, 1e-12)
	assert.InDelta(t, 0.25, res.Values[0][0], 1e-12)
	assert.InDelta(t, 0.25, res.Values[0][1], 1e-12)
	assert.InDelta(t, -0.25, res.Values[1][0], 1e-12)
	assert.InDelta(t, -0.25, res.Values[1][1], 1e-12)
}

func TestAttribute_UnusedFeatureGetsZero(t *testing.T) {
	stump := surrogate.Tree{Nodes: []surrogate.Node{
		{Feature: 0, Threshold: 0.5, Left: 1, Right: 2},
		{Leaf: true, Value: 2},
		{Leaf: true, Value: 6},
	}}
	model := fixedModel{ens: &surrogate.Ensemble{Trees: []surrogate.Tree{stump, stump}, Base: 1, Scale: 0.5, NumFeatures: 2}}
	table := twoColumnTable([]float64{0, 3}, []float64{1, 7}, []float64{1, 9}, []float64{0, 1})

	res, err := Attribute(context.Background(), model, table)
	require.NoError(t, err)
	for i := range table.Rows {
		assert.Equal(t, 0.0, res.Values[i][1])
		assert.InDelta(t, res.Predictions[i]-res.Baseline, res.Values[i][0], 1e-12)
	}
}

func runs(n int, seed int64) run.Collection {
	r := rand.New(rand.NewSource(seed))
	modes := []string{"global", "hybrid", "local"}
	bonus := map[string]float64{"global": 0, "hybrid": 0.25, "local": 0.05}
	chunkBonus := map[float64]float64{256: -0.06, 512: 0.12, 1024: -0.03}
	chunks := []float64{256, 512, 1024}
	out := make(run.Collection, n)
	for i := range out {
		mode := modes[i%3]
		chunk := chunks[(i/3)%3]
		topK := float64(5 + 5*(i%4))
		score := 0.45 + bonus[mode] + chunkBonus[chunk] + 0.002*topK + (r.Float64()-0.5)*0.02
		out[i] = run.Record{
			Params: map[string]run.Value{
				"mode":  run.Category(mode),
				"chunk": run.Number(chunk),
				"top_k": run.Number(topK),
			},
			Metrics: map[string]float64{"f1": score},
		}
	}
	return out
}

func attribute(t *testing.T, rs run.Collection, kind string) *Result {
	t.Helper()
	rows, y := rs.WithTarget("f1")
	table, err := features.Encode(rows, rows.ParamNames())
	require.NoError(t, err)
	opts := surrogate.DefaultOptions()
	opts.ModelKind = kind
	fit, err := surrogate.Train(context.Background(), table, y, opts)
	require.NoError(t, err)
	res, err := Attribute(context.Background(), fit.Model, table)
	require.NoError(t, err)
	return res
}

func TestAttribute_EfficiencyHolds(t *testing.T) {
	for _, kind := range []string{"rf", "gbt"} {
		t.Run(kind, func(t *testing.T) {
			res := attribute(t, runs(30, 1), kind)
			for i := range res.Values {
				assert.InDelta(t, res.Predictions[i]-res.Baseline, res.RowSum(i), 1e-6)
			}
		})
	}
}

func TestAttribute_RankingPermutationInvariant(t *testing.T) {
	rs := runs(30, 2)
	shuffled := make(run.Collection, len(rs))
	for i, p := range rand.New(rand.NewSource(5)).Perm(len(rs)) {
		shuffled[i] = rs[p]
	}

	a := attribute(t, rs, "rf")
	b := attribute(t, shuffled, "rf")
	assert.Equal(t, a.Ranking(), b.Ranking())
	assert.Equal(t, a.ByParameter(), b.ByParameter())
	assert.Equal(t, a.Baseline, b.Baseline)
}

func TestAttribute_Reproducible(t *testing.T) {
	rs := runs(24, 3)
	a, err := json.Marshal(attribute(t, rs, "gbt").Values)
	require.NoError(t, err)
	b, err := json.Marshal(attribute(t, rs, "gbt").Values)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestResult_ByParameterAndDependence(t *testing.T) {
	res := attribute(t, runs(36, 4), "rf")

	byParam := res.ByParameter()
	require.Len(t, byParam, 3)
	assert.Equal(t, "mode", byParam[0].Param)
	assert.Equal(t, "top_k", byParam[2].Param)

	ranking := res.Ranking()
	for k := 1; k < len(ranking); k++ {
		assert.GreaterOrEqual(t, ranking[k-1].Importance, ranking[k].Importance)
	}

	deps := res.Dependence(2)
	require.Len(t, deps, 2)
	for _, d := range deps {
		assert.Len(t, d.Values, 36)
		assert.Len(t, d.Contributions, 36)
		if d.InteractsWith != "" {
			assert.NotEqual(t, res.Params[res.index(d.Feature)], res.Params[res.index(d.InteractsWith)])
		}
	}

	pd := res.Partial(1)
	require.Len(t, pd, 1)
	assert.Equal(t, len(pd[0].Grid), len(pd[0].Average))
}

func TestAttribute_RecoversGeneratorRanking(t *testing.T) {
	for _, random := range []int{0, 30} {
		for _, kind := range []surrogate.Kind{surrogate.KindForest, surrogate.KindBoosted} {
			cfg := testkit.DefaultRunConfig()
			cfg.Random = random
			gen := testkit.NewRunGenerator(cfg)
			records := gen.Generate()
			rows, y := records.WithTarget("llm_f1")
			table, err := features.Encode(rows, rows.ParamNames())
			require.NoError(t, err)

			opts := surrogate.DefaultOptions()
			opts.ModelKind = string(kind)
			fit, err := surrogate.Train(context.Background(), table, y, opts)
			require.NoError(t, err)
			res, err := Attribute(context.Background(), fit.Model, table)
			require.NoError(t, err)

			var got []string
			for _, p := range res.ByParameter() {
				got = append(got, p.Param)
			}
			assert.Equal(t, gen.ExpectedRanking(), got, "kind=%s random=%d", kind, random)
		}
	}
}
