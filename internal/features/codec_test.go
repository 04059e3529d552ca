package features

import (
	"testing"

	"goparam/domain/core"
	"goparam/domain/run"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records() run.Collection {
	return run.Collection{
		{Label: "r1", Params: map[string]run.Value{"mode": run.Category("local"), "chunk": run.Number(256)}, Metrics: map[string]float64{"f1": 0.4}},
		{Label: "r2", Params: map[string]run.Value{"mode": run.Category("hybrid"), "chunk": run.Number(1024)}, Metrics: map[string]float64{"f1": 0.6}},
		{Label: "r3", Params: map[string]run.Value{"mode": run.Category("local")}, Metrics: map[string]float64{"f1": 0.5}},
		{Label: "r4", Params: map[string]run.Value{"chunk": run.Number(512)}, Metrics: map[string]float64{"f1": 0.45}},
	}
}

func TestEncode_OneHotAndMedian(t *testing.T) {
	table, err := Encode(records(), []string{"chunk", "mode"})
	require.NoError(t, err)

	assert.Equal(t, []string{"chunk", "mode=hybrid", "mode=local"}, table.Names())
	assert.Equal(t, []string{"r1", "r2", "r3", "r4"}, table.Labels)

	// median of 256, 1024, 512
	assert.Equal(t, []float64{512, 0, 1}, table.Rows[2])
	assert.Equal(t, []float64{512, 0, 0}, table.Rows[3])
	assert.Equal(t, []float64{1024, 1, 0}, table.Rows[1])
}

func TestEncode_MedianIndependentOfOrder(t *testing.T) {
	rs := records()
	reversed := run.Collection{rs[3], rs[2], rs[1], rs[0]}

	a, err := Encode(rs, []string{"chunk", "mode"})
	require.NoError(t, err)
	b, err := Encode(reversed, []string{"chunk", "mode"})
	require.NoError(t, err)

	assert.Equal(t, a.Columns, b.Columns)
	assert.Equal(t, a.Rows[2], b.Rows[1])
}

func TestEncodeConfig_UnseenCategory(t *testing.T) {
	table, err := Encode(records(), []string{"chunk", "mode"})
	require.NoError(t, err)

	row := table.EncodeConfig(map[string]run.Value{"mode": run.Category("global")})
	assert.Equal(t, []float64{512, 0, 0}, row)
}

func TestEncode_Failures(t *testing.T) {
	_, err := Encode(nil, []string{"mode"})
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	_, err = Encode(records(), []string{"absent"})
	assert.ErrorIs(t, err, core.ErrNoFeatures)
}

func TestTable_ParamColumnsAndSubset(t *testing.T) {
	table, err := Encode(records(), []string{"chunk", "mode"})
	require.NoError(t, err)

	groups := table.ParamColumns()
	assert.Equal(t, []int{0}, groups["chunk"])
	assert.Equal(t, []int{1, 2}, groups["mode"])

	sub := table.Subset([]int{1, 3})
	assert.Equal(t, 2, sub.NumRows())
	assert.Equal(t, "r4", sub.Labels[1])
	assert.Equal(t, []float64{1024, 512}, sub.Column(0))
}
