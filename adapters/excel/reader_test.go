package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"goparam/domain/run"
	"goparam/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataReader_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.csv")
	content := "label,timestamp,query_mode,chunk_size,llm_f1,metric_latency,notes\n" +
		"a,2025-01-06T09:00:00Z,hybrid,512,0.71,1.5,\n" +
		",2025-01-06 10:00:00,local,,0.52,n/a,retry\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	reader := NewDataReader(path)
	assert.Equal(t, path, reader.Describe())
	records, err := reader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	a := records[0]
	assert.Equal(t, "a", a.Label)
	assert.Equal(t, run.Category("hybrid"), a.Params["query_mode"])
	assert.Equal(t, run.Number(512), a.Params["chunk_size"])
	assert.Equal(t, 0.71, a.Metrics["llm_f1"])
	assert.Equal(t, 1.5, a.Metrics["latency"])
	assert.NotContains(t, a.Params, "notes")
	assert.False(t, a.Timestamp.IsZero())

	b := records[1]
	assert.Equal(t, "row_3", b.Label)
	assert.NotContains(t, b.Params, "chunk_size")
	assert.NotContains(t, b.Metrics, "latency")
	assert.Equal(t, run.Category("retry"), b.Params["notes"])
}

func TestDataReader_MissingFile(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "nope.xlsx")).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDataReader_HeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, []byte("label,llm_f1\n"), 0o644))
	_, err := NewDataReader(path).Load(context.Background())
	assert.Error(t, err)
}

func TestWriteRuns_ReadBack(t *testing.T) {
	cfg := testkit.DefaultRunConfig()
	cfg.Random = 12
	runs := testkit.NewRunGenerator(cfg).Generate()
	path := filepath.Join(t.TempDir(), "runs.xlsx")

	require.NoError(t, WriteRuns(path, runs))
	records, err := NewDataReader(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, len(runs))

	for i, got := range records {
		want := runs[i]
		assert.Equal(t, want.Label, got.Label)
		assert.Equal(t, want.TestCases, got.TestCases)
		assert.True(t, want.Timestamp.Time().Equal(got.Timestamp.Time()))
		for name, v := range want.Params {
			assert.True(t, v.Equal(got.Params[name]), "%s: %v != %v", name, v, got.Params[name])
		}
		for name, m := range want.Metrics {
			assert.InDelta(t, m, got.Metrics[name], 1e-9, name)
		}
	}
}
