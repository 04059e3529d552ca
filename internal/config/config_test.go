package config

import (
	"testing"
	"time"

	"goparam/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "llm_f1", cfg.Analysis.Target)
	assert.Equal(t, int64(42), cfg.Analysis.Seed)
	assert.Equal(t, 100, cfg.Analysis.Simulations)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GOPARAM_TARGET", "graph_mrr")
	t.Setenv("GOPARAM_SEED", "7")
	t.Setenv("GOPARAM_REFUTE_PASS_RATIO", "0.25")
	t.Setenv("GOPARAM_TIMEOUT", "30s")
	t.Setenv("GOPARAM_CANDIDATES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "graph_mrr", cfg.Analysis.Target)
	assert.Equal(t, int64(7), cfg.Analysis.Seed)
	assert.Equal(t, 0.25, cfg.Analysis.PassRatio)
	assert.Equal(t, 30*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, 5, cfg.Analysis.Candidates)
}

func TestLoad_InvalidSubset(t *testing.T) {
	t.Setenv("GOPARAM_SUBSET_FRACTION", "1.5")
	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
