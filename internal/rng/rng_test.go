package rng

import (
	"context"
	"testing"

	"goparam/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.RNGPort = (*Source)(nil)

func TestNew_Reproducible(t *testing.T) {
	a := New("surrogate", 42)
	b := New("surrogate", 42)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Int63(), b.Int63())
	}
}

func TestDerive_NamesAreIndependent(t *testing.T) {
	assert.NotEqual(t, Derive("surrogate", 42), Derive("search", 42))
	assert.NotEqual(t, Derive("search", 42), Derive("search", 43))
	assert.GreaterOrEqual(t, Derive("causal", -1), int64(0))
}

func TestSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSource().SeededStream(ctx, "x", 1)
	require.Error(t, err)
}
