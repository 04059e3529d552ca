package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcome_Warn(t *testing.T) {
	o := Success()
	o.Warn("weak signal")
	assert.Equal(t, StatusWarning, o.Status)
	assert.Equal(t, []string{"weak signal"}, o.Warnings)
	assert.True(t, o.Ran())

	d := Declined("too few rows")
	d.Warn("treatment override ignored")
	assert.Equal(t, StatusDeclined, d.Status)
	assert.False(t, d.Ran())
}
