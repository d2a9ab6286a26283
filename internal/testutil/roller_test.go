package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptedRollerReplaysThenFallsBack(t *testing.T) {
	r := NewScriptedRoller([]int{0, 150}, []float64{0.1})

	assert.Equal(t, 0, r.Intn(100))
	assert.Equal(t, 99, r.Intn(100), "out-of-range scripted value is clamped")
	assert.Equal(t, 99, r.Intn(100), "exhausted script returns the top roll")

	assert.Equal(t, 0.1, r.Float64())
	assert.Equal(t, 0.5, r.Float64())

	ints, floats := r.Remaining()
	assert.Zero(t, ints)
	assert.Zero(t, floats)
}
