package trail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateUninitialized, StateReady, true},
		{StateReady, StateAppending, true},
		{StateAppending, StateCulling, true},
		{StateCulling, StateClassifyingLOD, true},
		{StateClassifyingLOD, StateGeneratingRibbons, true},
		{StateGeneratingRibbons, StateDrawing, true},
		{StateDrawing, StateReady, true},
		{StateReady, StateUninitialized, true},
		{StateGeneratingRibbons, StateAppending, true},

		{StateUninitialized, StateAppending, false},
		{StateReady, StateCulling, false},
		{StateAppending, StateDrawing, false},
		{StateDrawing, StateAppending, false},
		{StateReleased, StateReady, false},
		{StateReleased, StateUninitialized, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestReleasedReachableFromEveryState(t *testing.T) {
	for s := StateUninitialized; s <= StateReleased; s++ {
		assert.True(t, CanTransition(s, StateReleased), s.String())
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ClassifyingLOD", StateClassifyingLOD.String())
	assert.Equal(t, "Unknown", State(99).String())
}
