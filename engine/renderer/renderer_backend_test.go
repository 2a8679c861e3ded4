package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMSAA(t *testing.T) {
	tests := []struct {
		samples int
		want    MSAASampleCount
	}{
		{0, MSAAOff},
		{1, MSAAOff},
		{4, MSAA4x},
		{8, MSAA8x},
		{16, MSAA16x},
	}
	for _, tt := range tests {
		got, err := ParseMSAA(tt.samples)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseMSAA(2)
	assert.ErrorContains(t, err, "unsupported msaa sample count 2")
}

func TestBuilderOptions(t *testing.T) {
	r := &renderer{}
	WithPresentMode(PresentModeUncapped)(r)
	WithMSAA(MSAAOff)(r)
	WithForceSoftwareRenderer(true)(r)

	require.NotNil(t, r.pendingPresentMode)
	assert.Equal(t, PresentModeUncapped, *r.pendingPresentMode)
	require.NotNil(t, r.pendingMSAA)
	assert.Equal(t, MSAAOff, *r.pendingMSAA)
	assert.True(t, r.forceFallbackAdapter)
}
