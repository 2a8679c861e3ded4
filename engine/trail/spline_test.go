package trail

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatmullRomEndpointsAreExact(t *testing.T) {
	prev := mgl32.Vec3{-1.3, 0.7, 2.9}
	start := mgl32.Vec3{0.1, 0.2, 0.3}
	end := mgl32.Vec3{5.5, -4.25, 1.0 / 3.0}

	assert.Equal(t, start, CatmullRom(0, prev, start, end))
	assert.Equal(t, end, CatmullRom(1, prev, start, end))
}

func TestCatmullRomMidpointOnLine(t *testing.T) {
	got := CatmullRom(0.5, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0})
	assert.True(t, got.ApproxEqual(mgl32.Vec3{0.5, 0, 0}), "got %v", got)
}

func TestInterpolate(t *testing.T) {
	prev1 := mgl32.Vec3{0, 0, 0}
	prev0 := mgl32.Vec3{1, 0, 0}
	pos := mgl32.Vec3{2, 1, 0}

	t.Run("ends exactly at pos", func(t *testing.T) {
		out := Interpolate(4, prev1, prev0, pos)
		require.Len(t, out, 4)
		assert.Equal(t, pos, out[3])
		for k := 1; k < 4; k++ {
			assert.True(t, out[k-1].ApproxEqual(CatmullRom(float32(k)/4, prev1, prev0, pos)))
		}
	})

	t.Run("single sample", func(t *testing.T) {
		assert.Equal(t, []mgl32.Vec3{pos}, Interpolate(1, prev1, prev0, pos))
	})

	t.Run("no samples", func(t *testing.T) {
		assert.Nil(t, Interpolate(0, prev1, prev0, pos))
	})
}

func TestInterpolateLinear(t *testing.T) {
	out := InterpolateLinear(4, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{4, 0, 0})
	require.Len(t, out, 4)
	for i, p := range out {
		assert.InDelta(t, float32(i+1), p.X(), 1e-6)
	}
	assert.Equal(t, mgl32.Vec3{4, 0, 0}, out[3])
}
