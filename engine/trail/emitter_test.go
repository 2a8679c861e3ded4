package trail

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchPositions(b *Batch, trail int) []mgl32.Vec3 {
	var out []mgl32.Vec3
	for i := range b.TrailSamples(trail) {
		out = append(out, b.nodes[i*b.trailCount+trail].Position)
	}
	return out
}

func TestEmitterGroupCatchUp(t *testing.T) {
	g := NewEmitterGroup(2, 4, WithEmitterColor(mgl32.Vec4{0, 1, 0, 1}))

	n, batch := g.Collect()
	assert.Equal(t, 0, n)
	assert.Nil(t, batch)

	positions := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {2, 1, 0}}
	var last *Batch
	for i, p := range positions {
		g.SetPosition(0, p)
		n, last = g.Collect()
		if i < 2 {
			assert.Equal(t, 1, n, "collect %d", i)
			assert.Equal(t, []mgl32.Vec3{p}, batchPositions(last, 0))
		}
	}

	require.Equal(t, 4, n)
	got := batchPositions(last, 0)
	assert.Equal(t, Interpolate(4, positions[0], positions[1], positions[2]), got)
	assert.Equal(t, positions[2], got[3])
	assert.Equal(t, 0, last.TrailSamples(1))
	assert.Equal(t, [4]float32{0, 1, 0, 1}, last.nodes[0].Color)
}

func TestEmitterGroupIgnoresUnknownEmitter(t *testing.T) {
	g := NewEmitterGroup(1, 2)
	g.SetPosition(3, mgl32.Vec3{1, 1, 1})
	n, _ := g.Collect()
	assert.Equal(t, 0, n)
}

func TestLinearEmitterCatchUpCount(t *testing.T) {
	tests := []struct {
		name string
		dt   float32
		want int
	}{
		{"below one sample", 0.01, 1},
		{"three samples", 0.35, 3},
		{"clamped", 5, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewLinearEmitter(4, WithInputRate(10))
			e.Move(mgl32.Vec3{0, 0, 0}, 0)
			n, _ := e.Collect()
			require.Equal(t, 1, n)

			e.Move(mgl32.Vec3{10, 0, 0}, tt.dt)
			n, batch := e.Collect()
			require.Equal(t, tt.want, n)
			got := batchPositions(batch, 0)
			assert.Equal(t, mgl32.Vec3{10, 0, 0}, got[len(got)-1])
		})
	}
}

func TestLinearEmitterMinNodeDistance(t *testing.T) {
	e := NewLinearEmitter(4, WithInputRate(10), WithMinNodeDistance(1))
	e.Move(mgl32.Vec3{0, 0, 0}, 0)
	e.Collect()

	e.Move(mgl32.Vec3{0.5, 0, 0}, 0.1)
	n, batch := e.Collect()
	assert.Equal(t, 0, n)
	assert.Nil(t, batch)

	// 4 samples of 0.75 each; every other one is dropped
	e.Move(mgl32.Vec3{3, 0, 0}, 1)
	n, batch = e.Collect()
	require.Equal(t, 2, n)
	assert.Equal(t, []mgl32.Vec3{{1.5, 0, 0}, {3, 0, 0}}, batchPositions(batch, 0))
}

func TestLinearEmitterNothingPending(t *testing.T) {
	e := NewLinearEmitter(2)
	n, batch := e.Collect()
	assert.Equal(t, 0, n)
	assert.Nil(t, batch)
}

func TestEmitterGroupResize(t *testing.T) {
	g := NewEmitterGroup(2, 2)
	g.SetPosition(0, mgl32.Vec3{1, 0, 0})
	g.SetPosition(1, mgl32.Vec3{0, 1, 0})

	g.Resize(3, 4)
	assert.Equal(t, 3, g.TrailCount())
	g.SetPosition(2, mgl32.Vec3{0, 0, 1})

	n, batch := g.Collect()
	require.Equal(t, 3, n)
	assert.Equal(t, 3, batch.TrailCount())
	assert.Equal(t, 4, batch.InputCountMax())
	assert.Equal(t, []mgl32.Vec3{{1, 0, 0}}, batchPositions(batch, 0))

	g.Resize(1, 4)
	g.SetPosition(1, mgl32.Vec3{5, 5, 5})
	n, _ = g.Collect()
	assert.Equal(t, 0, n)
}

func TestLinearEmitterResize(t *testing.T) {
	e := NewLinearEmitter(2, WithInputRate(100))
	e.Move(mgl32.Vec3{}, 0)
	_, _ = e.Collect()

	e.Resize(8, 6)
	e.Move(mgl32.Vec3{10, 0, 0}, 1)
	n, batch := e.Collect()
	assert.Equal(t, 6, n)
	assert.Equal(t, 1, batch.TrailCount())
}
