package trail

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateRibbon appends samples to a single trail in one batch and runs UpdateVertex.
func generateRibbon(t *testing.T, nodeStep int, samples []mgl32.Vec3, look Appearance) (SoftwareBackend, RibbonGenerator, []GPUVertex) {
	t.Helper()
	return generateRibbonFrom(t, frontView(), nodeStep, samples, look)
}

func generateRibbonFrom(t *testing.T, view View, nodeStep int, samples []mgl32.Vec3, look Appearance) (SoftwareBackend, RibbonGenerator, []GPUVertex) {
	t.Helper()
	backend := newTestBackend(t)
	s := newTestStore(t, backend, 1, 1, 8)
	ctx := newTestFrame(t, backend, s, len(samples), 0.5, 0.5, view)

	engine, err := NewAppendEngine(backend, s, len(samples))
	require.NoError(t, err)
	defer func() { _ = engine.Release() }()
	batch := NewBatch(1, len(samples))
	for _, p := range samples {
		require.NoError(t, batch.Add(0, p))
	}
	require.NoError(t, engine.Append(batch, ctx.Params))

	list, err := NewIndexList(backend, "test_all", 1)
	require.NoError(t, err)
	require.NoError(t, list.StageIdentity(backend, 1))

	gen, err := NewRibbonGenerator(backend, s, 0, LodSetting{NodeStep: nodeStep, Material: "test"}, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gen.Release() })

	require.NoError(t, gen.Stage(ctx, look))
	require.NoError(t, gen.Generate(ctx, list))
	return backend, gen, readVertices(t, backend, gen.Vertices())
}

func lineSamples(n int) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, n)
	for i := range out {
		out[i] = mgl32.Vec3{float32(i), 0, 10}
	}
	return out
}

var whiteRamp = Appearance{
	StartWidth: 1,
	EndWidth:   0.2,
	StartColor: mgl32.Vec4{1, 1, 1, 1},
	EndColor:   mgl32.Vec4{1, 1, 1, 0},
}

func TestRibbonVerticesSymmetricAndTapered(t *testing.T) {
	_, gen, vertices := generateRibbon(t, 1, lineSamples(5), whiteRamp)

	require.Equal(t, 8, gen.NodesPerTrailWithLod())
	require.Len(t, vertices, 16)

	prevWidth := float32(2)
	for k := range 5 {
		left := mgl32.Vec3(vertices[k*2].Position)
		right := mgl32.Vec3(vertices[k*2+1].Position)

		// newest node first
		center := left.Add(right).Mul(0.5)
		assert.True(t, center.ApproxEqualThreshold(mgl32.Vec3{float32(4 - k), 0, 10}, 1e-5), "slot %d center %v", k, center)

		width := left.Sub(right).Len()
		assert.Less(t, width, prevWidth, "slot %d", k)
		prevWidth = width

		rate := float32(k) / 4
		assert.InDelta(t, 1+(0.2-1)*rate, width, 1e-4)
		assert.InDelta(t, rate, vertices[k*2].UV[0], 1e-6)
		assert.Equal(t, float32(0), vertices[k*2].UV[1])
		assert.Equal(t, float32(1), vertices[k*2+1].UV[1])
		assert.InDelta(t, 1-rate, vertices[k*2].Color[3], 1e-6)
	}
}

func TestRibbonInvalidSlotsCollapseOntoOldestNode(t *testing.T) {
	_, _, vertices := generateRibbon(t, 1, lineSamples(3), whiteRamp)

	oldest := [3]float32{0, 0, 10}
	for k := 3; k < 8; k++ {
		assert.Equal(t, oldest, vertices[k*2].Position, "slot %d", k)
		assert.Equal(t, oldest, vertices[k*2+1].Position, "slot %d", k)
	}
}

func TestRibbonNodeStepSkipsNodes(t *testing.T) {
	_, gen, vertices := generateRibbon(t, 2, lineSamples(8), whiteRamp)

	require.Equal(t, 4, gen.NodesPerTrailWithLod())
	require.Len(t, vertices, 8)
	for k := range 4 {
		center := mgl32.Vec3(vertices[k*2].Position).Add(vertices[k*2+1].Position).Mul(0.5)
		assert.True(t, center.ApproxEqualThreshold(mgl32.Vec3{float32(7 - 2*k), 0, 10}, 1e-5), "slot %d center %v", k, center)
	}
}

func TestRibbonFacesOrthographicCamera(t *testing.T) {
	backend := newTestBackend(t)
	s := newTestStore(t, backend, 1, 1, 4)
	view := frontView()
	view.Orthographic = true
	ctx := newTestFrame(t, backend, s, 2, 1, 1, view)
	appendHeads(t, backend, s, ctx, []mgl32.Vec3{{0, 0, 10}})
	appendHeads(t, backend, s, ctx, []mgl32.Vec3{{0, 1, 10}})

	list, err := NewIndexList(backend, "test_all", 1)
	require.NoError(t, err)
	require.NoError(t, list.StageIdentity(backend, 1))

	gen, err := NewRibbonGenerator(backend, s, 0, LodSetting{NodeStep: 1}, false)
	require.NoError(t, err)
	defer func() { _ = gen.Release() }()
	require.NoError(t, gen.Stage(ctx, Appearance{StartWidth: 2, EndWidth: 2}))
	require.NoError(t, gen.Generate(ctx, list))

	// tangent +Y, to-camera -Z: the ribbon spreads along X
	vertices := readVertices(t, backend, gen.Vertices())
	side := mgl32.Vec3(vertices[0].Position).Sub(vertices[1].Position)
	assert.InDelta(t, 2, math32.Abs(side.X()), 1e-5)
	assert.InDelta(t, 0, side.Z(), 1e-5)
}

func TestRibbonCameraOnNodeStaysFinite(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 1000)
	view := NewView(mgl32.Vec3{4, 0, 10}, mgl32.Vec3{4, 0, 20}, mgl32.Vec3{0, 1, 0}, proj, false)
	_, _, vertices := generateRibbonFrom(t, view, 1, lineSamples(5), whiteRamp)

	for i, v := range vertices {
		for _, c := range v.Position {
			require.False(t, math32.IsNaN(c), "vertex %d position %v", i, v.Position)
		}
	}
	// the side vector degenerates, so both edges sit on the node
	assert.Equal(t, [3]float32{4, 0, 10}, vertices[0].Position)
	assert.Equal(t, vertices[0].Position, vertices[1].Position)
}

func TestNodeStepFor(t *testing.T) {
	tests := []struct {
		step, nodes, want int
	}{
		{1, 8, 1},
		{3, 8, 3},
		{0, 8, 1},
		{-2, 8, 1},
		{8, 8, 1},
		{12, 8, 1},
		{1, 1, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NodeStepFor(tt.step, tt.nodes), "step %d nodes %d", tt.step, tt.nodes)
	}
}

func TestRibbonGeneratorReleased(t *testing.T) {
	backend := newTestBackend(t)
	s := newTestStore(t, backend, 1, 1, 4)
	gen, err := NewRibbonGenerator(backend, s, 0, LodSetting{NodeStep: 1}, false)
	require.NoError(t, err)
	require.NoError(t, gen.Release())

	ctx := newTestFrame(t, backend, s, 1, 1, 1, frontView())
	assert.ErrorIs(t, gen.Stage(ctx, whiteRamp), ErrReleased)
	assert.ErrorIs(t, gen.Draw(backend), ErrReleased)
}
