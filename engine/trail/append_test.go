package trail

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendRingBufferOverwrite(t *testing.T) {
	backend := newTestBackend(t)
	s := newTestStore(t, backend, 2, 1, 4)
	engine, err := NewAppendEngine(backend, s, 1)
	require.NoError(t, err)
	defer func() { _ = engine.Release() }()

	const frames = 6
	for i := range frames {
		ctx := newTestFrame(t, backend, s, 1, float32(i+1)*0.1, float32(i)*0.1, View{})
		batch := NewBatch(2, 1)
		require.NoError(t, batch.Add(0, mgl32.Vec3{float32(i), 0, 0}))
		require.NoError(t, engine.Append(batch, ctx.Params))
	}

	states := readTrailStates(t, backend, s)
	assert.Equal(t, uint32(frames), states[0].TotalInputCount)
	assert.Equal(t, uint32(0), states[1].TotalInputCount)

	// slot k holds the newest sample whose index is k mod nodesPerTrail
	nodes := readNodes(t, backend, s)
	n := s.NodesPerTrail()
	for i := frames - n; i < frames; i++ {
		assert.Equal(t, float32(i), nodes[i%n].Position[0], "slot %d", i%n)
		assert.InDelta(t, float32(i+1)*0.1, nodes[i%n].Time, 1e-6)
	}
	for k := range n {
		assert.Equal(t, [3]float32{}, nodes[n+k].Position, "trail 1 must stay untouched")
	}
}

func TestAppendSpreadsCatchUpTimestamps(t *testing.T) {
	backend := newTestBackend(t)
	s := newTestStore(t, backend, 2, 1, 8)
	engine, err := NewAppendEngine(backend, s, 4)
	require.NoError(t, err)
	defer func() { _ = engine.Release() }()

	ctx := newTestFrame(t, backend, s, 4, 2, 1, View{})
	batch := NewBatch(2, 4)
	for i := range 4 {
		require.NoError(t, batch.Add(1, mgl32.Vec3{1, float32(i + 1), 0}))
	}
	require.NoError(t, engine.Append(batch, ctx.Params))

	states := readTrailStates(t, backend, s)
	assert.Equal(t, uint32(4), states[1].TotalInputCount)
	assert.InDelta(t, 1.25, states[1].StartTime, 1e-6)

	nodes := readNodes(t, backend, s)
	base := s.NodesPerTrail()
	for i, want := range []float32{1.25, 1.5, 1.75, 2} {
		assert.InDelta(t, want, nodes[base+i].Time, 1e-6)
		assert.Equal(t, float32(i+1), nodes[base+i].Position[1])
	}
}

func TestAppendSkipRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GPUTrailParams)
		samples []mgl32.Vec3
		want    uint32
	}{
		{
			name:    "ignore origin",
			mutate:  func(p *GPUTrailParams) { p.Flags = FlagIgnoreOrigin },
			samples: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 0, 0}},
			want:    1,
		},
		{
			name:    "origin kept without flag",
			mutate:  func(p *GPUTrailParams) {},
			samples: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}},
			want:    2,
		},
		{
			name:    "min node distance",
			mutate:  func(p *GPUTrailParams) { p.MinNodeDistance = 0.5 },
			samples: []mgl32.Vec3{{0, 0, 0}, {0.1, 0, 0}, {1, 0, 0}, {1.2, 0, 0}},
			want:    2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newTestBackend(t)
			s := newTestStore(t, backend, 1, 1, 8)
			engine, err := NewAppendEngine(backend, s, 4)
			require.NoError(t, err)
			defer func() { _ = engine.Release() }()

			ctx := newTestFrame(t, backend, s, 4, 1, 1, View{})
			rewriteParams(t, backend, ctx, 4, tt.mutate)

			batch := NewBatch(1, 4)
			for _, p := range tt.samples {
				require.NoError(t, batch.Add(0, p))
			}
			require.NoError(t, engine.Append(batch, ctx.Params))
			assert.Equal(t, tt.want, readTrailStates(t, backend, s)[0].TotalInputCount)
		})
	}
}

func TestAppendEmptyBatchSkipsDispatch(t *testing.T) {
	backend := newTestBackend(t)
	s := newTestStore(t, backend, 1, 1, 8)
	engine, err := NewAppendEngine(backend, s, 2)
	require.NoError(t, err)
	defer func() { _ = engine.Release() }()

	ctx := newTestFrame(t, backend, s, 2, 1, 1, View{})
	before := backend.DispatchCount()
	require.NoError(t, engine.Append(NewBatch(1, 2), ctx.Params))
	require.NoError(t, engine.Append(nil, ctx.Params))
	assert.Equal(t, before, backend.DispatchCount())
}

func TestAppendRejectsMismatchedBatch(t *testing.T) {
	backend := newTestBackend(t)
	s := newTestStore(t, backend, 2, 1, 8)
	engine, err := NewAppendEngine(backend, s, 2)
	require.NoError(t, err)
	defer func() { _ = engine.Release() }()

	batch := NewBatch(3, 2)
	require.NoError(t, batch.Add(0, mgl32.Vec3{1, 0, 0}))
	_, err = engine.Stage(batch)
	assert.Error(t, err)
}
