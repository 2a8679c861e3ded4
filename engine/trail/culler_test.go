package trail

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSidePlanesOfFrontView(t *testing.T) {
	planes := frontView().SidePlanes()
	inside := mgl32.Vec3{0, 0, 10}
	outside := mgl32.Vec3{100, 0, 10}

	for i, p := range planes {
		assert.GreaterOrEqual(t, mgl32.Vec3(p.Normal).Dot(inside)+p.Distance, float32(0), "plane %d", i)
	}
	excluded := false
	for _, p := range planes {
		if mgl32.Vec3(p.Normal).Dot(outside)+p.Distance < 0 {
			excluded = true
		}
	}
	assert.True(t, excluded)
}

func TestFrustumCullerAxisAligned(t *testing.T) {
	backend := newTestBackend(t)
	s := newTestStore(t, backend, 4, 1, 8)
	ctx := newTestFrame(t, backend, s, 1, 1, 1, frontView())

	// trail 3 never receives a sample
	appendHeads(t, backend, s, ctx, []mgl32.Vec3{{0, 0, 10}, {100, 0, 10}, {0, -2, 10}})

	culler := NewFrustumCuller()
	require.NoError(t, culler.Allocate(backend, s.TrailCount()))
	defer func() { _ = culler.Release() }()

	require.NoError(t, culler.Cull(ctx, 0.1))

	visible := readList(t, backend, culler.Visible())
	assert.Empty(t, cmp.Diff([]uint32{0, 2}, visible, cmpopts.SortSlices(func(a, b uint32) bool { return a < b })))
	assert.Equal(t, [3]uint32{1, 1, 1}, readDispatchArgs(t, backend, culler.Visible().DispatchArgs()))
}

func TestFrustumCullerWidthMargin(t *testing.T) {
	backend := newTestBackend(t)
	s := newTestStore(t, backend, 1, 1, 8)
	ctx := newTestFrame(t, backend, s, 1, 1, 1, frontView())

	// just outside the side plane that crosses x=10 at z=10
	appendHeads(t, backend, s, ctx, []mgl32.Vec3{{10.5, 0, 10}})

	culler := NewFrustumCuller()
	require.NoError(t, culler.Allocate(backend, 1))
	defer func() { _ = culler.Release() }()

	require.NoError(t, culler.Cull(ctx, 0.1))
	assert.Empty(t, readList(t, backend, culler.Visible()))

	require.NoError(t, culler.Cull(ctx, 4))
	assert.Equal(t, []uint32{0}, readList(t, backend, culler.Visible()))
}

func TestFrustumCullerResetsEveryFrame(t *testing.T) {
	backend := newTestBackend(t)
	s := newTestStore(t, backend, 2, 1, 8)
	ctx := newTestFrame(t, backend, s, 1, 1, 1, frontView())
	appendHeads(t, backend, s, ctx, []mgl32.Vec3{{0, 0, 10}, {1, 0, 10}})

	culler := NewFrustumCuller()
	require.NoError(t, culler.Allocate(backend, 2))
	defer func() { _ = culler.Release() }()

	for range 3 {
		require.NoError(t, culler.Cull(ctx, 0.1))
		assert.Len(t, readList(t, backend, culler.Visible()), 2)
	}
}

func TestFrustumCullerLifecycle(t *testing.T) {
	backend := newTestBackend(t)
	culler := NewFrustumCuller()
	s := newTestStore(t, backend, 1, 1, 8)
	ctx := newTestFrame(t, backend, s, 1, 1, 1, frontView())

	assert.ErrorIs(t, culler.Stage(ctx, 1), ErrNotInitialized)
	require.NoError(t, culler.Allocate(backend, 1))
	assert.Error(t, culler.Allocate(backend, 1))
	require.NoError(t, culler.Release())
	assert.Nil(t, culler.Visible())
	require.NoError(t, culler.Allocate(backend, 1))
	require.NoError(t, culler.Release())
}
