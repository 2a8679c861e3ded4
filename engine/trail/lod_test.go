package trail

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sortIndices = cmpopts.SortSlices(func(a, b uint32) bool { return a < b })

func classifyHeads(t *testing.T, heads []mgl32.Vec3, settings ...LodSetting) (SoftwareBackend, LodClassifier) {
	t.Helper()
	backend := newTestBackend(t)
	s := newTestStore(t, backend, len(heads)+1, 1, 8)
	ctx := newTestFrame(t, backend, s, 1, 1, 1, frontView())
	appendHeads(t, backend, s, ctx, heads)

	source, err := NewIndexList(backend, "test_all", s.TrailCount())
	require.NoError(t, err)
	require.NoError(t, source.StageIdentity(backend, s.TrailCount()))

	lod := NewLodClassifier(settings...)
	require.NoError(t, lod.Allocate(backend, s.TrailCount()))
	t.Cleanup(func() { _ = lod.Release() })

	require.NoError(t, lod.Classify(ctx, source))
	return backend, lod
}

func TestLodPartition(t *testing.T) {
	// the last trail has no samples and falls into the farthest bucket
	heads := []mgl32.Vec3{{0, 0, 3}, {0, 0, 15}, {0, 0, 30}, {0, 4, 0}}
	backend, lod := classifyHeads(t, heads,
		LodSetting{Distance: 5, NodeStep: 1},
		LodSetting{Distance: 20, NodeStep: 2},
	)

	require.Equal(t, 2, lod.BucketCount())
	near := readList(t, backend, lod.Bucket(0))
	far := readList(t, backend, lod.Bucket(1))

	assert.Empty(t, cmp.Diff([]uint32{0, 3}, near, sortIndices))
	assert.Empty(t, cmp.Diff([]uint32{1, 2, 4}, far, sortIndices))

	seen := map[uint32]int{}
	for _, i := range append(near, far...) {
		seen[i]++
	}
	assert.Len(t, seen, len(heads)+1)
	for trail, n := range seen {
		assert.Equal(t, 1, n, "trail %d in %d buckets", trail, n)
	}
}

func TestLodBoundaryGoesToFartherBucket(t *testing.T) {
	backend, lod := classifyHeads(t, []mgl32.Vec3{{0, 0, 5}},
		LodSetting{Distance: 5, NodeStep: 1},
		LodSetting{Distance: 20, NodeStep: 1},
	)
	assert.Empty(t, readList(t, backend, lod.Bucket(0)))
	assert.Empty(t, cmp.Diff([]uint32{0, 1}, readList(t, backend, lod.Bucket(1)), sortIndices))
}

func TestLodSettingsSorted(t *testing.T) {
	lod := NewLodClassifier(
		LodSetting{Distance: 50, NodeStep: 4},
		LodSetting{Distance: 5, NodeStep: 1},
		LodSetting{Distance: 20, NodeStep: 2},
	)
	var got []float32
	for _, s := range lod.Settings() {
		got = append(got, s.Distance)
	}
	assert.Equal(t, []float32{5, 20, 50}, got)
}

func TestLodBucketsOnlyCoverSource(t *testing.T) {
	backend := newTestBackend(t)
	s := newTestStore(t, backend, 4, 1, 8)
	ctx := newTestFrame(t, backend, s, 1, 1, 1, frontView())
	appendHeads(t, backend, s, ctx, []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}})

	source, err := NewIndexList(backend, "test_source", 4)
	require.NoError(t, err)
	require.NoError(t, source.StageIdentity(backend, 2))

	lod := NewLodClassifier(LodSetting{Distance: 10, NodeStep: 1})
	require.NoError(t, lod.Allocate(backend, 4))
	defer func() { _ = lod.Release() }()

	require.NoError(t, lod.Classify(ctx, source))
	assert.Empty(t, cmp.Diff([]uint32{0, 1}, readList(t, backend, lod.Bucket(0)), sortIndices))
}

func TestLodAllocateValidates(t *testing.T) {
	backend := newTestBackend(t)

	assert.ErrorIs(t, NewLodClassifier().Allocate(backend, 1), ErrInvalidConfig)
	assert.ErrorIs(t, NewLodClassifier(LodSetting{Distance: -1}).Allocate(backend, 1), ErrInvalidConfig)
	assert.Equal(t, 0, backend.LiveBuffers())
	assert.Nil(t, NewLodClassifier(LodSetting{Distance: 1}).Bucket(0))
}
