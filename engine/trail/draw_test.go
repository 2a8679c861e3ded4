package trail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIndexPattern(t *testing.T) {
	assert.Equal(t, []uint32{0, 1, 2, 2, 1, 3, 2, 3, 4, 4, 3, 5}, BuildIndexPattern(3))
	assert.Empty(t, BuildIndexPattern(1))
	assert.Empty(t, BuildIndexPattern(0))

	// indices never leave one trail's 2*n vertices
	pattern := BuildIndexPattern(16)
	assert.Len(t, pattern, 6*15)
	for _, i := range pattern {
		assert.Less(t, i, uint32(32))
	}
}

func TestDrawDriverArgs(t *testing.T) {
	backend := newTestBackend(t)
	d, err := NewDrawDriver(backend, "test", "ribbon", 4, false)
	require.NoError(t, err)
	defer func() { _ = d.Release(backend) }()

	assert.Equal(t, uint32(18), d.IndexCount())
	assert.Equal(t, GPUIndirectArgs{IndexCount: 18}, readArgs(t, backend, d.Args()))

	list, err := NewIndexList(backend, "test_list", 8)
	require.NoError(t, err)
	require.NoError(t, list.StageIdentity(backend, 5))

	require.NoError(t, d.CopyInstanceCount(backend, list))
	assert.Equal(t, uint32(5), readArgs(t, backend, d.Args()).InstanceCount)

	require.NoError(t, d.Multiply(backend))
	assert.Equal(t, uint32(10), readArgs(t, backend, d.Args()).InstanceCount)

	require.NoError(t, d.StageInstanceCount(backend, 3))
	assert.Equal(t, GPUIndirectArgs{IndexCount: 18, InstanceCount: 3}, readArgs(t, backend, d.Args()))

	require.NoError(t, d.Draw(backend, nil))
	assert.Equal(t, []DrawRecord{{Material: "ribbon", IndexCount: 18, InstanceCount: 3}}, backend.Draws())
}

func TestDrawDriverStereoDivisor(t *testing.T) {
	backend := newTestBackend(t)
	d, err := NewDrawDriver(backend, "test", "ribbon", 2, true)
	require.NoError(t, err)
	defer func() { _ = d.Release(backend) }()

	data := readAll(t, backend, d.Params())
	assert.Equal(t, uint32Bytes([]uint32{4, 2, 0, 0}), data)
}

func TestDrawDriverSingleNode(t *testing.T) {
	backend := newTestBackend(t)
	d, err := NewDrawDriver(backend, "test", "ribbon", 1, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), d.IndexCount())
	assert.Equal(t, uint64(4), d.Indices().Size())
	require.NoError(t, d.Release(backend))
	assert.Equal(t, 0, backend.LiveBuffers())
}
