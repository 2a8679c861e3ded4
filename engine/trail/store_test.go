package trail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreInitialize(t *testing.T) {
	backend := newTestBackend(t)
	s := NewStore(backend)

	require.NoError(t, s.Initialize(3, 0.5, 10))
	assert.True(t, s.Initialized())
	assert.Equal(t, 3, s.TrailCount())
	assert.Equal(t, 5, s.NodesPerTrail())
	assert.Equal(t, 15, s.NodeCount())

	nodes, err := s.Nodes()
	require.NoError(t, err)
	assert.Equal(t, uint64(15*32), nodes.Size())
	trails, err := s.Trails()
	require.NoError(t, err)
	assert.Equal(t, uint64(3*8), trails.Size())
}

func TestStoreNodesPerTrailRoundsUp(t *testing.T) {
	backend := newTestBackend(t)
	s := newTestStore(t, backend, 1, 0.25, 10)
	assert.Equal(t, 3, s.NodesPerTrail())
}

func TestStoreInitializeRejectsInvalidParameters(t *testing.T) {
	tests := []struct {
		name       string
		trailCount int
		life       float32
		inputRate  float32
	}{
		{"zero trails", 0, 1, 60},
		{"negative life", 1, -1, 60},
		{"zero rate", 1, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newTestBackend(t)
			s := NewStore(backend)
			err := s.Initialize(tt.trailCount, tt.life, tt.inputRate)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.False(t, s.Initialized())
			assert.Equal(t, 0, backend.LiveBuffers())
		})
	}
}

func TestStoreLifecycleErrors(t *testing.T) {
	backend := newTestBackend(t)
	s := NewStore(backend)

	_, err := s.Nodes()
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, s.Initialize(1, 1, 60))
	require.NoError(t, s.Release())
	require.NoError(t, s.Release())

	_, err = s.Trails()
	assert.ErrorIs(t, err, ErrReleased)
	assert.Equal(t, 0, backend.LiveBuffers())
}

func TestStoreReinitializeReleasesPreviousBuffers(t *testing.T) {
	backend := newTestBackend(t)
	s := NewStore(backend)

	require.NoError(t, s.Initialize(4, 1, 60))
	require.NoError(t, s.Initialize(8, 1, 30))
	assert.Equal(t, 2, backend.LiveBuffers())
	assert.Equal(t, 8, s.TrailCount())
	assert.Equal(t, 30, s.NodesPerTrail())
	require.NoError(t, s.Release())
}
