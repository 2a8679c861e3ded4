package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-trail/engine/camera"
	"github.com/Carmen-Shannon/oxy-trail/engine/trail"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(trailCount int) trail.Config {
	cfg := trail.DefaultConfig()
	cfg.TrailCount = trailCount
	cfg.InputRate = 8
	cfg.FrameRate = 8
	cfg.InputCountMax = 2
	cfg.Culling = false
	cfg.Backend = trail.BackendNameSoftware
	return cfg
}

func newTestScene(t *testing.T, options ...SceneBuilderOption) (Scene, trail.SoftwareBackend) {
	t.Helper()
	backend := trail.NewSoftwareBackend(trail.WithWorkers(2))
	cam := camera.NewCamera(camera.WithController(camera.NewOrbitController(camera.WithRadius(10))))
	s := NewScene("test", cam, backend, append([]SceneBuilderOption{WithComputeWorkers(2)}, options...)...)
	t.Cleanup(func() { _ = s.Release() })
	return s, backend
}

func TestSceneAddTrailSet(t *testing.T) {
	s, _ := newTestScene(t)

	orch, err := s.AddTrailSet("a", testConfig(2), nil)
	require.NoError(t, err)
	assert.Equal(t, trail.StateReady, orch.State())
	assert.Same(t, orch, s.TrailSet("a"))

	_, err = s.AddTrailSet("a", testConfig(2), nil)
	assert.ErrorIs(t, err, ErrTrailSetExists)

	bad := testConfig(2)
	bad.TrailCount = 0
	_, err = s.AddTrailSet("b", bad, nil)
	assert.ErrorIs(t, err, trail.ErrInvalidConfig)
	assert.Nil(t, s.TrailSet("b"))

	_, err = s.AddTrailSet("0", testConfig(1), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "a"}, s.TrailSetKeys())
}

func TestSceneFrame(t *testing.T) {
	s, backend := newTestScene(t)
	group := trail.NewEmitterGroup(2, 2)
	_, err := s.AddTrailSet("sparks", testConfig(2), group)
	require.NoError(t, err)

	for i := range 3 {
		group.SetPosition(0, mgl32.Vec3{float32(i), 0, 0})
		group.SetPosition(1, mgl32.Vec3{0, float32(i), 0})
		require.NoError(t, s.PrepareCompute(0.125))

		backend.ResetDraws()
		require.NoError(t, s.DrawCalls())
		draws := backend.Draws()
		require.Len(t, draws, 1)
		assert.Equal(t, trail.DefaultMaterial, draws[0].Material)
		assert.Equal(t, uint32(2), draws[0].InstanceCount)
	}
	assert.InDelta(t, 0.375, s.Time(), 1e-6)
}

func TestSceneFrameWithoutEmitter(t *testing.T) {
	s, backend := newTestScene(t)
	_, err := s.AddTrailSet("idle", testConfig(1), nil)
	require.NoError(t, err)

	require.NoError(t, s.PrepareCompute(0.1))
	backend.ResetDraws()
	require.NoError(t, s.DrawCalls())
	assert.Len(t, backend.Draws(), 1)
}

func TestSceneReconfigureAppliesBetweenFrames(t *testing.T) {
	s, _ := newTestScene(t)
	orch, err := s.AddTrailSet("a", testConfig(2), nil)
	require.NoError(t, err)

	require.NoError(t, s.Reconfigure("a", testConfig(5)))
	assert.Equal(t, 2, orch.Config().TrailCount)

	require.NoError(t, s.PrepareCompute(0.1))
	assert.Equal(t, 5, orch.Config().TrailCount)
	assert.Equal(t, 5, orch.Store().TrailCount())

	assert.ErrorIs(t, s.Reconfigure("missing", testConfig(1)), ErrTrailSetNotFound)
	assert.Equal(t, trail.StateGeneratingRibbons, orch.State())

	bad := testConfig(1)
	bad.Life = 0
	assert.ErrorIs(t, s.Reconfigure("a", bad), trail.ErrInvalidConfig)
}

func TestSceneReconfigureResizesEmitter(t *testing.T) {
	s, backend := newTestScene(t)
	group := trail.NewEmitterGroup(2, 2)
	_, err := s.AddTrailSet("a", testConfig(2), group)
	require.NoError(t, err)

	require.NoError(t, s.Reconfigure("a", testConfig(4)))
	require.NoError(t, s.PrepareCompute(0.125))
	assert.Equal(t, 4, group.TrailCount())

	for i := range 4 {
		group.SetPosition(i, mgl32.Vec3{float32(i), 1, 0})
	}
	require.NoError(t, s.PrepareCompute(0.125))
	backend.ResetDraws()
	require.NoError(t, s.DrawCalls())
	require.Len(t, backend.Draws(), 1)
	assert.Equal(t, uint32(4), backend.Draws()[0].InstanceCount)
}

func TestSceneRemoveTrailSet(t *testing.T) {
	s, backend := newTestScene(t)
	orch, err := s.AddTrailSet("a", testConfig(2), nil)
	require.NoError(t, err)
	assert.Positive(t, backend.LiveBuffers())

	require.NoError(t, s.RemoveTrailSet("a"))
	assert.Equal(t, trail.StateReleased, orch.State())
	assert.Equal(t, 0, backend.LiveBuffers())
	assert.Empty(t, s.TrailSetKeys())

	assert.ErrorIs(t, s.RemoveTrailSet("a"), ErrTrailSetNotFound)
}

func TestSceneMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := trail.NewMetrics(reg)
	s, _ := newTestScene(t, WithMetrics(metrics))
	_, err := s.AddTrailSet("a", testConfig(1), nil)
	require.NoError(t, err)

	require.NoError(t, s.PrepareCompute(0.1))
	require.NoError(t, s.PrepareCompute(0.1))

	families, err := reg.Gather()
	require.NoError(t, err)
	var frames float64
	for _, mf := range families {
		if mf.GetName() == "oxy_trail_frames_total" {
			frames = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(2), frames)
}

func TestConfigMaterials(t *testing.T) {
	cfg := testConfig(1)
	cfg.Material = ""
	cfg.Lods = []trail.LodSetting{
		{Distance: 10, NodeStep: 1, Material: "near"},
		{Distance: 20, NodeStep: 2},
		{Distance: 30, NodeStep: 4, Material: "near"},
	}
	assert.Equal(t, []string{"near", trail.DefaultMaterial}, configMaterials(cfg))
}
