package trail

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(trailCount int) Config {
	cfg := DefaultConfig()
	cfg.TrailCount = trailCount
	cfg.Life = 1
	cfg.InputRate = 8
	cfg.FrameRate = 8
	cfg.InputCountMax = 2
	cfg.Backend = BackendNameSoftware
	return cfg
}

func newTestOrchestrator(t *testing.T, backend Backend, cfg Config, options ...OrchestratorBuilderOption) Orchestrator {
	t.Helper()
	o := NewOrchestrator(backend, cfg, options...)
	require.NoError(t, o.Initialize())
	t.Cleanup(func() { _ = o.Release() })
	return o
}

// runFrame places trail i at heads[i] and draws.
func runFrame(t *testing.T, backend SoftwareBackend, o Orchestrator, time float32, heads []mgl32.Vec3) []DrawRecord {
	t.Helper()
	batch := o.NewBatch()
	for i, h := range heads {
		require.NoError(t, batch.Add(i, h))
	}
	require.NoError(t, o.Update(Frame{Time: time, DeltaTime: 0.125, View: frontView()}, batch))
	backend.ResetDraws()
	require.NoError(t, o.Draw())
	return backend.Draws()
}

var mixedHeads = []mgl32.Vec3{{0, 0, 10}, {100, 0, 10}, {1, 0, 10}, {0, 0, -10}}

func TestOrchestratorInstanceCount(t *testing.T) {
	tests := []struct {
		name    string
		culling bool
		stereo  bool
		want    uint32
	}{
		{"culled", true, false, 2},
		{"culled stereo", true, true, 4},
		{"no culling", false, false, 4},
		{"no culling stereo", false, true, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newTestBackend(t)
			cfg := testConfig(len(mixedHeads))
			cfg.Culling = tt.culling
			cfg.Stereo = tt.stereo
			o := newTestOrchestrator(t, backend, cfg)

			draws := runFrame(t, backend, o, 1, mixedHeads)
			require.Len(t, draws, 1)
			assert.Equal(t, tt.want, draws[0].InstanceCount)
			assert.Equal(t, DefaultMaterial, draws[0].Material)
			assert.Equal(t, uint32(6*7), draws[0].IndexCount)
			assert.Equal(t, StateReady, o.State())
		})
	}
}

func TestOrchestratorLodDraws(t *testing.T) {
	backend := newTestBackend(t)
	cfg := testConfig(4)
	cfg.Lods = []LodSetting{
		{Distance: 20, NodeStep: 2, Material: "far"},
		{Distance: 5, NodeStep: 1},
	}
	o := newTestOrchestrator(t, backend, cfg, WithStereo(true))

	heads := []mgl32.Vec3{{0, 0, 3}, {0, 0, 15}, {0, 0, 40}, {100, 0, 10}}
	draws := runFrame(t, backend, o, 1, heads)
	require.Len(t, draws, 2)

	assert.Equal(t, DefaultMaterial, draws[0].Material)
	assert.Equal(t, uint32(2), draws[0].InstanceCount)
	assert.Equal(t, uint32(6*7), draws[0].IndexCount)

	assert.Equal(t, "far", draws[1].Material)
	assert.Equal(t, uint32(4), draws[1].InstanceCount)
	assert.Equal(t, uint32(6*3), draws[1].IndexCount)
}

func TestOrchestratorCustomStrategies(t *testing.T) {
	backend := newTestBackend(t)
	cfg := testConfig(4)
	o := newTestOrchestrator(t, backend, cfg,
		WithCuller(nil),
		WithLodClassifier(NewLodClassifier(LodSetting{Distance: 1000, NodeStep: 1})),
	)
	assert.Nil(t, o.Culler())
	require.NotNil(t, o.LodClassifier())

	draws := runFrame(t, backend, o, 1, mixedHeads)
	require.Len(t, draws, 1)
	assert.Equal(t, uint32(4), draws[0].InstanceCount)
}

func TestOrchestratorSkipsAppendWithoutSamples(t *testing.T) {
	backend := newTestBackend(t)
	o := newTestOrchestrator(t, backend, testConfig(2))

	require.NoError(t, o.Update(Frame{Time: 1, View: frontView()}, nil))
	states := readTrailStates(t, backend, o.Store())
	assert.Equal(t, []GPUTrailState{{}, {}}, states)

	emitter := NewEmitterGroup(2, 2)
	require.NoError(t, o.UpdateFrom(Frame{Time: 2, View: frontView()}, emitter))
	emitter.SetPosition(1, mgl32.Vec3{0, 0, 5})
	require.NoError(t, o.UpdateFrom(Frame{Time: 3, View: frontView()}, emitter))

	states = readTrailStates(t, backend, o.Store())
	assert.Equal(t, uint32(0), states[0].TotalInputCount)
	assert.Equal(t, uint32(1), states[1].TotalInputCount)
	assert.InDelta(t, 3, states[1].StartTime, 1e-6)
}

func TestOrchestratorLifecycle(t *testing.T) {
	backend := newTestBackend(t)
	o := NewOrchestrator(backend, testConfig(2))

	assert.Equal(t, StateUninitialized, o.State())
	assert.ErrorIs(t, o.Update(Frame{}, nil), ErrNotInitialized)
	assert.ErrorIs(t, o.Draw(), ErrNotInitialized)

	require.NoError(t, o.Initialize())
	assert.Equal(t, StateReady, o.State())
	assert.ErrorIs(t, o.Initialize(), ErrInvalidState)

	require.NoError(t, o.Update(Frame{Time: 1, View: frontView()}, nil))
	assert.Equal(t, StateGeneratingRibbons, o.State())
	require.NoError(t, o.Update(Frame{Time: 2, View: frontView()}, nil))
	require.NoError(t, o.Draw())
	require.NoError(t, o.Draw())
	assert.Equal(t, StateReady, o.State())

	require.NoError(t, o.Release())
	require.NoError(t, o.Release())
	assert.Equal(t, StateReleased, o.State())
	assert.Equal(t, 0, backend.LiveBuffers())

	assert.ErrorIs(t, o.Update(Frame{}, nil), ErrReleased)
	assert.ErrorIs(t, o.Draw(), ErrReleased)
	assert.ErrorIs(t, o.Initialize(), ErrReleased)
	assert.ErrorIs(t, o.Reconfigure(testConfig(2)), ErrReleased)
}

func TestOrchestratorInvalidConfig(t *testing.T) {
	backend := newTestBackend(t)
	cfg := testConfig(0)
	o := NewOrchestrator(backend, cfg)
	assert.ErrorIs(t, o.Initialize(), ErrInvalidConfig)
	assert.Equal(t, StateUninitialized, o.State())
	assert.Equal(t, 0, backend.LiveBuffers())
}

func TestOrchestratorFrameErrorReturnsToReady(t *testing.T) {
	backend := newTestBackend(t)
	o := newTestOrchestrator(t, backend, testConfig(2))

	wrong := NewBatch(3, 2)
	require.NoError(t, wrong.Add(0, mgl32.Vec3{1, 0, 0}))
	assert.Error(t, o.Update(Frame{Time: 1, View: frontView()}, wrong))
	assert.Equal(t, StateReady, o.State())
	require.NoError(t, o.Update(Frame{Time: 2, View: frontView()}, nil))
}

func TestOrchestratorReconfigure(t *testing.T) {
	backend := newTestBackend(t)
	o := newTestOrchestrator(t, backend, testConfig(2))
	runFrame(t, backend, o, 1, []mgl32.Vec3{{0, 0, 10}, {0, 0, 10}})

	bad := testConfig(2)
	bad.Life = -1
	assert.ErrorIs(t, o.Reconfigure(bad), ErrInvalidConfig)
	assert.Equal(t, 2, o.Store().TrailCount())

	next := testConfig(5)
	next.Culling = false
	require.NoError(t, o.Reconfigure(next))
	assert.Equal(t, StateReady, o.State())
	assert.Equal(t, 5, o.Store().TrailCount())
	assert.Nil(t, o.Culler())

	// the new store starts empty
	for _, s := range readTrailStates(t, backend, o.Store()) {
		assert.Equal(t, uint32(0), s.TotalInputCount)
	}
	draws := runFrame(t, backend, o, 2, nil)
	require.Len(t, draws, 1)
	assert.Equal(t, uint32(5), draws[0].InstanceCount)
}

func TestOrchestratorMetrics(t *testing.T) {
	backend := newTestBackend(t)
	reg := prometheus.NewRegistry()
	o := newTestOrchestrator(t, backend, testConfig(2), WithMetrics(NewMetrics(reg)))

	runFrame(t, backend, o, 1, []mgl32.Vec3{{0, 0, 10}})
	runFrame(t, backend, o, 2, []mgl32.Vec3{{0, 0, 11}, {0, 0, 12}})

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), values["oxy_trail_frames_total"])
	assert.Equal(t, float64(3), values["oxy_trail_staged_samples_total"])
	assert.Equal(t, float64(2), values["oxy_trail_draws_total"])
	assert.Equal(t, float64(StateReady), values["oxy_trail_state"])
	assert.Positive(t, values["oxy_trail_dispatches_total"])
}

func stateGauges(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	states := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "oxy_trail_state" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "set" {
					states[l.GetValue()] = m.GetGauge().GetValue()
				}
			}
		}
	}
	return states
}

func TestOrchestratorStateGaugePerSet(t *testing.T) {
	backend := newTestBackend(t)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	sparks := newTestOrchestrator(t, backend, testConfig(1), WithMetrics(metrics), WithName("sparks"))
	smoke := newTestOrchestrator(t, backend, testConfig(1), WithMetrics(metrics), WithName("smoke"))
	require.NoError(t, smoke.Update(Frame{Time: 1, View: frontView()}, nil))

	assert.Equal(t, map[string]float64{
		"sparks": float64(StateReady),
		"smoke":  float64(StateGeneratingRibbons),
	}, stateGauges(t, reg))

	require.NoError(t, sparks.Release())
	assert.Equal(t, float64(StateReleased), stateGauges(t, reg)["sparks"])
	assert.Equal(t, float64(StateGeneratingRibbons), stateGauges(t, reg)["smoke"])
}

var (
	errCreateRefused  = errors.New("create refused")
	errReleaseRefused = errors.New("release refused")
)

// refusingBackend fails to create the buffer labelled create and to release the buffer
// labelled release.
type refusingBackend struct {
	Backend
	create, release string
}

func (b *refusingBackend) CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error) {
	if label == b.create {
		return nil, errCreateRefused
	}
	return b.Backend.CreateBuffer(label, size, usage)
}

func (b *refusingBackend) ReleaseBuffer(buf Buffer) error {
	err := b.Backend.ReleaseBuffer(buf)
	if buf.Label() == b.release {
		return errReleaseRefused
	}
	return err
}

func TestOrchestratorInitializeAggregatesCleanupErrors(t *testing.T) {
	backend := &refusingBackend{Backend: newTestBackend(t), create: "trail_params", release: "trail_nodes"}
	o := NewOrchestrator(backend, testConfig(2))

	err := o.Initialize()
	require.Error(t, err)
	assert.ErrorIs(t, err, errCreateRefused)
	assert.ErrorIs(t, err, errReleaseRefused)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.Equal(t, StateUninitialized, o.State())
}
