package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-trail/engine/camera"
	"github.com/Carmen-Shannon/oxy-trail/engine/scene"
	"github.com/Carmen-Shannon/oxy-trail/engine/trail"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSoftwareScene(t *testing.T, name string, active bool) (scene.Scene, trail.SoftwareBackend) {
	t.Helper()
	backend := trail.NewSoftwareBackend(trail.WithWorkers(1))
	cam := camera.NewCamera(camera.WithController(camera.NewOrbitController(camera.WithRadius(10))))
	s := scene.NewScene(name, cam, backend, scene.WithActive(active), scene.WithComputeWorkers(1))
	t.Cleanup(func() { _ = s.Release() })

	cfg := trail.DefaultConfig()
	cfg.Backend = trail.BackendNameSoftware
	cfg.Culling = false
	_, err := s.AddTrailSet("t", cfg, nil)
	require.NoError(t, err)
	return s, backend
}

func TestRatePeriod(t *testing.T) {
	assert.Equal(t, time.Second/60, ratePeriod(0))
	assert.Equal(t, time.Second/60, ratePeriod(-5))
	assert.Equal(t, 10*time.Millisecond, ratePeriod(100))
	assert.Equal(t, time.Duration(float64(time.Second)/59.94), ratePeriod(59.94))
}

func TestEngineScenes(t *testing.T) {
	a, _ := newSoftwareScene(t, "a", true)
	b, _ := newSoftwareScene(t, "b", false)
	c, _ := newSoftwareScene(t, "c", true)

	e := NewEngine(WithScene(5, a)).(*engine)
	e.AddScene(-1, c)
	e.AddScene(2, b)

	assert.Same(t, b, e.Scene(2))
	assert.Equal(t, []scene.Scene{c, b, a}, e.sortedScenes(false))
	assert.Equal(t, []scene.Scene{c, a}, e.sortedScenes(true))

	e.RemoveScene(2)
	assert.Nil(t, e.Scene(2))
}

func TestRenderFrameSoftwareScenes(t *testing.T) {
	active, activeBackend := newSoftwareScene(t, "active", true)
	idle, idleBackend := newSoftwareScene(t, "idle", false)

	e := NewEngine(WithScene(0, active), WithScene(1, idle)).(*engine)
	e.renderFrame(0.1)

	assert.Len(t, activeBackend.Draws(), 1)
	assert.Empty(t, idleBackend.Draws())
	assert.InDelta(t, 0.1, active.Time(), 1e-6)
	assert.Zero(t, idle.Time())
}

func TestRunWithoutWindow(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, backend := newSoftwareScene(t, "s", true)
	e := NewEngine(
		WithTickRate(500),
		WithRenderFrameLimit(500),
		WithProfiling(true),
		WithMetricsRegistry(reg),
		WithScene(0, s),
	)
	assert.Same(t, reg, e.MetricsRegistry())

	var ticks atomic.Int32
	e.SetTickCallback(func(dt float32) {
		if ticks.Add(1) == 3 {
			e.Quit()
		}
	})

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}

	assert.GreaterOrEqual(t, ticks.Load(), int32(3))
	assert.NotEmpty(t, backend.Draws())
	e.Quit()
}

func TestSetTickRate(t *testing.T) {
	e := NewEngine().(*engine)
	e.SetTickRate(120)
	assert.Equal(t, ratePeriod(120), e.tickPeriod)

	e.running.Store(true)
	e.SetTickRate(30)
	e.SetTickRate(45)
	require.Len(t, e.tickRateChannel, 1)
	assert.Equal(t, ratePeriod(45), <-e.tickRateChannel)
	assert.Equal(t, ratePeriod(120), e.tickPeriod)
}

func TestSetRenderFrameLimit(t *testing.T) {
	e := NewEngine(WithRenderFrameLimit(250)).(*engine)
	assert.Equal(t, 4*time.Millisecond, e.renderFrameLimit)
	e.SetRenderFrameLimit(0)
	assert.Zero(t, e.renderFrameLimit)
}
